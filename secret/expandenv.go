package secret

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMissingEnv is wrapped by ExpandStrict when a referenced variable is
// not set.
var ErrMissingEnv = errors.New("missing required environment variables")

// LookupFunc reads a named value. os.LookupEnv and Snapshot.Lookup both
// satisfy it.
type LookupFunc func(key string) (string, bool)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

const dollarSentinel = "\x00HEALTHOPS_SECRET_DOLLAR\x00"

// Expand replaces every `${VAR}` in s with its value from lookup.
//
// Semantics:
//   - An unset variable expands to "" and its name is returned in missing,
//     in order of first appearance.
//   - A set but empty variable expands to "" and is not missing.
//   - `$$` emits a literal `$`.
//   - Bare `$VAR` is left untouched.
func Expand(s string, lookup LookupFunc) (out string, missing []string) {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	seen := make(map[string]bool)
	s = envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		v, ok := lookup(key)
		if !ok && !seen[key] {
			seen[key] = true
			missing = append(missing, key)
		}
		return v
	})

	return strings.ReplaceAll(s, dollarSentinel, "$"), missing
}

// ExpandStrict is Expand that fails when any referenced variable is unset.
// The error wraps ErrMissingEnv and names every missing variable.
func ExpandStrict(s string, lookup LookupFunc) (string, error) {
	out, missing := Expand(s, lookup)
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}
	return out, nil
}
