package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrUnknownProvider is returned for a reference to an unregistered provider.
	ErrUnknownProvider = errors.New("secret provider is not registered")

	// ErrEmptySecret is returned by a strict resolver when a provider
	// resolves to "".
	ErrEmptySecret = errors.New("secret provider returned empty value")
)

// Resolver resolves secret references using registered providers.
//
// Values with the prefix "secretref:" are resolved via providers.
// Other values are returned after `${VAR}` expansion.
type Resolver struct {
	providers map[string]Provider
	lookup    LookupFunc
	strict    bool
}

// NewResolver creates a resolver. In strict mode an unset `${VAR}` or an
// empty secret is an error; otherwise both expand to "".
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{
		providers: make(map[string]Provider),
		strict:    strict,
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// NewDefaultResolver creates a lenient resolver with the env and file
// providers, both reading through lookup.
func NewDefaultResolver(lookup LookupFunc) *Resolver {
	r := NewResolver(false, NewEnvProvider(lookup), NewFileProvider(""))
	r.lookup = lookup
	return r
}

// WithLookup sets the source used for `${VAR}` expansion. The default is
// the live process environment.
func (r *Resolver) WithLookup(lookup LookupFunc) *Resolver {
	r.lookup = lookup
	return r
}

// Register registers a provider with the resolver.
func (r *Resolver) Register(provider Provider) {
	if r == nil || provider == nil {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[provider.Name()] = provider
}

// Close closes every registered provider and returns the joined errors.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ResolveValue expands environment variables in value, then resolves any
// secret refs.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := r.expand(value)
	if err != nil {
		return "", err
	}
	if r == nil {
		return expanded, nil
	}

	if providerName, ref, ok := ParseSecretRef(expanded); ok {
		return r.resolveSingle(ctx, providerName, ref)
	}
	return r.resolveInline(ctx, expanded)
}

// ResolveMap resolves each string value in input.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// ResolveSnapshot returns a copy of s in which every value that is a secret
// ref has been resolved. Plain values are copied unchanged; they are not
// env-expanded.
func (r *Resolver) ResolveSnapshot(ctx context.Context, s Snapshot) (Snapshot, error) {
	out := make(map[string]string, s.Len())
	for k, v := range s.values {
		if r != nil && strings.Contains(v, secretRefPrefix) {
			resolved, err := r.resolveInline(ctx, v)
			if err != nil {
				return Snapshot{}, fmt.Errorf("resolve %q: %w", k, err)
			}
			v = resolved
		}
		out[k] = v
	}
	return Snapshot{values: out}, nil
}

const secretRefPrefix = "secretref:"

// ParseSecretRef parses a full secret reference of the form:
//
//	secretref:<provider>:<ref>
//
// A ref containing whitespace is not a full reference.
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	if !strings.HasPrefix(value, secretRefPrefix) {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(value, secretRefPrefix), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	if strings.ContainsAny(parts[1], " \t\r\n") {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (r *Resolver) expand(value string) (string, error) {
	var lookup LookupFunc
	strict := false
	if r != nil {
		lookup = r.lookup
		strict = r.strict
	}
	if lookup == nil {
		lookup = Environ().Lookup
	}
	if strict {
		return ExpandStrict(value, lookup)
	}
	out, _ := Expand(value, lookup)
	return out, nil
}

func (r *Resolver) resolveSingle(ctx context.Context, providerName string, ref string) (string, error) {
	provider, ok := r.providers[providerName]
	if !ok || provider == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, providerName)
	}
	resolved, err := provider.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && resolved == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptySecret, providerName)
	}
	return resolved, nil
}

var inlineSecretRefPattern = regexp.MustCompile(`secretref:([^:\s]+):([^\s]+)`) // provider:ref

func (r *Resolver) resolveInline(ctx context.Context, value string) (string, error) {
	matches := inlineSecretRefPattern.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return value, nil
	}

	out := value
	for i := len(matches) - 1; i >= 0; i-- {
		match := matches[i]

		// Replace from the end so earlier indexes stay valid.
		providerName := out[match[2]:match[3]]
		ref := out[match[4]:match[5]]

		resolved, err := r.resolveSingle(ctx, providerName, ref)
		if err != nil {
			return "", err
		}

		out = out[:match[0]] + resolved + out[match[1]:]
	}
	return out, nil
}
