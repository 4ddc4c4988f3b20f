package secret

import (
	"os"
	"sort"
	"strings"
)

// Snapshot is an immutable view of named configuration values, typically
// the process environment at one instant.
type Snapshot struct {
	values map[string]string
}

// Environ captures the current process environment.
func Environ() Snapshot {
	env := os.Environ()
	values := make(map[string]string, len(env))
	for _, kv := range env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		values[key] = value
	}
	return Snapshot{values: values}
}

// FromMap returns a snapshot holding a copy of m.
func FromMap(m map[string]string) Snapshot {
	values := make(map[string]string, len(m))
	for k, v := range m {
		values[k] = v
	}
	return Snapshot{values: values}
}

// Lookup returns the value stored under key and whether it is present.
func (s Snapshot) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Get returns the value stored under key, or "" if absent.
func (s Snapshot) Get(key string) string {
	return s.values[key]
}

// Len returns the number of keys in the snapshot.
func (s Snapshot) Len() int {
	return len(s.values)
}

// Keys returns the snapshot keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// With returns a copy of s with key set to value.
func (s Snapshot) With(key, value string) Snapshot {
	out := FromMap(s.values)
	out.values[key] = value
	return out
}
