package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/healthops/secret"
)

// EnvConfigPath names the configuration file when no path is given.
const EnvConfigPath = "HEALTHD_CONFIG"

// Loader reads a configuration file and resolves its string values.
type Loader struct {
	path     string
	lookup   secret.LookupFunc
	resolver *secret.Resolver
}

// NewLoader builds a loader for path. An empty path falls back to
// HEALTHD_CONFIG, and then to defaults only.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// WithLookup sets the variable source for ${VAR} expansion and the env
// secret provider. The default is a snapshot of the process environment
// taken at Load.
func (l *Loader) WithLookup(lookup secret.LookupFunc) *Loader {
	l.lookup = lookup
	return l
}

// WithResolver overrides the secret resolver.
func (l *Loader) WithResolver(r *secret.Resolver) *Loader {
	l.resolver = r
	return l
}

// Path returns the file the loader reads, or "" for defaults only.
func (l *Loader) Path() string {
	if l.path != "" {
		return expandPath(l.path)
	}
	lookup := l.lookupFunc()
	if custom, ok := lookup(EnvConfigPath); ok && custom != "" {
		return expandPath(custom)
	}
	return ""
}

// Load reads, defaults, resolves and validates the configuration. The file
// is decoded over Default, so keys it omits keep their default values.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	cfg := Default()
	if path := l.Path(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("%w: %s not found", ErrReadConfig, path)
			}
			return Config{}, fmt.Errorf("%w: %w", ErrReadConfig, err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.applyDefaults()

	if err := l.resolve(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML without applying defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := decode(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode overlays the keys present in data onto cfg.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrReadConfig, err)
	}
	return nil
}

func (l *Loader) lookupFunc() secret.LookupFunc {
	if l.lookup == nil {
		l.lookup = secret.Environ().Lookup
	}
	return l.lookup
}

// resolve expands every string field that may carry a reference. An unset
// variable expands to "", so a missing SUPABASE_URL is reported by the
// environment probe rather than failing the load.
func (l *Loader) resolve(ctx context.Context, cfg *Config) error {
	r := l.resolver
	if r == nil {
		r = secret.NewDefaultResolver(l.lookupFunc())
	}

	fields := []struct {
		name string
		ptr  *string
	}{
		{"service", &cfg.Service},
		{"version", &cfg.Version},
		{"listen", &cfg.Listen},
		{"database.dsn", &cfg.Database.DSN},
		{"database.query", &cfg.Database.Query},
		{"database.function", &cfg.Database.Function},
		{"supabase.url", &cfg.Supabase.URL},
		{"supabase.anonKey", &cfg.Supabase.AnonKey},
		{"supabase.accessToken", &cfg.Supabase.AccessToken},
		{"supabase.jwtSecret", &cfg.Supabase.JWTSecret},
		{"redis.addr", &cfg.Redis.Addr},
		{"redis.password", &cfg.Redis.Password},
	}
	for _, f := range fields {
		if *f.ptr == "" {
			continue
		}
		v, err := r.ResolveValue(ctx, *f.ptr)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrReadConfig, f.name, err)
		}
		*f.ptr = strings.TrimSpace(v)
	}
	cfg.Observe.ServiceName = cfg.Service
	cfg.Observe.Version = cfg.Version
	return nil
}

func expandPath(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return filepath.Clean(path)
}
