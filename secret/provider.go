package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// ErrSecretNotFound is returned when a provider has no value for a ref.
var ErrSecretNotFound = errors.New("secret not found")

// EnvProvider resolves refs as variable names.
//
//	secretref:env:SUPABASE_SERVICE_ROLE_KEY
type EnvProvider struct {
	lookup LookupFunc
}

// NewEnvProvider creates an env provider reading from lookup. A nil lookup
// reads the live process environment.
func NewEnvProvider(lookup LookupFunc) *EnvProvider {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvProvider{lookup: lookup}
}

// Name returns "env".
func (p *EnvProvider) Name() string { return "env" }

// Resolve returns the variable named ref.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := p.lookup(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrSecretNotFound, ref)
	}
	return v, nil
}

// Close is a no-op.
func (p *EnvProvider) Close() error { return nil }

// FileProvider resolves refs as file paths, the layout used by mounted
// container secrets. One trailing newline is trimmed.
//
//	secretref:file:/run/secrets/service_role_key
type FileProvider struct {
	dir string
}

// NewFileProvider creates a file provider. Relative refs are resolved
// against dir; an empty dir uses the working directory.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// Name returns "file".
func (p *FileProvider) Name() string { return "file" }

// Resolve reads the file at ref.
func (p *FileProvider) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := ref
	if !filepath.IsAbs(path) && p.dir != "" {
		path = filepath.Join(p.dir, path)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: file %s", ErrSecretNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("read secret file %s: %w", path, err)
	}
	s := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}

// Close is a no-op.
func (p *FileProvider) Close() error { return nil }
