package health

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

type fakeStore struct {
	version string
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (s *fakeStore) Version(ctx context.Context) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.version, s.err
}

type fakeAuth struct {
	session *Session
	err     error
	delay   time.Duration
}

func (a *fakeAuth) Session(ctx context.Context) (*Session, error) {
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	return a.session, a.err
}

type mapConfig map[string]string

func (m mapConfig) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func fullEnv() mapConfig {
	return mapConfig{
		"SUPABASE_URL":              "http://localhost:54321",
		"SUPABASE_ANON_KEY":         "test-anon-key",
		"SUPABASE_SERVICE_ROLE_KEY": "test-service-role-key",
	}
}

func healthyDeps() *Deps {
	return &Deps{
		Store:  &fakeStore{version: "PostgreSQL 17.4 on aarch64-unknown-linux-gnu, compiled by gcc (GCC) 13.2.0, 64-bit"},
		Auth:   &fakeAuth{},
		Config: fullEnv(),
	}
}

var errConnectionFailed = errors.New("Connection failed")
