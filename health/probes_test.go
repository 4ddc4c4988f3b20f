package health

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestDatabaseProbe_Success(t *testing.T) {
	before := time.Now()
	result := DatabaseProbe{}.Probe(context.Background(), &Deps{
		Store: &fakeStore{version: "PostgreSQL 17.4", delay: 5 * time.Millisecond},
	})

	if result.Status != StatusOK {
		t.Fatalf("Status = %v, want ok (error %q)", result.Status, result.Error)
	}
	if result.Version != "PostgreSQL 17.4" {
		t.Errorf("Version = %q", result.Version)
	}
	if result.ResponseTime == nil {
		t.Fatal("ResponseTime should be set")
	}
	if result.ResponseTime.Format != ResponseTimeMillis {
		t.Errorf("ResponseTime.Format = %v, want ResponseTimeMillis", result.ResponseTime.Format)
	}
	if result.ResponseTime.Milliseconds() < 0 {
		t.Errorf("ResponseTime = %v, want >= 0", result.ResponseTime.Duration)
	}
	if result.Timestamp.Before(before) {
		t.Errorf("Timestamp %v precedes probe start %v", result.Timestamp, before)
	}
	if result.Error != "" || result.Message != "" || result.Missing != nil {
		t.Errorf("unexpected failure fields: %+v", result)
	}
}

func TestDatabaseProbe_EmptyVersionFallback(t *testing.T) {
	result := DatabaseProbe{}.Probe(context.Background(), &Deps{Store: &fakeStore{}})

	if result.Version != DefaultDatabaseVersion {
		t.Errorf("Version = %q, want %q", result.Version, DefaultDatabaseVersion)
	}
}

func TestDatabaseProbe_Failure(t *testing.T) {
	result := DatabaseProbe{}.Probe(context.Background(), &Deps{
		Store: &fakeStore{err: errConnectionFailed},
	})

	if result.Status != StatusError {
		t.Fatalf("Status = %v, want error", result.Status)
	}
	if result.Error != "Connection failed" {
		t.Errorf("Error = %q, want %q", result.Error, "Connection failed")
	}
	if result.ResponseTime != nil {
		t.Errorf("ResponseTime = %v, want nil on failure", result.ResponseTime)
	}
	if result.Version != "" || !result.Timestamp.IsZero() {
		t.Errorf("detail fields should be empty on failure: %+v", result)
	}
}

func TestDatabaseProbe_NoHandle(t *testing.T) {
	for _, deps := range []*Deps{nil, {}} {
		result := DatabaseProbe{}.Probe(context.Background(), deps)
		if result.Status != StatusError || result.Error != ErrNoStore.Error() {
			t.Errorf("Probe(%v) = %+v, want ErrNoStore", deps, result)
		}
	}
}

func TestAuthProbe_Success(t *testing.T) {
	start := time.Now()
	result := AuthProbe{}.Probe(context.Background(), &Deps{
		Auth: &fakeAuth{delay: 20 * time.Millisecond},
	})
	measured := time.Since(start)

	if result.Status != StatusOK {
		t.Fatalf("Status = %v, want ok", result.Status)
	}
	if result.ResponseTime == nil || result.ResponseTime.Format != ResponseTimeString {
		t.Fatalf("ResponseTime = %+v, want string format", result.ResponseTime)
	}

	data, err := result.ResponseTime.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	raw, err := strconv.Unquote(string(data))
	if err != nil {
		t.Fatalf("responseTime %s is not a JSON string", data)
	}
	if !strings.HasSuffix(raw, "ms") {
		t.Fatalf("responseTime = %q, want ms suffix", raw)
	}
	ms, err := strconv.Atoi(strings.TrimSuffix(raw, "ms"))
	if err != nil {
		t.Fatalf("responseTime prefix %q is not numeric", raw)
	}
	if ms < 20 || time.Duration(ms)*time.Millisecond > measured {
		t.Errorf("responseTime = %dms, want within [20ms, %v]", ms, measured)
	}
	if !result.Timestamp.IsZero() {
		t.Error("auth probe does not report a timestamp")
	}
}

func TestAuthProbe_EmptySessionIsHealthy(t *testing.T) {
	result := AuthProbe{}.Probe(context.Background(), &Deps{Auth: &fakeAuth{session: nil}})
	if result.Status != StatusOK {
		t.Errorf("Status = %v, want ok", result.Status)
	}
}

func TestAuthProbe_Failure(t *testing.T) {
	result := AuthProbe{}.Probe(context.Background(), &Deps{
		Auth: &fakeAuth{err: errors.New("Auth service unavailable")},
	})

	if result.Status != StatusError || result.Error != "Auth service unavailable" {
		t.Errorf("result = %+v", result)
	}
	if result.ResponseTime != nil {
		t.Error("ResponseTime should be omitted on failure")
	}
}

func TestEnvironmentProbe(t *testing.T) {
	tests := []struct {
		name        string
		required    []string
		config      Lookuper
		wantStatus  Status
		wantMissing []string
	}{
		{
			name:       "all present",
			required:   []string{"A", "B"},
			config:     mapConfig{"A": "1", "B": "2"},
			wantStatus: StatusOK,
		},
		{
			name:        "order preserved, present excluded",
			required:    []string{"A", "B", "C"},
			config:      mapConfig{"B": "x"},
			wantStatus:  StatusError,
			wantMissing: []string{"A", "C"},
		},
		{
			name:        "empty value counts as missing",
			required:    []string{"A", "B"},
			config:      mapConfig{"A": "", "B": "set"},
			wantStatus:  StatusError,
			wantMissing: []string{"A"},
		},
		{
			name:        "no config snapshot",
			required:    []string{"A", "B"},
			config:      nil,
			wantStatus:  StatusError,
			wantMissing: []string{"A", "B"},
		},
		{
			name: "supabase keys absent",
			required: []string{
				"SUPABASE_URL", "SUPABASE_ANON_KEY", "SUPABASE_SERVICE_ROLE_KEY",
			},
			config:      mapConfig{"SUPABASE_SERVICE_ROLE_KEY": "k"},
			wantStatus:  StatusError,
			wantMissing: []string{"SUPABASE_URL", "SUPABASE_ANON_KEY"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := NewEnvironmentProbe(tt.required...)
			result := probe.Probe(context.Background(), &Deps{Config: tt.config})

			if result.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", result.Status, tt.wantStatus)
			}
			if !reflect.DeepEqual(result.Missing, tt.wantMissing) {
				t.Errorf("Missing = %v, want %v", result.Missing, tt.wantMissing)
			}
			if result.Error != "" {
				t.Errorf("Error = %q, environment probe never sets error", result.Error)
			}
			if tt.wantStatus == StatusOK && result.Message != EnvironmentOKMessage {
				t.Errorf("Message = %q", result.Message)
			}
			if tt.wantStatus == StatusError && result.Message != "" {
				t.Errorf("Message = %q, want empty on failure", result.Message)
			}
		})
	}
}

func TestNewEnvironmentProbe_Defaults(t *testing.T) {
	probe := NewEnvironmentProbe()
	if !reflect.DeepEqual(probe.Required, DefaultRequiredEnv) {
		t.Errorf("Required = %v, want %v", probe.Required, DefaultRequiredEnv)
	}
	probe.Required[0] = "CHANGED"
	if DefaultRequiredEnv[0] == "CHANGED" {
		t.Error("NewEnvironmentProbe must copy the default list")
	}
}

func TestCacheProbe(t *testing.T) {
	ok := CacheProbe{}.Probe(context.Background(), &Deps{
		Cache: pingFunc(func(context.Context) error { return nil }),
	})
	if ok.Status != StatusOK || ok.ResponseTime == nil || ok.Timestamp.IsZero() {
		t.Errorf("healthy cache result = %+v", ok)
	}

	failed := CacheProbe{}.Probe(context.Background(), &Deps{
		Cache: pingFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") }),
	})
	if failed.Status != StatusError || failed.Error != "dial tcp: connection refused" {
		t.Errorf("failed cache result = %+v", failed)
	}

	missing := CacheProbe{}.Probe(context.Background(), &Deps{})
	if missing.Error != ErrNoCache.Error() {
		t.Errorf("missing cache result = %+v", missing)
	}
}

func TestDefaultProbes(t *testing.T) {
	var names []string
	for _, p := range DefaultProbes() {
		names = append(names, p.Name())
	}
	want := []string{"database", "supabase", "environment"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestProbeFunc(t *testing.T) {
	p := NewProbeFunc("custom", func(ctx context.Context, deps *Deps) ProbeResult {
		return OK().WithMessage("fine")
	})
	if p.Name() != "custom" {
		t.Errorf("Name() = %q", p.Name())
	}
	if got := p.Probe(context.Background(), nil); got.Message != "fine" {
		t.Errorf("Probe() = %+v", got)
	}
}
