package health

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the wire format for every timestamp in a report:
// ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Status is the outcome of a probe or of a whole report.
type Status int

const (
	// StatusOK indicates the dependency answered correctly.
	StatusOK Status = iota
	// StatusError indicates the dependency failed or a precondition is unmet.
	StatusError
)

// String returns the wire representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseStatus parses the wire representation of a status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "ok":
		return StatusOK, nil
	case "error":
		return StatusError, nil
	default:
		return StatusError, fmt.Errorf("health: unknown status %q", s)
	}
}

// MarshalJSON encodes the status as "ok" or "error".
func (s Status) MarshalJSON() ([]byte, error) {
	if s != StatusOK && s != StatusError {
		return nil, fmt.Errorf("health: cannot marshal status %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes "ok" or "error".
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ResponseTimeFormat selects how a ResponseTime is written on the wire.
type ResponseTimeFormat int

const (
	// ResponseTimeMillis writes a JSON number of milliseconds.
	ResponseTimeMillis ResponseTimeFormat = iota
	// ResponseTimeString writes a JSON string such as "23ms".
	ResponseTimeString
)

// ResponseTime is the measured duration of a probe's dependency call.
type ResponseTime struct {
	Duration time.Duration
	Format   ResponseTimeFormat
}

// Millis returns a response time serialized as a bare number.
func Millis(d time.Duration) *ResponseTime {
	return &ResponseTime{Duration: d, Format: ResponseTimeMillis}
}

// MillisString returns a response time serialized as "<n>ms".
func MillisString(d time.Duration) *ResponseTime {
	return &ResponseTime{Duration: d, Format: ResponseTimeString}
}

// Milliseconds returns the duration in whole milliseconds.
func (r ResponseTime) Milliseconds() int64 {
	return r.Duration.Milliseconds()
}

// String returns the "<n>ms" form regardless of Format.
func (r ResponseTime) String() string {
	return strconv.FormatInt(r.Milliseconds(), 10) + "ms"
}

// MarshalJSON writes the duration in the configured format.
func (r ResponseTime) MarshalJSON() ([]byte, error) {
	if r.Format == ResponseTimeString {
		return json.Marshal(r.String())
	}
	return []byte(strconv.FormatInt(r.Milliseconds(), 10)), nil
}

// UnmarshalJSON accepts both the numeric and the "<n>ms" forms.
func (r *ResponseTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		ms, err := strconv.ParseFloat(strings.TrimSuffix(raw, "ms"), 64)
		if err != nil {
			return fmt.Errorf("health: invalid response time %q", raw)
		}
		*r = ResponseTime{Duration: time.Duration(ms * float64(time.Millisecond)), Format: ResponseTimeString}
		return nil
	}
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("health: invalid response time %s", data)
	}
	*r = ResponseTime{Duration: time.Duration(ms * float64(time.Millisecond)), Format: ResponseTimeMillis}
	return nil
}

// ProbeResult is the outcome of a single probe.
//
// A successful result carries at most one detail payload (Version or
// Message). A failed result carries Error, or Missing for the environment
// probe, and no detail.
type ProbeResult struct {
	// Status is the probe outcome.
	Status Status

	// ResponseTime is the duration of the dependency call, for probes that
	// perform I/O and succeeded.
	ResponseTime *ResponseTime

	// Timestamp is when the probe completed. Zero means absent.
	Timestamp time.Time

	// Version is the identifier returned by the backing store.
	Version string

	// Message is a human-readable confirmation.
	Message string

	// Error is the failure message.
	Error string

	// Missing lists absent required configuration keys, in declared order.
	Missing []string
}

// OK creates a successful result.
func OK() ProbeResult {
	return ProbeResult{Status: StatusOK}
}

// Failure creates a failed result from err.
func Failure(err error) ProbeResult {
	if err == nil {
		err = ErrProbeFailed
	}
	return ProbeResult{Status: StatusError, Error: err.Error()}
}

// MissingKeys creates a failed result listing absent configuration keys.
func MissingKeys(keys []string) ProbeResult {
	missing := make([]string, len(keys))
	copy(missing, keys)
	return ProbeResult{Status: StatusError, Missing: missing}
}

// WithResponseTime sets the response time on a result.
func (r ProbeResult) WithResponseTime(rt *ResponseTime) ProbeResult {
	r.ResponseTime = rt
	return r
}

// WithTimestamp sets the completion time on a result.
func (r ProbeResult) WithTimestamp(t time.Time) ProbeResult {
	r.Timestamp = t
	return r
}

// WithVersion sets the store version detail on a result.
func (r ProbeResult) WithVersion(v string) ProbeResult {
	r.Version = v
	return r
}

// WithMessage sets the confirmation message on a result.
func (r ProbeResult) WithMessage(msg string) ProbeResult {
	r.Message = msg
	return r
}

// Err returns the failure as an error, or nil for a successful result.
func (r ProbeResult) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	if r.Error != "" {
		return errors.New(r.Error)
	}
	if len(r.Missing) > 0 {
		return fmt.Errorf("missing: %s", strings.Join(r.Missing, ", "))
	}
	return ErrProbeFailed
}

type probeResultJSON struct {
	Status       Status        `json:"status"`
	ResponseTime *ResponseTime `json:"responseTime,omitempty"`
	Timestamp    string        `json:"timestamp,omitempty"`
	Version      string        `json:"version,omitempty"`
	Message      string        `json:"message,omitempty"`
	Error        string        `json:"error,omitempty"`
	Missing      []string      `json:"missing,omitempty"`
}

// MarshalJSON writes the result with absent fields omitted.
func (r ProbeResult) MarshalJSON() ([]byte, error) {
	out := probeResultJSON{
		Status:       r.Status,
		ResponseTime: r.ResponseTime,
		Version:      r.Version,
		Message:      r.Message,
		Error:        r.Error,
		Missing:      r.Missing,
	}
	if !r.Timestamp.IsZero() {
		out.Timestamp = FormatTimestamp(r.Timestamp)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a result written by MarshalJSON.
func (r *ProbeResult) UnmarshalJSON(data []byte) error {
	var in probeResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	ts, err := parseOptionalTimestamp(in.Timestamp)
	if err != nil {
		return err
	}
	*r = ProbeResult{
		Status:       in.Status,
		ResponseTime: in.ResponseTime,
		Timestamp:    ts,
		Version:      in.Version,
		Message:      in.Message,
		Error:        in.Error,
		Missing:      in.Missing,
	}
	return nil
}

// Report is the health snapshot returned for one request.
type Report struct {
	// Status is StatusError iff any entry in Checks is StatusError.
	Status Status

	// Timestamp is when the report was generated.
	Timestamp time.Time

	// Service identifies the reporting service.
	Service string

	// Version is the reporting service's version.
	Version string

	// Checks holds one result per probe name. Nil for a basic report.
	Checks map[string]ProbeResult

	// order is the probe registration order used when writing Checks.
	order []string
}

// Detailed reports whether the report carries per-probe checks.
func (r Report) Detailed() bool {
	return r.Checks != nil
}

// CheckNames returns the probe names in report order: registration order
// for aggregator-built reports, sorted otherwise.
func (r Report) CheckNames() []string {
	if len(r.order) == len(r.Checks) {
		names := make([]string, 0, len(r.order))
		for _, name := range r.order {
			if _, ok := r.Checks[name]; ok {
				names = append(names, name)
			}
		}
		if len(names) == len(r.Checks) {
			return names
		}
	}
	names := make([]string, 0, len(r.Checks))
	for name := range r.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type reportJSON struct {
	Status    Status          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Service   string          `json:"service"`
	Version   string          `json:"version"`
	Checks    json.RawMessage `json:"checks,omitempty"`
}

// MarshalJSON writes the report. Checks are written in report order and
// omitted entirely for a basic report.
func (r Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		Status:    r.Status,
		Timestamp: FormatTimestamp(r.Timestamp),
		Service:   r.Service,
		Version:   r.Version,
	}
	if r.Checks != nil {
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, name := range r.CheckNames() {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(name)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(r.Checks[name])
			if err != nil {
				return nil, fmt.Errorf("health: marshal check %q: %w", name, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
		out.Checks = buf.Bytes()
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a report written by MarshalJSON.
func (r *Report) UnmarshalJSON(data []byte) error {
	var in reportJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	ts, err := parseOptionalTimestamp(in.Timestamp)
	if err != nil {
		return err
	}
	out := Report{
		Status:    in.Status,
		Timestamp: ts,
		Service:   in.Service,
		Version:   in.Version,
	}
	if len(in.Checks) > 0 && !bytes.Equal(in.Checks, []byte("null")) {
		if err := json.Unmarshal(in.Checks, &out.Checks); err != nil {
			return fmt.Errorf("health: decode checks: %w", err)
		}
		if out.Checks == nil {
			out.Checks = map[string]ProbeResult{}
		}
	}
	*r = out
	return nil
}

// FormatTimestamp formats t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func parseOptionalTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("health: invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// RollUp computes the overall status of a set of checks: StatusError if
// any check errored, StatusOK otherwise (including for an empty set).
func RollUp(checks map[string]ProbeResult) Status {
	for _, result := range checks {
		if result.Status != StatusOK {
			return StatusError
		}
	}
	return StatusOK
}
