package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/healthops/health"
)

// Environment keys read by ConfigFromLookup.
const (
	EnvURL         = "SUPABASE_URL"
	EnvAnonKey     = "SUPABASE_ANON_KEY"
	EnvAccessToken = "SUPABASE_ACCESS_TOKEN"
	EnvJWTSecret   = "SUPABASE_JWT_SECRET"
)

// DefaultVersionFunction is the RPC that reports the database version.
const DefaultVersionFunction = "get_db_version"

// Config configures a Client.
type Config struct {
	// URL is the project URL, e.g. https://xyz.supabase.co.
	URL string

	// AnonKey is sent as the apikey header on every request.
	AnonKey string

	// AccessToken is the user session JWT. Empty means no active session.
	AccessToken string

	// JWTSecret verifies AccessToken with HS256 when set. When empty the
	// token's claims are read without verification.
	JWTSecret string

	// VersionFunction is the RPC called by Version.
	// Default: "get_db_version"
	VersionFunction string

	// Timeout bounds each request.
	// Default: 5 seconds
	Timeout time.Duration

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
}

// ConfigFromLookup reads the SUPABASE_* keys from lookup.
func ConfigFromLookup(lookup health.Lookuper) Config {
	get := func(key string) string {
		if lookup == nil {
			return ""
		}
		v, _ := lookup.Lookup(key)
		return strings.TrimSpace(v)
	}
	return Config{
		URL:         get(EnvURL),
		AnonKey:     get(EnvAnonKey),
		AccessToken: get(EnvAccessToken),
		JWTSecret:   get(EnvJWTSecret),
	}
}

// Client talks to one Supabase project.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

// New creates a client. It fails if the URL or anon key is missing or the
// URL does not parse.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrMissingURL
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, ErrMissingKey
	}
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("supabase: invalid project URL %q", cfg.URL)
	}
	if cfg.VersionFunction == "" {
		cfg.VersionFunction = DefaultVersionFunction
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    httpClient,
	}, nil
}

// Version calls the version RPC and returns its answer. An empty answer is
// returned as "".
func (c *Client) Version(ctx context.Context) (string, error) {
	path := "/rest/v1/rpc/" + url.PathEscape(c.cfg.VersionFunction)
	body, err := c.do(ctx, http.MethodPost, path, []byte("{}"))
	if err != nil {
		return "", err
	}
	return decodeVersion(body)
}

// Session confirms the auth service answers and returns the configured
// session, or nil when there is none or it has expired.
func (c *Client) Session(ctx context.Context) (*health.Session, error) {
	if _, err := c.do(ctx, http.MethodGet, "/auth/v1/health", nil); err != nil {
		return nil, err
	}
	if c.cfg.AccessToken == "" {
		return nil, nil
	}
	return parseSession(c.cfg.AccessToken, c.cfg.JWTSecret)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.cfg.AnonKey)
	bearer := c.cfg.AnonKey
	if c.cfg.AccessToken != "" {
		bearer = c.cfg.AccessToken
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("supabase %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Path: path, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// decodeVersion accepts the shapes PostgREST produces for a scalar or
// set-returning function: "v", {"version":"v"} or [{"version":"v"}].
func decodeVersion(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return "", nil
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("supabase: decode version: %w", err)
	}
	if rows, ok := raw.([]any); ok {
		if len(rows) == 0 {
			return "", nil
		}
		raw = rows[0]
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case map[string]any:
		for _, key := range []string{"version", "get_db_version"} {
			if s, ok := v[key].(string); ok {
				return s, nil
			}
		}
		for _, value := range v {
			if s, ok := value.(string); ok {
				return s, nil
			}
		}
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}

// errorMessage extracts the message from a PostgREST or GoTrue error body.
func errorMessage(body []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, key := range []string{"message", "msg", "error_description", "error"} {
			if s, ok := parsed[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(body))
}

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func parseSession(token, secret string) (*health.Session, error) {
	claims := &sessionClaims{}
	var err error
	if secret == "" {
		_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	} else {
		_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	session := &health.Session{
		UserID: claims.Subject,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
