package health

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/healthops/observe"
)

// Route suffixes served by the handler. Matching is by suffix so the
// handler works behind any mount prefix such as /functions/v1.
const (
	BasicPath    = "/health"
	DetailedPath = "/health/detailed"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-Id"

// Default CORS values.
const (
	DefaultAllowOrigin  = "*"
	DefaultAllowHeaders = "authorization, x-client-info, apikey, content-type"
)

// HandlerConfig configures the HTTP handler.
type HandlerConfig struct {
	// AllowOrigin is sent as Access-Control-Allow-Origin. Default: "*"
	AllowOrigin string

	// AllowHeaders is sent as Access-Control-Allow-Headers.
	AllowHeaders string

	// Logger receives one entry per request. Default: no logging.
	Logger observe.Logger
}

// ErrorResponse is the body of a 500 response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a boundary-level failure.
type ErrorDetail struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type handler struct {
	svc    *Service
	config HandlerConfig
}

// NewHandler returns the HTTP routing shim for svc:
//
//	OPTIONS *           200 "ok" (CORS preflight)
//	.../health/detailed 200 detailed report (also when degraded)
//	.../health          200 basic report
//	anything else       404 {"error":"Not Found"}
//
// A connector failure on the detailed route yields a 500 ErrorResponse.
func NewHandler(svc *Service, config HandlerConfig) http.Handler {
	if config.AllowOrigin == "" {
		config.AllowOrigin = DefaultAllowOrigin
	}
	if config.AllowHeaders == "" {
		config.AllowHeaders = DefaultAllowHeaders
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &handler{svc: svc, config: config}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(HeaderRequestID, requestID)
	w.Header().Set("Access-Control-Allow-Origin", h.config.AllowOrigin)
	w.Header().Set("Access-Control-Allow-Headers", h.config.AllowHeaders)

	code := h.route(w, r)

	h.config.Logger.Info(ctx, "health request",
		observe.Field{Key: "request_id", Value: requestID},
		observe.Field{Key: "method", Value: r.Method},
		observe.Field{Key: "path", Value: r.URL.Path},
		observe.Field{Key: "status", Value: code},
		observe.Field{Key: "duration_ms", Value: float64(time.Since(start).Milliseconds())},
	)
}

func (h *handler) route(w http.ResponseWriter, r *http.Request) int {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return http.StatusOK
	}

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, DetailedPath):
		report, err := h.svc.Detailed(r.Context())
		if err != nil {
			h.config.Logger.Error(r.Context(), "detailed health failed",
				observe.Field{Key: "error", Value: err.Error()},
			)
			return writeJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error: ErrorDetail{Message: err.Error(), Status: http.StatusInternalServerError},
			})
		}
		return writeJSON(w, http.StatusOK, report)
	case strings.HasSuffix(path, BasicPath):
		return writeJSON(w, http.StatusOK, h.svc.Basic(r.Context()))
	default:
		return writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) int {
	data, err := json.Marshal(body)
	if err != nil {
		code = http.StatusInternalServerError
		data, _ = json.Marshal(ErrorResponse{
			Error: ErrorDetail{Message: err.Error(), Status: code},
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
	return code
}

// RegisterHandlers mounts the handler for both routes on mux.
func RegisterHandlers(mux *http.ServeMux, svc *Service, config HandlerConfig) {
	h := NewHandler(svc, config)
	mux.Handle(BasicPath, h)
	mux.Handle(DetailedPath, h)
}
