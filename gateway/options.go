package gateway

import (
	"log/slog"
	"time"

	"github.com/flowgate/flowgate/probe"
)

// Config tunes the middleware chain around the handler.
type Config struct {
	// Timeout bounds request handling end to end; zero disables it.
	Timeout time.Duration
	// QuietdownRoutes are paths excluded from request logging.
	QuietdownRoutes []string
	// HideHeaders are request headers redacted from log records.
	HideHeaders []string
}

// Option configures NewHandler and NewServer via the functional options
// pattern.
type Option func(*options)

type options struct {
	config          Config
	logger          *slog.Logger
	prepend         []Middleware
	append          []Middleware
	readinessChecks []probe.Func
	probeTimeout    time.Duration
	validate        bool
	enableCORS      bool
	enableTimeout   bool
	enableLogging   bool
}

func defaultOptions() *options {
	return &options{
		config: Config{
			Timeout: 30 * time.Second,
		},
		logger:        slog.Default(),
		probeTimeout:  2 * time.Second,
		enableCORS:    true,
		enableTimeout: true,
		enableLogging: true,
	}
}

// WithConfig replaces the gateway configuration with the provided value.
func WithConfig(cfg Config) Option {
	configCopy := cfg
	configCopy.QuietdownRoutes = cloneStrings(cfg.QuietdownRoutes)
	configCopy.HideHeaders = cloneStrings(cfg.HideHeaders)
	return func(o *options) {
		o.config = configCopy
	}
}

// WithLogger provides the structured logger used for request traces and
// problem reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOpenAPIValidation validates incoming requests against the composed
// API's exported OpenAPI document before they reach the handler. Only
// explicitly attached methods validate; the catch-all is exported as an
// extension the validator does not route.
func WithOpenAPIValidation() Option {
	return func(o *options) {
		o.validate = true
	}
}

// WithMiddlewares prepends custom middlewares ahead of the default chain.
func WithMiddlewares(middlewares ...Middleware) Option {
	return func(o *options) {
		o.prepend = append(o.prepend, middlewares...)
	}
}

// WithTrailingMiddlewares appends middlewares after the default chain.
func WithTrailingMiddlewares(middlewares ...Middleware) Option {
	return func(o *options) {
		o.append = append(o.append, middlewares...)
	}
}

// WithReadinessChecks wires probes into the built-in status endpoint.
func WithReadinessChecks(checks ...probe.Func) Option {
	return func(o *options) {
		for _, check := range checks {
			if check != nil {
				o.readinessChecks = append(o.readinessChecks, check)
			}
		}
	}
}

// WithProbeTimeout adjusts the maximum duration allowed for status probes.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.probeTimeout = timeout
		}
	}
}

// WithoutCORSMiddleware disables preflight handling regardless of the
// composer's CORS options.
func WithoutCORSMiddleware() Option {
	return func(o *options) {
		o.enableCORS = false
	}
}

// WithoutTimeoutMiddleware disables the timeout middleware.
func WithoutTimeoutMiddleware() Option {
	return func(o *options) {
		o.enableTimeout = false
	}
}

// WithoutLoggingMiddleware disables the request logging middleware.
func WithoutLoggingMiddleware() Option {
	return func(o *options) {
		o.enableLogging = false
	}
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	cloned := make([]string, len(values))
	copy(cloned, values)
	return cloned
}
