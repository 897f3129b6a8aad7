package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapiMW "github.com/oapi-codegen/nethttp-middleware"

	"github.com/flowgate/flowgate/restapi"
)

// Middleware wraps an http.Handler to produce a new http.Handler.
type Middleware func(http.Handler) http.Handler

func (o *options) middlewareChain(cors *restapi.CORSOptions, doc *openapi3.T) []Middleware {
	chain := make([]Middleware, 0, len(o.prepend)+len(o.append)+4)
	chain = append(chain, o.prepend...)

	if o.validate && doc != nil {
		chain = append(chain, oapiMiddleware(doc))
	}
	if o.enableCORS && cors != nil && len(cors.Origins) > 0 {
		chain = append(chain, corsMiddleware(*cors))
	}
	if o.enableTimeout && o.config.Timeout > 0 {
		chain = append(chain, timeoutMiddleware(o.config.Timeout))
	}
	if o.enableLogging && o.logger != nil {
		chain = append(chain, loggingMiddleware(o.logger, o.config.QuietdownRoutes, o.config.HideHeaders))
	}

	chain = append(chain, o.append...)
	return chain
}

func applyMiddlewares(handler http.Handler, middlewares []Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		middleware := middlewares[i]
		if middleware == nil {
			continue
		}
		handler = middleware(handler)
	}
	return handler
}

func oapiMiddleware(doc *openapi3.T) Middleware {
	return func(next http.Handler) http.Handler {
		// Server names are unknown in the emulator; clearing them skips
		// server matching during validation.
		doc.Servers = nil

		validatorOptions := &oapiMW.Options{
			Options: openapi3filter.Options{
				AuthenticationFunc: func(c context.Context, input *openapi3filter.AuthenticationInput) error {
					return nil
				},
			},
		}
		return oapiMW.OapiRequestValidatorWithOptions(doc, validatorOptions)(next)
	}
}

// corsMiddleware answers preflight requests from the composer's CORS
// options and adds origin headers to matching requests.
func corsMiddleware(cfg restapi.CORSOptions) Middleware {
	originsCopy := cloneStrings(cfg.Origins)
	methodsCopy := cloneStrings(cfg.Methods)
	headersCopy := cloneStrings(cfg.Headers)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if allowedOrigin(origin, originsCopy) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(methodsCopy, ","))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(headersCopy, ","))
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, "Timeout")
	}
}

func loggingMiddleware(logger *slog.Logger, quietdownRoutes []string, hideHeaders []string) Middleware {
	quietRoutesCopy := cloneStrings(quietdownRoutes)
	redactedCopy := cloneStrings(hideHeaders)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !shouldQuietRoute(r.URL.Path, quietRoutesCopy) {
				headers := cloneHeaders(r.Header)
				redactHeaders(headers, redactedCopy)

				attrs := []any{
					"Path", r.URL.Path,
					"Method", r.Method,
					"Header", headers,
				}
				if r.ContentLength > 0 {
					attrs = append(attrs, "ContentLength", r.ContentLength)
				}

				logger.With(attrs...).Debug("Request")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allowedOrigin(origin string, allowed []string) bool {
	for _, candidate := range allowed {
		if candidate == "*" || candidate == origin {
			return true
		}
	}
	return false
}

func shouldQuietRoute(path string, quietdownRoutes []string) bool {
	for _, quietPath := range quietdownRoutes {
		if path == quietPath {
			return true
		}
	}
	return false
}

func cloneHeaders(src http.Header) http.Header {
	headers := make(http.Header, len(src))
	for k, v := range src {
		copied := make([]string, len(v))
		copy(copied, v)
		headers[k] = copied
	}
	return headers
}

func redactHeaders(headers http.Header, hideHeaders []string) {
	for _, header := range hideHeaders {
		canonical := http.CanonicalHeaderKey(header)
		values, exists := headers[canonical]
		if !exists {
			continue
		}

		redactedLen := 0
		for _, value := range values {
			redactedLen += len(value)
		}
		headers[canonical] = []string{fmt.Sprintf("[REDACTED - %d bytes]", redactedLen)}
	}
}
