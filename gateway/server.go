package gateway

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/flowgate/flowgate/executor"
	"github.com/flowgate/flowgate/probe"
	"github.com/flowgate/flowgate/restapi"
)

// Built-in endpoint paths.
const (
	StatusPath  = "/__gateway/status"
	OpenAPIPath = "/__gateway/openapi.json"
	DocsPath    = "/__gateway/docs"
)

var docsTemplate = template.Must(template.New("gateway-docs").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <script src="https://unpkg.com/@stoplight/elements/web-components.min.js"></script>
  <link rel="stylesheet" href="https://unpkg.com/@stoplight/elements/styles.min.css">
</head>
<body>
  <elements-api apiDescriptionUrl="{{.SpecURL}}" router="hash" layout="sidebar"></elements-api>
</body>
</html>
`))

// NewServer returns a mux serving the API through the middleware-wrapped
// handler, plus the built-in status, OpenAPI document, and docs viewer
// endpoints. The exported document is rendered once at construction.
func NewServer(api *restapi.API, exec executor.SyncExecutor, opts ...Option) (*http.ServeMux, error) {
	settings := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(settings)
		}
	}

	doc, err := api.OpenAPI()
	if err != nil {
		return nil, fmt.Errorf("export openapi document: %w", err)
	}
	specJSON, err := api.OpenAPIJSON()
	if err != nil {
		return nil, fmt.Errorf("serialize openapi document: %w", err)
	}

	handler := NewHandler(api, exec, WithLogger(settings.logger))
	chain := settings.middlewareChain(api.CORS(), doc)

	mux := http.NewServeMux()
	mux.Handle("/", applyMiddlewares(handler, chain))
	mux.HandleFunc(StatusPath, statusHandler(settings))
	mux.HandleFunc(OpenAPIPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", jsonContentType)
		if _, err := w.Write(specJSON); err != nil {
			settings.logger.Error("failed to write openapi document", "error", err)
		}
	})
	mux.HandleFunc(DocsPath, docsHandler(settings, api.Name()))
	return mux, nil
}

type statusPayload struct {
	Status  string   `json:"status"`
	Details []string `json:"details,omitempty"`
}

func statusHandler(settings *options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := runChecks(r.Context(), settings.readinessChecks, settings.probeTimeout); err != nil {
			writeProblem(settings.logger, w, r, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(settings.logger, w, http.StatusOK, statusPayload{Status: "HEALTHY"}, jsonContentType)
	}
}

func runChecks(ctx context.Context, checks []probe.Func, timeout time.Duration) error {
	if len(checks) == 0 {
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for idx, check := range checks {
		if check == nil {
			continue
		}
		if err := check(probeCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("probe %d timed out after %s", idx+1, timeout)
			}
			return fmt.Errorf("probe %d failed: %w", idx+1, err)
		}
	}
	return nil
}

func docsHandler(settings *options, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		data := map[string]string{
			"Title":   title,
			"SpecURL": OpenAPIPath,
		}
		if err := docsTemplate.Execute(w, data); err != nil {
			settings.logger.Error("failed to render docs page", "error", err)
		}
	}
}
