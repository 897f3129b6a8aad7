package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flowgate/flowgate/jsonutil"
)

const (
	jsonContentType    = "application/json"
	problemContentType = "application/problem+json"
	statusDocBaseURL   = "https://httpstatuses.io"
)

// ProblemDetails aligns gateway error responses with RFC 9457 problem
// documents.
type ProblemDetails struct {
	Type      string `json:"type,omitempty"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func writeProblem(logger *slog.Logger, w http.ResponseWriter, r *http.Request, status int, err error) {
	problem := ProblemDetails{
		Type:      fmt.Sprintf("%s/%d", statusDocBaseURL, status),
		Title:     http.StatusText(status),
		Status:    status,
		Detail:    err.Error(),
		Instance:  requestInstance(r),
		TraceID:   newTraceID(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	logger.With("error", err.Error(), "traceId", problem.TraceID, "status", status).
		Log(r.Context(), level, problem.Title)

	writeJSON(logger, w, status, problem, problemContentType)
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, payload any, contentType string) {
	body, err := jsonutil.Marshal(payload)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if len(body) == 0 || body[len(body)-1] != '\n' {
		body = append(body, '\n')
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}

func requestInstance(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	return r.URL.RequestURI()
}
