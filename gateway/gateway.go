package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/flowgate/flowgate/executor"
	"github.com/flowgate/flowgate/integration"
	"github.com/flowgate/flowgate/jsonutil"
	"github.com/flowgate/flowgate/mapping"
	"github.com/flowgate/flowgate/restapi"
	"github.com/flowgate/flowgate/vtl"
)

// localStage names the deployment stage reported through $context.stage.
const localStage = "local"

// Handler executes the API's default integration for every request it
// receives. It implements http.Handler; NewServer wraps it with the
// middleware chain and built-in endpoints.
type Handler struct {
	api  *restapi.API
	exec executor.SyncExecutor
	log  *slog.Logger

	config          integration.Config
	requestTemplate string
	rules           []mapping.Rule
}

// NewHandler binds the API's catch-all integration configuration to the
// executor. A CORS-mode API carries no template or rule set of its own; the
// handler then falls back to the default set so translated execution still
// works offline.
func NewHandler(api *restapi.API, exec executor.SyncExecutor, opts ...Option) *Handler {
	settings := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(settings)
		}
	}

	cfg := api.CatchAll().Config

	templates := cfg.RequestTemplates
	if templates == nil && !cfg.Proxy {
		templates = mapping.RequestTemplates(api.Handle(), mapping.RequestContext{})
	}
	rules := cfg.IntegrationResponses
	if rules == nil {
		rules = mapping.Rules()
	}

	return &Handler{
		api:             api,
		exec:            exec,
		log:             settings.logger,
		config:          cfg,
		requestTemplate: templates[mapping.ContentTypeJSON],
		rules:           rules,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.problem(w, r, http.StatusBadRequest, fmt.Errorf("read request body: %w", err))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	input, ok := h.buildInput(w, r, body)
	if !ok {
		return
	}

	result, err := h.exec.StartSyncExecution(r.Context(), input)
	if err != nil {
		var statusErr *executor.StatusCodeError
		if errors.As(err, &statusErr) {
			h.respondClassified(w, r, statusErr)
			return
		}
		h.problem(w, r, http.StatusBadGateway, fmt.Errorf("start execution: %w", err))
		return
	}

	h.respondResult(w, r, result)
}

// buildInput translates the raw request into the execution input envelope.
// Proxy integrations forward the body untouched; otherwise the request
// mapping template is rendered and the resulting envelope parsed back.
func (h *Handler) buildInput(w http.ResponseWriter, r *http.Request, body []byte) (executor.Input, bool) {
	if h.config.Proxy {
		return executor.Input{StateMachineARN: h.api.Handle().ARN(), Input: string(body)}, true
	}

	rendered, err := vtl.Render(h.requestTemplate, vtl.Input{
		Body:    body,
		Context: requestContextVars(r),
	})
	if err != nil {
		if errors.Is(err, vtl.ErrInput) {
			h.problem(w, r, http.StatusBadRequest, err)
		} else {
			h.problem(w, r, http.StatusInternalServerError, err)
		}
		return executor.Input{}, false
	}

	var envelope struct {
		Input           string `json:"input"`
		StateMachineARN string `json:"stateMachineArn"`
	}
	if err := jsonutil.Unmarshal([]byte(rendered.Body), &envelope); err != nil {
		h.problem(w, r, http.StatusInternalServerError, fmt.Errorf("parse invocation envelope: %w", err))
		return executor.Input{}, false
	}

	return executor.Input{StateMachineARN: envelope.StateMachineARN, Input: envelope.Input}, true
}

// respondClassified renders a transport-level platform error through the
// first pattern rule matching its status signal, in declaration order.
func (h *Handler) respondClassified(w http.ResponseWriter, r *http.Request, statusErr *executor.StatusCodeError) {
	rule, ok := mapping.Match(h.rules, statusErr.Signal())
	if !ok {
		h.problem(w, r, http.StatusInternalServerError, statusErr)
		return
	}

	errDoc, err := jsonutil.Marshal(map[string]string{"error": statusErr.Message})
	if err != nil {
		h.problem(w, r, http.StatusInternalServerError, err)
		return
	}

	h.renderRule(w, r, rule, errDoc)
}

// respondResult renders a terminal execution result through the success
// rule; the template inspects the status field and overrides the HTTP
// status for failed runs.
func (h *Handler) respondResult(w http.ResponseWriter, r *http.Request, result *executor.Result) {
	doc := map[string]any{"status": string(result.Status)}
	if result.Output != "" {
		var output any
		if err := jsonutil.Unmarshal([]byte(result.Output), &output); err == nil {
			doc["output"] = output
		} else {
			doc["output"] = result.Output
		}
	}
	if result.Error != "" {
		doc["error"] = result.Error
	}
	if result.Cause != "" {
		doc["cause"] = result.Cause
	}

	body, err := jsonutil.Marshal(doc)
	if err != nil {
		h.problem(w, r, http.StatusInternalServerError, err)
		return
	}

	h.renderRule(w, r, h.successRule(), body)
}

func (h *Handler) successRule() mapping.Rule {
	for _, rule := range h.rules {
		if rule.SelectionPattern == "" {
			return rule
		}
	}
	return h.rules[0]
}

func (h *Handler) renderRule(w http.ResponseWriter, r *http.Request, rule mapping.Rule, doc []byte) {
	out, err := vtl.Render(rule.Templates[mapping.ContentTypeJSON], vtl.Input{Body: doc})
	if err != nil {
		h.problem(w, r, http.StatusInternalServerError, fmt.Errorf("render response template: %w", err))
		return
	}

	status, err := strconv.Atoi(rule.StatusCode)
	if err != nil {
		h.problem(w, r, http.StatusInternalServerError, fmt.Errorf("bad rule status code %q", rule.StatusCode))
		return
	}
	if out.StatusOverride != 0 {
		status = out.StatusOverride
	}

	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	if _, err := w.Write([]byte(out.Body)); err != nil {
		h.logger().Error("failed to write response", "error", err)
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.log == nil {
		return slog.Default()
	}
	return h.log
}

func (h *Handler) problem(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeProblem(h.logger(), w, r, status, err)
}

// requestContextVars maps the emulated request onto the $context variable
// vocabulary. Attributes without a local equivalent resolve to the empty
// string so templates never leak variable names into execution input.
func requestContextVars(r *http.Request) map[string]string {
	sourceIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		sourceIP = host
	}

	return map[string]string{
		"accountId":                              "",
		"apiId":                                  localStage,
		"authorizer.principalId":                 "",
		"httpMethod":                             r.Method,
		"stage":                                  localStage,
		"requestId":                              newTraceID(),
		"resourceId":                             "",
		"resourcePath":                           r.URL.Path,
		"identity.accountId":                     "",
		"identity.apiKey":                        "",
		"identity.caller":                        "",
		"identity.cognitoAuthenticationProvider": "",
		"identity.cognitoAuthenticationType":     "",
		"identity.cognitoIdentityId":             "",
		"identity.cognitoIdentityPoolId":         "",
		"identity.sourceIp":                      sourceIP,
		"identity.user":                          "",
		"identity.userAgent":                     r.UserAgent(),
		"identity.userArn":                       "",
	}
}
