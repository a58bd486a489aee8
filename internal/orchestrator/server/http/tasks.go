package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/agent"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/service"
	"github.com/wisesdn-io/wisesdn/pkg/log"
)

const (
	// HeaderServerAgent lists the insight agents that contributed to a response.
	HeaderServerAgent = "X-Server-Agent"

	defaultMaxBodyBytes = 1 << 20

	maxResponseMargin = 5 * time.Second
)

// handler turns task requests into service calls.
type handler struct {
	svc      *service.Service
	insights agent.Capability
	maxBody  int64
	budget   time.Duration // per-task deadline, zero for none
	now      func() time.Time
	logger   log.Logger
}

func newHandler(svc *service.Service, insights agent.Capability, maxBody int64) *handler {
	if insights == nil {
		insights = agent.Unavailable{}
	}
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &handler{
		svc:      svc,
		insights: insights,
		maxBody:  maxBody,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   log.WithName("tasks"),
	}
}

// action runs one request variant of a task.
type action func(ctx context.Context, body []byte) (any, error)

// task is one /tasks route and the closed set of actions it accepts.
type task struct {
	name string
	// defaultAction is used when the body names no action.
	defaultAction string
	// aliases are further body fields read as the action name.
	aliases []string
	actions map[string]action
}

func (t *task) agentName() string {
	return t.name + "-agent"
}

func (t *task) actionName(fields map[string]json.RawMessage) string {
	for _, key := range append([]string{"action"}, t.aliases...) {
		var name string
		if raw, ok := fields[key]; ok && json.Unmarshal(raw, &name) == nil && name != "" {
			return name
		}
	}
	return t.defaultAction
}

func (h *handler) tasks() []*task {
	return []*task{
		h.planExecutionTask(),
		h.planValidationTask(),
		h.algorithmExecutionTask(),
		h.deviceOrchestrationTask(),
		h.deploymentMonitoringTask(),
		h.networkConfigurationTask(),
		h.accessControlTask(),
		h.flowOrchestrationTask(),
		h.flowValidationTask(),
		h.flowExecutionTask(),
		h.topologyMonitoringTask(),
	}
}

// normalizer folds the field aliases of a request into its canonical fields.
type normalizer interface {
	normalize()
}

// bind decodes the body into a fresh T, normalizes it and passes it to fn.
func bind[T any](fn func(ctx context.Context, req *T) (any, error)) action {
	return func(ctx context.Context, body []byte) (any, error) {
		req := new(T)
		if err := json.Unmarshal(body, req); err != nil {
			return nil, decodeError(err)
		}
		if n, ok := any(req).(normalizer); ok {
			n.normalize()
		}
		return fn(ctx, req)
	}
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return core.InvalidField(typeErr.Field, "must be "+typeErr.Type.String())
	}
	return core.InvalidField("body", err.Error())
}

func (h *handler) serveTask(t *task) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := h.logger.WithValues("route", t.name)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
				return
			}
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		if len(bytes.TrimSpace(body)) == 0 {
			body = []byte("{}")
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
			writeError(w, http.StatusBadRequest, "request body must be a JSON object")
			return
		}

		name := t.actionName(fields)
		if name == "" {
			h.fail(w, logger, core.MissingField("action"))
			return
		}
		run, ok := t.actions[name]
		if !ok {
			h.fail(w, logger, core.UnknownAction(name))
			return
		}

		logger = logger.WithValues("action", name)
		ctx := log.WithContext(r.Context(), logger)
		if h.budget > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.budget)
			defer cancel()
		}
		start := time.Now()

		out, err := h.invoke(ctx, run, body)
		switch {
		case errors.Is(err, core.ErrUnavailable):
			logger.Error(err, "Task dependency failed")
			out = map[string]any{"status": "error", "message": err.Error()}
		case err != nil:
			h.fail(w, logger, err)
			return
		}

		out["server_agent"] = t.agentName()
		out["timestamp"] = h.now().Format(time.RFC3339)
		h.attachInsights(ctx, w, logger, t, body, out)

		logger.Debug("Task handled", "duration", time.Since(start).String())
		writeJSON(w, http.StatusOK, out)
	}
}

// invoke runs the action and converts its result into a JSON object. A panic
// is reported as an internal error.
func (h *handler) invoke(ctx context.Context, run action, body []byte) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task action: %v", r)
		}
	}()

	result, err := run(ctx, body)
	if err != nil {
		return nil, err
	}
	return toObject(result)
}

func (h *handler) fail(w http.ResponseWriter, logger log.Logger, err error) {
	if core.IsClientError(err) {
		logger.Debug("Rejected task request", "error", err.Error())
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Error(err, "Task failed")
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// attachInsights adds agent output to out. Failures never change the response.
func (h *handler) attachInsights(ctx context.Context, w http.ResponseWriter, logger log.Logger, t *task, body []byte, out map[string]any) {
	if !h.insights.Available() {
		return
	}
	insight, err := h.insights.Insight(ctx, t.name, json.RawMessage(body))
	if err != nil {
		logger.Warn("Agent insight unavailable", "error", err.Error())
		return
	}
	if insight == nil {
		return
	}

	out["agent_insights"] = insight.Data
	agents := insight.Agents
	if len(agents) == 0 {
		agents = []string{t.agentName()}
	}
	w.Header().Set(HeaderServerAgent, strings.Join(agents, ","))
}

// toObject returns v as a JSON object. Values that do not encode to an object
// are wrapped under "result".
func toObject(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode task result: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode task result: %w", err)
	}
	if m, ok := decoded.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"result": decoded}, nil
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Status: "error", Message: message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to encode response")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
