// Package server exposes the task application service over a small JSON HTTP
// API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	apptask "github.com/slok/agentd/internal/app/task"
	"github.com/slok/agentd/internal/log"
	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/storage"
)

// Config is the configuration for the HTTP handler.
type Config struct {
	TaskService *apptask.Service
	Logger      log.Logger
}

func (c *Config) defaults() error {
	if c.TaskService == nil {
		return fmt.Errorf("task service is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "server.HTTP"})
	return nil
}

type handler struct {
	tasks  *apptask.Service
	logger log.Logger
}

// New returns the API routes mounted on a fresh mux.
func New(cfg Config) (http.Handler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	h := handler{tasks: cfg.TaskService, logger: cfg.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/tasks", h.createTask)
	mux.HandleFunc("GET /api/v1/tasks", h.listTasks)
	mux.HandleFunc("GET /api/v1/tasks/stats", h.taskStats)
	mux.HandleFunc("GET /api/v1/tasks/{id}", h.getTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/cancel", h.cancelTask)
	mux.HandleFunc("GET /healthz", h.health)

	return mux, nil
}

// CreateTaskRequest is the payload for submitting a task.
type CreateTaskRequest struct {
	Objective string                 `json:"objective"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// TaskResponse is the JSON representation of a task.
type TaskResponse struct {
	ID        string                 `json:"id"`
	Objective string                 `json:"objective"`
	Context   map[string]interface{} `json:"context,omitempty"`
	State     string                 `json:"state"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Logs      []LogEntryResponse     `json:"logs"`
	Steps     []StepResponse         `json:"steps"`
	Result    *TaskResultResponse    `json:"result,omitempty"`
}

// LogEntryResponse is the JSON representation of a task log entry.
type LogEntryResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// StepResponse is the JSON representation of an executed step.
type StepResponse struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// TaskResultResponse is the JSON representation of a task result.
type TaskResultResponse struct {
	Success      bool                   `json:"success"`
	Output       string                 `json:"output"`
	Error        string                 `json:"error,omitempty"`
	ActionsTaken []ActionRecordResponse `json:"actions_taken"`
}

// ActionRecordResponse is the JSON representation of a recorded action.
type ActionRecordResponse struct {
	Tool       string                 `json:"tool"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Result     string                 `json:"result,omitempty"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	DurationMS int64                  `json:"duration_ms"`
}

// ListTasksResponse is the JSON envelope of a task listing.
type ListTasksResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

// StatsResponse is the JSON representation of the task counters.
type StatsResponse struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	task, err := h.tasks.Create(r.Context(), req.Objective, req.Context)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, mapTask(task))
}

func (h handler) listTasks(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{}
	if raw := r.URL.Query().Get("state"); raw != "" {
		state, err := model.ParseTaskState(raw)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		opts.State = &state
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		opts.Limit = limit
	}

	tasks, err := h.tasks.List(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := ListTasksResponse{Tasks: make([]TaskResponse, 0, len(tasks)), Total: len(tasks)}
	for i := range tasks {
		resp.Tasks = append(resp.Tasks, mapTask(&tasks[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h handler) taskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tasks.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatsResponse{
		Total:     stats.Total,
		Pending:   stats.Pending,
		Running:   stats.Running,
		Completed: stats.Completed,
		Failed:    stats.Failed,
		Cancelled: stats.Cancelled,
	})
}

func (h handler) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, mapTask(task))
}

func (h handler) cancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, mapTask(task))
}

func (h handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h handler) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotValid):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrNotCancellable), errors.Is(err, model.ErrAlreadyTerminal), errors.Is(err, model.ErrIllegalTransition):
		status = http.StatusConflict
	}

	h.writeError(w, status, err)
}

func (h handler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Errorf("Request failed: %v", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Errorf("Could not encode response: %v", err)
	}
}

func mapTask(task *model.Task) TaskResponse {
	resp := TaskResponse{
		ID:        task.ID,
		Objective: task.Objective,
		Context:   task.Context,
		State:     string(task.State),
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
		Logs:      make([]LogEntryResponse, 0, len(task.Logs)),
		Steps:     make([]StepResponse, 0, len(task.Steps)),
	}

	for _, entry := range task.Logs {
		resp.Logs = append(resp.Logs, LogEntryResponse{Timestamp: entry.Timestamp, Message: entry.Message})
	}
	for _, step := range task.Steps {
		resp.Steps = append(resp.Steps, StepResponse{Timestamp: step.Timestamp, Description: step.Description})
	}

	if task.Result != nil {
		result := TaskResultResponse{
			Success:      task.Result.Success,
			Output:       task.Result.Output,
			Error:        task.Result.Error,
			ActionsTaken: make([]ActionRecordResponse, 0, len(task.Result.ActionsTaken)),
		}
		for _, record := range task.Result.ActionsTaken {
			result.ActionsTaken = append(result.ActionsTaken, ActionRecordResponse{
				Tool:       record.Tool,
				Params:     record.Params,
				Result:     record.Result,
				Success:    record.Success,
				Error:      record.Error,
				DurationMS: record.Duration.Milliseconds(),
			})
		}
		resp.Result = &result
	}

	return resp
}
