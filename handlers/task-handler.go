package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jayampathiw/task-escrow/middleware"
	"github.com/jayampathiw/task-escrow/models"
	"github.com/jayampathiw/task-escrow/services"

	"github.com/gorilla/mux"
)

type TaskHandler struct {
	service *services.TaskService
}

func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// writeError maps the error taxonomy to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, models.ErrTaskNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrTransferFailed):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	address, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "Caller identity missing", http.StatusUnauthorized)
		return "", false
	}
	return address, true
}

func taskID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	idStr := mux.Vars(r)["taskID"]
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid task ID format", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		Description string `json:"description"`
		Deadline    int64  `json:"deadline"` // unix seconds
		Amount      int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	task, err := h.service.CreateTask(r.Context(), address, req.Description, time.Unix(req.Deadline, 0), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) AcceptTask(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := h.service.AcceptTask(r.Context(), address, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req struct {
		DeliverableLink string `json:"deliverableLink"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	task, err := h.service.SubmitTask(r.Context(), address, id, req.DeliverableLink)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) ApproveTask(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := h.service.ApproveTask(r.Context(), address, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DisputeTask(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := h.service.DisputeTask(r.Context(), address, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := h.service.CancelTask(r.Context(), address, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := h.service.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) GetAllTasks(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}

	tasks, err := h.service.GetAllTasks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetClientTasks(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.GetTasksByClient(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetFreelancerTasks(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.GetTasksByFreelancer(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskCount(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}

	count, err := h.service.GetTaskCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]uint64{"count": count})
}

func (h *TaskHandler) GetTaskEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	events, err := h.service.GetTaskEvents(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []models.TaskEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}
