package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dlanger/studyden/internal/auth"
	"github.com/dlanger/studyden/internal/model"
	"github.com/dlanger/studyden/internal/schedule"
	"github.com/dlanger/studyden/internal/store"
	"github.com/dlanger/studyden/internal/websocket"
)

type TaskHandler struct {
	taskStore  *store.TaskStore
	childStore *store.ChildStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, cs *store.ChildStore, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{taskStore: ts, childStore: cs, hub: hub, logger: logger}
}

func (h *TaskHandler) broadcast(userID string, msg websocket.Message) {
	if h.hub != nil {
		h.hub.BroadcastTo(userID, msg)
	}
}

// resolveChild loads the child under the caller's ownership and writes the
// not-found response itself when it cannot.
func (h *TaskHandler) resolveChild(w http.ResponseWriter, r *http.Request) (childID, userID string, ok bool) {
	userID = auth.UserID(r.Context())
	childID, valid := pathID(r, "child_id")
	if !valid {
		notFound(w, "child")
		return "", "", false
	}
	child, err := h.childStore.GetByID(childID, userID)
	if err != nil {
		h.logger.Error("get child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return "", "", false
	}
	if child == nil {
		notFound(w, "child")
		return "", "", false
	}
	return childID, userID, true
}

type taskRequest struct {
	Name           string      `json:"name"`
	Subject        string      `json:"subject"`
	Description    string      `json:"description"`
	DefaultMinutes int         `json:"default_minutes"`
	DaysMask       int         `json:"days_mask"`
	IsArchived     bool        `json:"is_archived"`
	StartDate      *model.Date `json:"start_date"`
	EndDate        *model.Date `json:"end_date"`
	SortOrder      int         `json:"sort_order"`
}

func (req *taskRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Subject = strings.TrimSpace(req.Subject)
	switch {
	case req.Name == "":
		return "name is required"
	case req.Subject == "":
		return "subject is required"
	case req.DefaultMinutes < 1:
		return "default_minutes must be at least 1"
	case !schedule.ValidMask(req.DaysMask):
		return "days_mask must be between 1 and 127"
	case req.StartDate != nil && req.EndDate != nil && req.StartDate.After(*req.EndDate):
		return "start_date must not be after end_date"
	}
	return ""
}

func (req *taskRequest) toTask(userID, childID string) model.Task {
	return model.Task{
		UserID:         userID,
		ChildID:        childID,
		Name:           req.Name,
		Subject:        req.Subject,
		Description:    req.Description,
		DefaultMinutes: req.DefaultMinutes,
		DaysMask:       req.DaysMask,
		IsArchived:     req.IsArchived,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		SortOrder:      req.SortOrder,
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	childID, userID, ok := h.resolveChild(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	task, err := h.taskStore.Create(req.toTask(userID, childID))
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.broadcast(userID, websocket.NewMessage("task", "created", task.ID, nil))
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	childID, userID, ok := h.resolveChild(w, r)
	if !ok {
		return
	}

	includeArchived := r.URL.Query().Get("include_archived") == "true"
	tasks, err := h.taskStore.ListByChild(childID, userID, includeArchived)
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	childID, userID, ok := h.resolveChild(w, r)
	if !ok {
		return
	}
	id, valid := pathID(r, "id")
	if !valid {
		notFound(w, "task")
		return
	}

	task, err := h.taskStore.GetByID(id, childID, userID)
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if task == nil {
		notFound(w, "task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Update replaces every mutable field of the task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	childID, userID, ok := h.resolveChild(w, r)
	if !ok {
		return
	}
	id, valid := pathID(r, "id")
	if !valid {
		notFound(w, "task")
		return
	}

	existing, err := h.taskStore.GetByID(id, childID, userID)
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if existing == nil {
		notFound(w, "task")
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	task, err := h.taskStore.Update(id, childID, userID, req.toTask(userID, childID))
	if err != nil {
		h.logger.Error("update task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	h.broadcast(userID, websocket.NewMessage("task", "updated", id, nil))
	writeJSON(w, http.StatusOK, task)
}

// taskPatchRequest distinguishes absent fields (leave unchanged) from
// explicit nulls (clear) for the two optional dates via raw JSON.
type taskPatchRequest struct {
	Name           *string         `json:"name"`
	Subject        *string         `json:"subject"`
	Description    *string         `json:"description"`
	DefaultMinutes *int            `json:"default_minutes"`
	DaysMask       *int            `json:"days_mask"`
	IsArchived     *bool           `json:"is_archived"`
	SortOrder      *int            `json:"sort_order"`
	StartDate      json.RawMessage `json:"start_date"`
	EndDate        json.RawMessage `json:"end_date"`
}

func optDate(raw json.RawMessage) (store.OptDate, error) {
	if raw == nil {
		return store.OptDate{}, nil
	}
	if string(raw) == "null" {
		return store.OptDate{Set: true}, nil
	}
	var d model.Date
	if err := json.Unmarshal(raw, &d); err != nil {
		return store.OptDate{}, err
	}
	return store.OptDate{Set: true, Date: &d}, nil
}

func (h *TaskHandler) Patch(w http.ResponseWriter, r *http.Request) {
	childID, userID, ok := h.resolveChild(w, r)
	if !ok {
		return
	}
	id, valid := pathID(r, "id")
	if !valid {
		notFound(w, "task")
		return
	}

	var req taskPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name must not be empty")
		return
	}
	if req.Subject != nil && strings.TrimSpace(*req.Subject) == "" {
		writeError(w, http.StatusBadRequest, "subject must not be empty")
		return
	}
	if req.DefaultMinutes != nil && *req.DefaultMinutes < 1 {
		writeError(w, http.StatusBadRequest, "default_minutes must be at least 1")
		return
	}
	if req.DaysMask != nil && !schedule.ValidMask(*req.DaysMask) {
		writeError(w, http.StatusBadRequest, "days_mask must be between 1 and 127")
		return
	}

	patch := store.TaskPatch{
		Name:           req.Name,
		Subject:        req.Subject,
		Description:    req.Description,
		DefaultMinutes: req.DefaultMinutes,
		DaysMask:       req.DaysMask,
		IsArchived:     req.IsArchived,
		SortOrder:      req.SortOrder,
	}
	var err error
	if patch.StartDate, err = optDate(req.StartDate); err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD or null")
		return
	}
	if patch.EndDate, err = optDate(req.EndDate); err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD or null")
		return
	}

	task, err := h.taskStore.Patch(id, childID, userID, patch)
	if errors.Is(err, store.ErrInvalidDateRange) {
		writeError(w, http.StatusBadRequest, "start_date must not be after end_date")
		return
	}
	if err != nil {
		h.logger.Error("patch task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}
	if task == nil {
		notFound(w, "task")
		return
	}

	h.broadcast(userID, websocket.NewMessage("task", "updated", id, nil))
	writeJSON(w, http.StatusOK, task)
}

// Delete archives the task; its log history stays attributable.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	childID, userID, ok := h.resolveChild(w, r)
	if !ok {
		return
	}
	id, valid := pathID(r, "id")
	if !valid {
		notFound(w, "task")
		return
	}

	archived := true
	task, err := h.taskStore.Patch(id, childID, userID, store.TaskPatch{IsArchived: &archived})
	if err != nil {
		h.logger.Error("archive task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to archive task")
		return
	}
	if task == nil {
		notFound(w, "task")
		return
	}

	h.broadcast(userID, websocket.NewMessage("task", "archived", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

type sortRequest struct {
	TaskIDs []string `json:"task_ids"`
}

// Reorder assigns display order by payload position. Ids outside the child's
// task set make the whole call fail with not-found.
func (h *TaskHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	childID, userID, ok := h.resolveChild(w, r)
	if !ok {
		return
	}

	var req sortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	err := h.taskStore.UpdateSortOrder(childID, userID, req.TaskIDs)
	if errors.Is(err, store.ErrTaskNotFound) {
		notFound(w, "task")
		return
	}
	if err != nil {
		h.logger.Error("reorder tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reorder tasks")
		return
	}

	h.broadcast(userID, websocket.NewMessage("task", "reordered", childID, nil))
	writeJSON(w, http.StatusOK, map[string]int{"updated": len(req.TaskIDs)})
}
