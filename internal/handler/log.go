package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dlanger/studyden/internal/auth"
	"github.com/dlanger/studyden/internal/model"
	"github.com/dlanger/studyden/internal/schedule"
	"github.com/dlanger/studyden/internal/store"
	"github.com/dlanger/studyden/internal/websocket"
)

type LogHandler struct {
	logStore   *store.StudyLogStore
	taskStore  *store.TaskStore
	childStore *store.ChildStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewLogHandler(ls *store.StudyLogStore, ts *store.TaskStore, cs *store.ChildStore, hub *websocket.Hub, logger *slog.Logger) *LogHandler {
	return &LogHandler{logStore: ls, taskStore: ts, childStore: cs, hub: hub, logger: logger}
}

func (h *LogHandler) broadcast(userID string, msg websocket.Message) {
	if h.hub != nil {
		h.hub.BroadcastTo(userID, msg)
	}
}

func (h *LogHandler) resolveChild(w http.ResponseWriter, r *http.Request) (childID, userID string, ok bool) {
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

type logEntry struct {
	TaskID  string `json:"task_id"`
	Minutes int    `json:"minutes"`
}

type replaceDayRequest struct {
	Logs []logEntry `json:"logs"`
}

// ReplaceDay swaps the child's complete log set for one date. Either every
// entry lands or none do.
func (h *LogHandler) ReplaceDay(w http.ResponseWriter, r *http.Request) {
	childID, userID, ok := h.resolveChild(w, r)
	if !ok {
		return
	}
	date, err := pathDate(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	var req replaceDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	seen := make(map[string]struct{}, len(req.Logs))
	items := make([]store.LogItem, 0, len(req.Logs))
	for _, e := range req.Logs {
		if e.TaskID == "" {
			writeError(w, http.StatusBadRequest, "task_id is required")
			return
		}
		if e.Minutes < 1 {
			writeError(w, http.StatusBadRequest, "minutes must be at least 1")
			return
		}
		if _, dup := seen[e.TaskID]; dup {
			writeError(w, http.StatusBadRequest, "duplicate task_id in logs")
			return
		}
		seen[e.TaskID] = struct{}{}
		items = append(items, store.LogItem{TaskID: e.TaskID, Minutes: e.Minutes})
	}

	saved, err := h.logStore.ReplaceForDate(userID, childID, date, items)
	if errors.Is(err, store.ErrTaskNotFound) {
		notFound(w, "task")
		return
	}
	if errors.Is(err, store.ErrChildNotFound) {
		notFound(w, "child")
		return
	}
	if err != nil {
		h.logger.Error("replace day logs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save logs")
		return
	}

	h.broadcast(userID, websocket.NewMessage("study_log", "replaced", childID, map[string]any{"date": date}))
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "saved_count": saved})
}

// Daily returns the child's checklist for one date: every task due that day
// merged with whatever was logged.
func (h *LogHandler) Daily(w http.ResponseWriter, r *http.Request) {
	childID, userID, ok := h.resolveChild(w, r)
	if !ok {
		return
	}
	date, err := pathDate(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	tasks, err := h.taskStore.ListByChild(childID, userID, false)
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}
	logs, err := h.logStore.ListForDate(childID, userID, date)
	if err != nil {
		h.logger.Error("list logs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}

	writeJSON(w, http.StatusOK, schedule.BuildDailyView(date, tasks, logs))
}

// Calendar returns the per-day completion status grid for a date range.
func (h *LogHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	childID, userID, ok := h.resolveChild(w, r)
	if !ok {
		return
	}
	from, to, err := queryDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD")
		return
	}

	tasks, err := h.taskStore.ListByChild(childID, userID, false)
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}
	logs, err := h.logStore.ListRange(childID, userID, from, to)
	if err != nil {
		h.logger.Error("list logs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}

	cal, err := schedule.BuildCalendar(from, to, model.Today(), tasks, logs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// Summary aggregates logged minutes over a range. Archived tasks are included
// so history keeps its attribution.
func (h *LogHandler) Summary(w http.ResponseWriter, r *http.Request) {
	childID, userID, ok := h.resolveChild(w, r)
	if !ok {
		return
	}
	from, to, err := queryDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD")
		return
	}

	tasks, err := h.taskStore.ListByChild(childID, userID, true)
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}
	logs, err := h.logStore.ListRange(childID, userID, from, to)
	if err != nil {
		h.logger.Error("list logs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}

	sum, err := schedule.BuildSummary(from, to, tasks, logs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
