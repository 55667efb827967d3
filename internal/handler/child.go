package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dlanger/studyden/internal/auth"
	"github.com/dlanger/studyden/internal/model"
	"github.com/dlanger/studyden/internal/store"
	"github.com/dlanger/studyden/internal/websocket"
)

type ChildHandler struct {
	childStore *store.ChildStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewChildHandler(cs *store.ChildStore, hub *websocket.Hub, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{childStore: cs, hub: hub, logger: logger}
}

func (h *ChildHandler) broadcast(userID string, msg websocket.Message) {
	if h.hub != nil {
		h.hub.BroadcastTo(userID, msg)
	}
}

type childRequest struct {
	Name  string `json:"name"`
	Grade string `json:"grade"`
}

func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	child, err := h.childStore.Create(userID, req.Name, strings.TrimSpace(req.Grade))
	if err != nil {
		h.logger.Error("create child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create child")
		return
	}

	h.broadcast(userID, websocket.NewMessage("child", "created", child.ID, nil))
	writeJSON(w, http.StatusCreated, child)
}

func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	children, err := h.childStore.List(userID)
	if err != nil {
		h.logger.Error("list children", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list children")
		return
	}
	if children == nil {
		children = []model.Child{}
	}
	writeJSON(w, http.StatusOK, children)
}

func (h *ChildHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w, "child")
		return
	}

	child, err := h.childStore.GetByID(id, userID)
	if err != nil {
		h.logger.Error("get child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return
	}
	if child == nil {
		notFound(w, "child")
		return
	}
	writeJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w, "child")
		return
	}

	existing, err := h.childStore.GetByID(id, userID)
	if err != nil {
		h.logger.Error("get child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return
	}
	if existing == nil {
		notFound(w, "child")
		return
	}

	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	child, err := h.childStore.Update(id, userID, req.Name, strings.TrimSpace(req.Grade))
	if err != nil {
		h.logger.Error("update child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update child")
		return
	}

	h.broadcast(userID, websocket.NewMessage("child", "updated", id, nil))
	writeJSON(w, http.StatusOK, child)
}

// Delete deactivates the child; the profile and its history are kept.
func (h *ChildHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w, "child")
		return
	}

	existing, err := h.childStore.GetByID(id, userID)
	if err != nil {
		h.logger.Error("get child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return
	}
	if existing == nil {
		notFound(w, "child")
		return
	}

	if err := h.childStore.Deactivate(id, userID); err != nil {
		h.logger.Error("deactivate child", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete child")
		return
	}

	h.broadcast(userID, websocket.NewMessage("child", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
