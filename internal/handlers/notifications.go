package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pliu/engihub/internal/middleware"
	"github.com/pliu/engihub/internal/notify"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	Notify *notify.Service
	Log    *zap.Logger
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Notify.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Notify.MarkRead(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notify.MarkAllRead(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Notify.Delete(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notify.DeleteAll(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
