package handlers

import (
	"net/http"

	"github.com/pliu/engihub/internal/auth"
	"github.com/pliu/engihub/internal/presence"
	"github.com/pliu/engihub/internal/ws"
)

type RealtimeHandler struct {
	Hub      *ws.Hub
	Registry *presence.Registry
	Signer   *auth.Signer
}

// Connect upgrades an authenticated request to a live connection.
func (h *RealtimeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, err := h.Signer.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	ws.ServeWs(h.Hub, w, r, userID)
}

// Online returns the users that currently hold a live connection.
func (h *RealtimeHandler) Online(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.Online())
}
