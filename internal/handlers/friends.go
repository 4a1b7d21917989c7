package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pliu/engihub/internal/friends"
	"github.com/pliu/engihub/internal/middleware"
	"go.uber.org/zap"
)

type FriendHandler struct {
	Friends *friends.Service
	Log     *zap.Logger
}

type FriendRequestBody struct {
	UserID string `json:"userId"`
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	var req FriendRequestBody
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	fr, err := h.Friends.SendRequest(r.Context(), middleware.UserID(r.Context()), req.UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, fr)
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.Friends.Accept(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Friends.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(users))
}
