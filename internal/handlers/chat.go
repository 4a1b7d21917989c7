package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pliu/engihub/internal/chat"
	"github.com/pliu/engihub/internal/middleware"
	"go.uber.org/zap"
)

type ChatHandler struct {
	Chat *chat.Service
	Log  *zap.Logger
}

func (h *ChatHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.Chat.Conversations(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(convs))
}

func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.Chat.History(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(messages))
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req chat.SendInput
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	msg, err := h.Chat.Send(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// ClearMessages handles DELETE /conversations/{id}/messages?mode=for_me|for_everyone.
func (h *ChatHandler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	mode := chat.ClearMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = chat.ClearForMe
	}

	n, err := h.Chat.Clear(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["id"], mode)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cleared": n})
}
