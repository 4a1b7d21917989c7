package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pliu/engihub/internal/auth"
	"github.com/pliu/engihub/internal/middleware"
	"go.uber.org/zap"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth          *AuthHandler
	Tasks         *TaskHandler
	Chat          *ChatHandler
	Notifications *NotificationHandler
	Friends       *FriendHandler
	Realtime      *RealtimeHandler
	Signer        *auth.Signer
	Log           *zap.Logger
}

func NewRouter(h Handlers) *mux.Router {
	if h.Log == nil {
		h.Log = zap.NewNop()
	}

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(h.Log))

	// Public endpoints
	r.HandleFunc("/signup", h.Auth.Signup).Methods("POST")
	r.HandleFunc("/login", h.Auth.Login).Methods("POST")
	r.HandleFunc("/logout", h.Auth.Logout).Methods("POST")

	// WebSocket endpoint, authenticated from the cookie on the upgrade request
	r.HandleFunc("/ws", h.Realtime.Connect)

	api := r.NewRoute().Subrouter()
	api.Use(middleware.AuthMiddleware(h.Signer))

	api.HandleFunc("/me", h.Auth.Me).Methods("GET")
	api.HandleFunc("/users/search", h.Auth.SearchUsers).Methods("GET")
	api.HandleFunc("/presence", h.Realtime.Online).Methods("GET")

	api.HandleFunc("/tasks", h.Tasks.ListOpen).Methods("GET")
	api.HandleFunc("/tasks", h.Tasks.Create).Methods("POST")
	api.HandleFunc("/tasks/mine", h.Tasks.ListMine).Methods("GET")
	api.HandleFunc("/tasks/{id}", h.Tasks.Get).Methods("GET")
	api.HandleFunc("/tasks/{id}", h.Tasks.Update).Methods("PATCH")
	api.HandleFunc("/tasks/{id}", h.Tasks.Delete).Methods("DELETE")
	api.HandleFunc("/tasks/{id}/complete", h.Tasks.Complete).Methods("POST")
	api.HandleFunc("/tasks/{id}/offers", h.Tasks.SubmitOffer).Methods("POST")
	api.HandleFunc("/tasks/{id}/offers/{offerID}/accept", h.Tasks.AcceptOffer).Methods("POST")
	api.HandleFunc("/tasks/{id}/offers/{offerID}/reject", h.Tasks.RejectOffer).Methods("POST")

	api.HandleFunc("/conversations", h.Chat.GetConversations).Methods("GET")
	api.HandleFunc("/conversations/{id}/messages", h.Chat.GetMessages).Methods("GET")
	api.HandleFunc("/conversations/{id}/messages", h.Chat.ClearMessages).Methods("DELETE")
	api.HandleFunc("/messages", h.Chat.SendMessage).Methods("POST")

	api.HandleFunc("/notifications", h.Notifications.List).Methods("GET")
	api.HandleFunc("/notifications", h.Notifications.DeleteAll).Methods("DELETE")
	api.HandleFunc("/notifications/read", h.Notifications.MarkAllRead).Methods("POST")
	api.HandleFunc("/notifications/{id}/read", h.Notifications.MarkRead).Methods("POST")
	api.HandleFunc("/notifications/{id}", h.Notifications.Delete).Methods("DELETE")

	api.HandleFunc("/friends", h.Friends.List).Methods("GET")
	api.HandleFunc("/friends/requests", h.Friends.SendRequest).Methods("POST")
	api.HandleFunc("/friends/requests/{id}/accept", h.Friends.AcceptRequest).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NOT_FOUND", Message: "no such route"})
	})
	return r
}
