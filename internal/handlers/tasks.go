package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pliu/engihub/internal/escrow"
	"github.com/pliu/engihub/internal/middleware"
	"go.uber.org/zap"
)

type TaskHandler struct {
	Engine *escrow.Engine
	Log    *zap.Logger
}

type OfferRequest struct {
	Message string `json:"message"`
}

func (h *TaskHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Engine.ListOpenTasks(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tasks))
}

func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Engine.ListOwnTasks(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tasks))
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.Engine.GetTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	task.Offers = orEmpty(task.Offers)
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req escrow.CreateTaskInput
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	task, err := h.Engine.CreateTask(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req escrow.UpdateTaskInput
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	task, err := h.Engine.UpdateTask(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteTask(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context())); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	task, err := h.Engine.CompleteTask(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	var req OfferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	offer, err := h.Engine.SubmitOffer(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()), req.Message)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (h *TaskHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	task, err := h.Engine.AcceptOffer(r.Context(), vars["id"], vars["offerID"], middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) RejectOffer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	offer, err := h.Engine.RejectOffer(r.Context(), vars["id"], vars["offerID"], middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}
