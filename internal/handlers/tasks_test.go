package handlers

import (
	"net/http"
	"testing"

	"github.com/pliu/engihub/internal/dispatch"
	"github.com/pliu/engihub/internal/escrow"
	"github.com/pliu/engihub/internal/models"
	"github.com/pliu/engihub/internal/store/storetest"
)

func TestTaskLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", 50)
	helper := env.user(t, "helper", 0)

	rr := env.do(t, "POST", "/tasks", owner.ID, escrow.CreateTaskInput{Title: "Lab report", Bounty: 20})
	expectStatus(t, rr, http.StatusCreated)
	var task models.Task
	decodeBody(t, rr, &task)

	if got := storetest.Balance(t, env.store, owner.ID); got != 30 {
		t.Errorf("owner balance = %d, want 30", got)
	}
	if len(env.rec.Broadcasts(dispatch.EventNewTaskAlert)) != 1 {
		t.Error("Expected a newTaskAlert broadcast")
	}

	rr = env.do(t, "POST", "/tasks/"+task.ID+"/offers", helper.ID, OfferRequest{Message: "me!"})
	expectStatus(t, rr, http.StatusCreated)
	var offer models.Offer
	decodeBody(t, rr, &offer)

	// Only the owner may accept.
	rr = env.do(t, "POST", "/tasks/"+task.ID+"/offers/"+offer.ID+"/accept", helper.ID, nil)
	expectErrorCode(t, rr, http.StatusForbidden, "UNAUTHORIZED")

	rr = env.do(t, "POST", "/tasks/"+task.ID+"/offers/"+offer.ID+"/accept", owner.ID, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &task)
	if task.Status != models.TaskInProgress || task.ConversationID == "" {
		t.Errorf("unexpected task after accept %+v", task)
	}

	rr = env.do(t, "POST", "/tasks/"+task.ID+"/offers/"+offer.ID+"/accept", owner.ID, nil)
	expectErrorCode(t, rr, http.StatusConflict, "INVALID_STATE")

	rr = env.do(t, "DELETE", "/tasks/"+task.ID, owner.ID, nil)
	expectErrorCode(t, rr, http.StatusConflict, "INVALID_STATE")

	rr = env.do(t, "POST", "/tasks/"+task.ID+"/complete", owner.ID, nil)
	expectStatus(t, rr, http.StatusOK)
	if got := storetest.Balance(t, env.store, helper.ID); got != 20 {
		t.Errorf("helper balance = %d, want 20", got)
	}
}

func TestCreateTaskInsufficientFundsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", 5)

	rr := env.do(t, "POST", "/tasks", owner.ID, escrow.CreateTaskInput{Title: "Too rich", Bounty: 6})
	expectErrorCode(t, rr, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS")

	rr = env.do(t, "POST", "/tasks", owner.ID, "not an object")
	expectErrorCode(t, rr, http.StatusBadRequest, "INVALID_INPUT")
}

func TestTaskReadsAndUpdates(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", 50)
	other := env.user(t, "other", 50)

	rr := env.do(t, "POST", "/tasks", owner.ID, escrow.CreateTaskInput{Title: "Essay", Bounty: 10})
	expectStatus(t, rr, http.StatusCreated)
	var task models.Task
	decodeBody(t, rr, &task)

	var open []models.Task
	rr = env.do(t, "GET", "/tasks", other.ID, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &open)
	if len(open) != 1 {
		t.Errorf("Expected 1 open task, got %d", len(open))
	}

	var mine []models.Task
	rr = env.do(t, "GET", "/tasks/mine", other.ID, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &mine)
	if len(mine) != 0 {
		t.Errorf("Expected no tasks for other, got %d", len(mine))
	}

	var detail escrow.TaskDetail
	rr = env.do(t, "GET", "/tasks/"+task.ID, other.ID, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &detail)
	if detail.Task == nil || detail.Title != "Essay" || detail.Offers == nil {
		t.Errorf("unexpected detail %+v", detail)
	}

	bounty := int64(25)
	rr = env.do(t, "PATCH", "/tasks/"+task.ID, owner.ID, escrow.UpdateTaskInput{Bounty: &bounty})
	expectStatus(t, rr, http.StatusOK)
	if got := storetest.Balance(t, env.store, owner.ID); got != 25 {
		t.Errorf("owner balance = %d, want 25", got)
	}

	rr = env.do(t, "PATCH", "/tasks/"+task.ID, other.ID, escrow.UpdateTaskInput{Bounty: &bounty})
	expectErrorCode(t, rr, http.StatusForbidden, "UNAUTHORIZED")

	rr = env.do(t, "DELETE", "/tasks/"+task.ID, owner.ID, nil)
	expectStatus(t, rr, http.StatusNoContent)
	if got := storetest.Balance(t, env.store, owner.ID); got != 50 {
		t.Errorf("owner balance = %d, want 50", got)
	}

	rr = env.do(t, "GET", "/tasks/"+task.ID, owner.ID, nil)
	expectErrorCode(t, rr, http.StatusNotFound, "NOT_FOUND")
}

func TestRejectOfferOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner", 50)
	helper := env.user(t, "helper", 0)

	rr := env.do(t, "POST", "/tasks", owner.ID, escrow.CreateTaskInput{Title: "Essay", Bounty: 10})
	var task models.Task
	decodeBody(t, rr, &task)
	rr = env.do(t, "POST", "/tasks/"+task.ID+"/offers", helper.ID, nil)
	expectStatus(t, rr, http.StatusCreated)
	var offer models.Offer
	decodeBody(t, rr, &offer)

	rr = env.do(t, "POST", "/tasks/"+task.ID+"/offers/"+offer.ID+"/reject", owner.ID, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &offer)
	if offer.Status != models.OfferRejected {
		t.Errorf("offer status = %s, want rejected", offer.Status)
	}
}
