package handlers

import (
	"net/http"
	"testing"

	"github.com/pliu/engihub/internal/chat"
	"github.com/pliu/engihub/internal/dispatch"
	"github.com/pliu/engihub/internal/models"
)

func TestSendAndFetchMessages(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", 0)
	bob := env.user(t, "bob", 0)

	rr := env.do(t, "POST", "/messages", alice.ID, chat.SendInput{RecipientID: bob.ID, Content: "Hello World"})
	expectStatus(t, rr, http.StatusCreated)
	var msg models.Message
	decodeBody(t, rr, &msg)

	if len(env.rec.To(bob.ID, dispatch.EventNewMessage)) != 1 {
		t.Error("Expected newMessage dispatch to bob")
	}

	var convs []models.Conversation
	rr = env.do(t, "GET", "/conversations", bob.ID, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &convs)
	if len(convs) != 1 || convs[0].ID != msg.ConversationID {
		t.Fatalf("unexpected conversations %+v", convs)
	}

	var messages []models.Message
	rr = env.do(t, "GET", "/conversations/"+msg.ConversationID+"/messages", bob.ID, nil)
	expectStatus(t, rr, http.StatusOK)
	decodeBody(t, rr, &messages)
	if len(messages) != 1 || messages[0].Content != "Hello World" {
		t.Errorf("unexpected messages %+v", messages)
	}

	carol := env.user(t, "carol", 0)
	rr = env.do(t, "GET", "/conversations/"+msg.ConversationID+"/messages", carol.ID, nil)
	expectErrorCode(t, rr, http.StatusForbidden, "UNAUTHORIZED")
}

func TestClearMessages(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", 0)
	bob := env.user(t, "bob", 0)

	rr := env.do(t, "POST", "/messages", alice.ID, chat.SendInput{RecipientID: bob.ID, Content: "one"})
	var msg models.Message
	decodeBody(t, rr, &msg)
	path := "/conversations/" + msg.ConversationID + "/messages"

	rr = env.do(t, "DELETE", path, alice.ID, nil)
	expectStatus(t, rr, http.StatusOK)

	var messages []models.Message
	rr = env.do(t, "GET", path, alice.ID, nil)
	decodeBody(t, rr, &messages)
	if len(messages) != 0 {
		t.Errorf("Expected history hidden for alice, got %d", len(messages))
	}
	rr = env.do(t, "GET", path, bob.ID, nil)
	decodeBody(t, rr, &messages)
	if len(messages) != 1 {
		t.Errorf("Expected history kept for bob, got %d", len(messages))
	}

	rr = env.do(t, "DELETE", path+"?mode=for_everyone", bob.ID, nil)
	expectStatus(t, rr, http.StatusOK)
	if len(env.rec.To(alice.ID, dispatch.EventChatCleared)) != 1 {
		t.Error("Expected chatCleared dispatch to alice")
	}

	rr = env.do(t, "DELETE", path+"?mode=bogus", bob.ID, nil)
	expectErrorCode(t, rr, http.StatusBadRequest, "INVALID_INPUT")
}
