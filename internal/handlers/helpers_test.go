package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/pliu/engihub/internal/auth"
	"github.com/pliu/engihub/internal/chat"
	"github.com/pliu/engihub/internal/config"
	"github.com/pliu/engihub/internal/dispatch/dispatchtest"
	"github.com/pliu/engihub/internal/escrow"
	"github.com/pliu/engihub/internal/friends"
	"github.com/pliu/engihub/internal/models"
	"github.com/pliu/engihub/internal/notify"
	"github.com/pliu/engihub/internal/presence"
	"github.com/pliu/engihub/internal/store/sqlstore"
	"github.com/pliu/engihub/internal/store/storetest"
	"github.com/pliu/engihub/internal/ws"
)

type testEnv struct {
	store    *sqlstore.SQLStore
	signer   *auth.Signer
	rec      *dispatchtest.Recorder
	registry *presence.Registry
	router   *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := storetest.New(t)
	signer := auth.NewSigner("test-secret")
	rec := &dispatchtest.Recorder{}
	registry := presence.NewRegistry(nil)
	notifier := notify.NewService(st, rec, nil)

	router := NewRouter(Handlers{
		Auth:          &AuthHandler{Store: st, Signer: signer, InitialBalance: 100},
		Tasks:         &TaskHandler{Engine: escrow.NewEngine(st, notifier, nil)},
		Chat:          &ChatHandler{Chat: chat.NewService(st, rec, nil)},
		Notifications: &NotificationHandler{Notify: notifier},
		Friends:       &FriendHandler{Friends: friends.NewService(st, notifier, nil)},
		Realtime:      &RealtimeHandler{Hub: ws.NewHub(registry, config.WS{}, nil), Registry: registry, Signer: signer},
		Signer:        signer,
	})
	return &testEnv{store: st, signer: signer, rec: rec, registry: registry, router: router}
}

// do sends a request through the router as userID; an empty userID sends
// no session cookie.
func (e *testEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if userID != "" {
		req.AddCookie(e.signer.SessionCookie(userID))
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) user(t *testing.T, name string, balance int64) *models.User {
	return storetest.User(t, e.store, name, balance)
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("handler returned wrong status code: got %v want %v (body %s)", rr.Code, want, rr.Body.String())
	}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rr, status)
	var body errorBody
	decodeBody(t, rr, &body)
	if body.Error != code {
		t.Errorf("error code = %q, want %q", body.Error, code)
	}
}
