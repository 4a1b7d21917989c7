// Package dispatchtest provides a Dispatcher that records calls instead of
// opening connections.
package dispatchtest

import (
	"sync"

	"github.com/pliu/engihub/internal/dispatch"
)

type Call struct {
	UserID  string // empty for broadcasts
	Event   dispatch.Event
	Payload any
}

type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

var _ dispatch.Dispatcher = (*Recorder)(nil)

func (r *Recorder) Dispatch(userID string, event dispatch.Event, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{UserID: userID, Event: event, Payload: payload})
}

func (r *Recorder) Broadcast(event dispatch.Event, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Event: event, Payload: payload})
}

// Calls returns a copy of everything recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// To returns the calls addressed to userID with the given event.
func (r *Recorder) To(userID string, event dispatch.Event) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.UserID == userID && c.Event == event {
			out = append(out, c)
		}
	}
	return out
}

// Broadcasts returns the broadcast calls with the given event.
func (r *Recorder) Broadcasts(event dispatch.Event) []Call {
	return r.To("", event)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
