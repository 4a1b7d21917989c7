// Package dispatch pushes named events to users that are currently online.
//
// A push is attempted at most once and never buffered. Callers persist the
// underlying record first; a user who is offline picks it up on the next fetch.
package dispatch

import (
	"encoding/json"

	"github.com/pliu/engihub/internal/presence"
	"go.uber.org/zap"
)

// Event names the kind of a pushed frame.
type Event string

const (
	EventNewMessage      Event = "newMessage"
	EventNewNotification Event = "newNotification"
	EventChatCleared     Event = "chatCleared"
	EventNewTaskAlert    Event = "newTaskAlert"
	EventOnlineUsers     Event = "onlineUsers"
)

// Frame is the envelope written to a live connection.
type Frame struct {
	Event Event `json:"event"`
	Data  any   `json:"data"`
}

func Encode(event Event, payload any) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: payload})
}

// Dispatcher is what the services use to reach connected users.
type Dispatcher interface {
	// Dispatch sends payload to userID if the user is present.
	Dispatch(userID string, event Event, payload any)
	// Broadcast sends payload to every present user.
	Broadcast(event Event, payload any)
}

// Transport delivers encoded frames to connections.
type Transport interface {
	// SendTo reports whether the frame was queued for connID.
	SendTo(connID string, frame []byte) bool
	BroadcastFrame(frame []byte)
}

// Live resolves users through the presence registry and hands frames to a
// Transport.
type Live struct {
	registry  *presence.Registry
	transport Transport
	log       *zap.Logger
}

var _ Dispatcher = (*Live)(nil)

func NewLive(registry *presence.Registry, transport Transport, log *zap.Logger) *Live {
	if log == nil {
		log = zap.NewNop()
	}
	return &Live{registry: registry, transport: transport, log: log.Named("dispatch")}
}

func (l *Live) Dispatch(userID string, event Event, payload any) {
	connID, ok := l.registry.Lookup(userID)
	if !ok {
		l.log.Debug("user offline, push skipped", zap.String("user", userID), zap.String("event", string(event)))
		return
	}

	frame, err := Encode(event, payload)
	if err != nil {
		l.log.Error("encode frame", zap.String("event", string(event)), zap.Error(err))
		return
	}
	if !l.transport.SendTo(connID, frame) {
		l.log.Debug("push dropped", zap.String("user", userID), zap.String("conn", connID), zap.String("event", string(event)))
	}
}

func (l *Live) Broadcast(event Event, payload any) {
	frame, err := Encode(event, payload)
	if err != nil {
		l.log.Error("encode frame", zap.String("event", string(event)), zap.Error(err))
		return
	}
	l.transport.BroadcastFrame(frame)
}
