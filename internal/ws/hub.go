package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pliu/engihub/internal/config"
	"github.com/pliu/engihub/internal/dispatch"
	"github.com/pliu/engihub/internal/presence"
	"go.uber.org/zap"
)

// InboundHandler receives the frames clients send to the server.
type InboundHandler interface {
	HandleFrame(ctx context.Context, userID string, event string, data json.RawMessage) error
}

type directed struct {
	connID string
	frame  []byte
	queued chan bool
}

// Hub owns every live connection. All changes to the connection set happen
// on the Run goroutine.
type Hub struct {
	// Connected clients by connection ID.
	clients map[string]*Client

	// Frames for every client.
	broadcast chan []byte

	// Frames for a single connection.
	direct chan directed

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	registry *presence.Registry
	inbound  InboundHandler
	cfg      config.WS
	log      *zap.Logger
	done     chan struct{}
}

var _ dispatch.Transport = (*Hub)(nil)

func NewHub(registry *presence.Registry, cfg config.WS, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.WriteTimeout.Duration <= 0 {
		cfg.WriteTimeout.Duration = 10 * time.Second
	}
	if cfg.PongTimeout.Duration <= 0 {
		cfg.PongTimeout.Duration = 60 * time.Second
	}
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte),
		direct:     make(chan directed),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		registry:   registry,
		cfg:        cfg,
		log:        log.Named("ws"),
		done:       make(chan struct{}),
	}
}

// SetInboundHandler installs the handler for client frames. Call it before
// Run.
func (h *Hub) SetInboundHandler(ih InboundHandler) {
	h.inbound = ih
}

// Run serves the hub until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
				h.registry.Unregister(id)
			}
			return
		case client := <-h.register:
			h.clients[client.connID] = client
			h.registry.Register(client.userID, client.connID)
			h.log.Info("client connected", zap.String("user", client.userID), zap.String("conn", client.connID))
			h.publishOnline()
		case client := <-h.unregister:
			if _, ok := h.clients[client.connID]; ok {
				h.drop(client)
				h.publishOnline()
			}
		case msg := <-h.direct:
			client, ok := h.clients[msg.connID]
			if ok && !h.push(client, msg.frame) {
				ok = false
				h.publishOnline()
			}
			msg.queued <- ok
		case frame := <-h.broadcast:
			if h.pushAll(frame) {
				h.publishOnline()
			}
		}
	}
}

// drop removes a client and its presence entry.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client.connID)
	close(client.send)
	h.registry.Unregister(client.connID)
	h.log.Info("client disconnected", zap.String("user", client.userID), zap.String("conn", client.connID))
}

// push queues frame for client and disconnects it if its buffer is full.
func (h *Hub) push(client *Client, frame []byte) bool {
	select {
	case client.send <- frame:
		return true
	default:
		h.log.Warn("slow consumer disconnected", zap.String("user", client.userID), zap.String("conn", client.connID))
		h.drop(client)
		return false
	}
}

// pushAll reports whether any client was dropped.
func (h *Hub) pushAll(frame []byte) bool {
	dropped := false
	for _, client := range h.clients {
		if !h.push(client, frame) {
			dropped = true
		}
	}
	return dropped
}

// publishOnline sends the current online list to every client. Clients
// dropped while doing so trigger another round.
func (h *Hub) publishOnline() {
	for {
		frame, err := dispatch.Encode(dispatch.EventOnlineUsers, h.registry.Online())
		if err != nil {
			h.log.Error("encode online users", zap.Error(err))
			return
		}
		if !h.pushAll(frame) {
			return
		}
	}
}

// SendTo queues frame for a single connection.
func (h *Hub) SendTo(connID string, frame []byte) bool {
	queued := make(chan bool, 1)
	select {
	case h.direct <- directed{connID: connID, frame: frame, queued: queued}:
	case <-h.done:
		return false
	}
	return <-queued
}

func (h *Hub) BroadcastFrame(frame []byte) {
	select {
	case h.broadcast <- frame:
	case <-h.done:
	}
}

func newConnID() string {
	return uuid.NewString()
}
