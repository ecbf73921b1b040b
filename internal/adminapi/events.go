package adminapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	eventWriteWait  = 10 * time.Second
	eventBufferSize = 64
)

// Event is one lifecycle notification broadcast to connected admin clients:
// an approval state transition or a scheduled-task mutation.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// EventHub fans a stream of Events out to every connected websocket client.
// A slow or disconnected client never blocks a publisher: its channel is
// buffered, and when its buffer is full the event is dropped for that client
// (the client stays subscribed).
type EventHub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}

	upgrader websocket.Upgrader
}

// NewEventHub builds an empty hub ready to accept subscribers.
func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[chan Event]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Publish broadcasts an Event to every currently-connected subscriber.
func (h *EventHub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
			// slow subscriber: drop the event for it rather than block the publisher.
		}
	}
}

func (h *EventHub) subscribe() chan Event {
	ch := make(chan Event, eventBufferSize)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// handleEvents: GET /events, upgraded to a websocket stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.events.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := s.events.subscribe()
	defer s.events.unsubscribe(ch)

	for e := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
