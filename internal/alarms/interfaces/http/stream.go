package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	alarmapp "plant-scada/internal/alarms/application"
)

// subscriberBuffer bounds how far a slow client may fall behind before
// frames are dropped for it.
const subscriberBuffer = 32

// SSEBroker fans alarm lifecycle events out to every connected stream
// client. Slow clients lose frames instead of blocking the alarm path.
type SSEBroker struct {
	mu          sync.Mutex
	subscribers map[int]chan []byte
	nextID      int
}

// NewSSEBroker constructs a broker with no subscribers.
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{subscribers: make(map[int]chan []byte)}
}

// Notify implements alarmapp.Notifier by broadcasting the event as JSON.
func (b *SSEBroker) Notify(_ context.Context, event alarmapp.LifecycleEvent) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- payload:
		default:
		}
	}
}

// subscribe registers a stream client and returns its channel plus a
// cancel func that detaches and closes it.
func (b *SSEBroker) subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount reports the number of attached stream clients.
func (b *SSEBroker) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// StreamHandler serves GET /api/v1/alarms/stream as server-sent events.
type StreamHandler struct {
	broker *SSEBroker
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *SSEBroker) *StreamHandler {
	return &StreamHandler{broker: broker}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := h.broker.subscribe()
	defer cancel()

	writeFrame(w, "ready", []byte("{}"))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload, open := <-events:
			if !open {
				return
			}
			writeFrame(w, "alarm", payload)
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, event string, data []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
