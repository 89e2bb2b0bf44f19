// Package sse streams editor events (card reloads, preview invalidation and
// export progress) to browsers over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Stream settings.
const (
	heartbeatInterval = 25 * time.Second
	retryMillis       = 2000
	clientBuffer      = 64
	// backlogSize is how many recent events a reconnecting client can replay.
	backlogSize = 32
)

// Event is one server-sent event. ID is assigned by the broker.
type Event struct {
	ID   uint64
	Type string
	Data any
}

func (e Event) frame() ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", e.ID, e.Type, payload), nil
}

type subscription struct {
	ch     chan []byte
	lastID uint64
}

type sent struct {
	id  uint64
	raw []byte
}

// Broker fans events out to connected editors.
//
// One goroutine owns the client set, the replay backlog and the preview
// throttle; the exported methods talk to it over channels.
type Broker struct {
	previewMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	eventCh       chan Event
	cardCh        chan string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that sends at most one preview.invalidated per
// previewThrottle. Card events inside the window are folded into a single
// trailing invalidation.
func NewBroker(previewThrottle time.Duration) *Broker {
	if previewThrottle <= 0 {
		previewThrottle = 500 * time.Millisecond
	}

	b := &Broker{
		previewMin:    previewThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		eventCh:       make(chan Event, 256),
		cardCh:        make(chan string, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)

	var (
		clients     = make(map[chan []byte]struct{})
		backlog     []sent
		nextID      uint64
		lastPreview time.Time
		trailing    *time.Timer
		trailingC   <-chan time.Time
	)
	defer func() {
		if trailing != nil {
			trailing.Stop()
		}
	}()

	send := func(typ string, data any) {
		nextID++
		raw, err := Event{ID: nextID, Type: typ, Data: data}.frame()
		if err != nil {
			return
		}
		backlog = append(backlog, sent{id: nextID, raw: raw})
		if len(backlog) > backlogSize {
			backlog = backlog[len(backlog)-backlogSize:]
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; it can catch up through Last-Event-ID.
			}
		}
	}
	invalidate := func(now time.Time) {
		lastPreview = now
		send("preview.invalidated", struct{}{})
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			if sub.lastID > 0 {
				for _, s := range backlog {
					if s.id > sub.lastID {
						sub.ch <- s.raw
					}
				}
			}
			clients[sub.ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.eventCh:
			send(ev.Type, ev.Data)

		case kind := <-b.cardCh:
			send("card."+kind, struct{}{})
			now := time.Now()
			switch wait := b.previewMin - now.Sub(lastPreview); {
			case wait <= 0:
				invalidate(now)
			case trailingC == nil:
				trailing = time.NewTimer(wait)
				trailingC = trailing.C
			}

		case now := <-trailingC:
			trailingC = nil
			invalidate(now)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. Events newer than lastID still held in the
// backlog are queued first; lastID 0 means a fresh connection.
func (b *Broker) Subscribe(lastID uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, lastID: lastID}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// PublishCardEvent sends card.<kind> followed, subject to the throttle, by
// preview.invalidated.
func (b *Broker) PublishCardEvent(kind string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.cardCh <- kind:
	case <-b.stopped:
	}
}

// PublishExportEvent sends export.<kind> for the given format. An empty
// detail is left out of the payload.
func (b *Broker) PublishExportEvent(kind, format, detail string) {
	if b.closed.Load() {
		return
	}
	data := map[string]string{"format": format}
	if detail != "" {
		data["detail"] = detail
	}
	select {
	case b.eventCh <- Event{Type: "export." + kind, Data: data}:
	case <-b.stopped:
	}
}

// ServeHTTP is the stream endpoint (GET /api/events). A Last-Event-ID header
// replays what the client missed while reconnecting.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	ch := b.Subscribe(lastID)
	defer b.Unsubscribe(ch)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
