// Package feed streams committed snapshot frames to websocket observers.
// Observers are read-only: the feed never accepts input from a connection,
// it only pushes the binary frame produced after each committed tick.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jerry-samek/tick-frame-space-sub008/internal/telemetry"
	"github.com/jerry-samek/tick-frame-space-sub008/logging"
	"github.com/jerry-samek/tick-frame-space-sub008/logging/network"
)

// writeWait bounds how long one frame write may block before the subscriber
// counts as dead.
const writeWait = 10 * time.Second

// Deps carries the feed's collaborators. Zero values are safe; a nil
// publisher is replaced with the nop publisher.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
}

func (d Deps) normalized() Deps {
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	return d
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
	addr string
}

// Feed maintains the observer registry and fans committed frames out to it.
type Feed struct {
	deps     Deps
	upgrader websocket.Upgrader

	mu       sync.Mutex
	subs     map[uint64]*subscriber
	last     []byte
	lastTick uint64
	closed   bool

	nextID atomic.Uint64
}

// New builds an empty feed.
func New(deps Deps) *Feed {
	return &Feed{
		deps: deps.normalized(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		subs: make(map[uint64]*subscriber),
	}
}

// ServeHTTP lets the feed mount directly on an HTTP mux.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.Attach(w, r)
}

// Attach upgrades the request to a websocket and registers the connection as
// an observer. The newest committed frame, when one exists, is sent as the
// greeting so late joiners see the world immediately.
func (f *Feed) Attach(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		http.Error(w, "feed closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if f.deps.Logger != nil {
			f.deps.Logger.Printf("[feed] upgrade failed for %s: %v", r.RemoteAddr, err)
		}
		return
	}

	id := f.nextID.Add(1)
	sub := &subscriber{conn: conn, addr: r.RemoteAddr}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		conn.Close()
		return
	}
	f.subs[id] = sub
	count := len(f.subs)
	greeting := f.last
	tick := f.lastTick
	f.mu.Unlock()

	if f.deps.Metrics != nil {
		f.deps.Metrics.Store("feed_subscribers", uint64(count))
	}
	network.ObserverJoined(context.Background(), f.deps.Publisher, tick, observerRef(id), network.ObserverPayload{
		RemoteAddr:  sub.addr,
		Subscribers: count,
	}, nil)

	if greeting != nil {
		if err := sub.write(greeting); err != nil {
			f.drop(id, "greeting: "+err.Error(), true)
			return
		}
	}

	go f.readLoop(id, sub)
}

// Broadcast caches the frame for future greetings and pushes it to every
// observer. Subscribers whose write fails or stalls past the deadline are
// dropped; the frame is still delivered to everyone else.
func (f *Feed) Broadcast(tick uint64, frame []byte) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.last = frame
	f.lastTick = tick
	subs := make(map[uint64]*subscriber, len(f.subs))
	for id, sub := range f.subs {
		subs[id] = sub
	}
	f.mu.Unlock()

	if f.deps.Metrics != nil {
		f.deps.Metrics.Add("feed_broadcast_total", 1)
	}
	for id, sub := range subs {
		if err := sub.write(frame); err != nil {
			f.drop(id, err.Error(), true)
		}
	}
}

// Subscribers reports how many observers are attached.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close disconnects every observer and refuses new attachments.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := f.subs
	f.subs = make(map[uint64]*subscriber)
	f.mu.Unlock()

	message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "engine shutting down")
	for _, sub := range subs {
		sub.mu.Lock()
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		sub.conn.WriteMessage(websocket.CloseMessage, message)
		sub.mu.Unlock()
		sub.conn.Close()
	}
	if f.deps.Metrics != nil {
		f.deps.Metrics.Store("feed_subscribers", 0)
	}
}

func (s *subscriber) write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// readLoop discards inbound frames until the connection errors, which is how
// an observer hanging up is noticed.
func (f *Feed) readLoop(id uint64, sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			f.drop(id, err.Error(), false)
			return
		}
	}
}

// drop removes one subscriber. It is idempotent: the broadcast path and the
// read loop may race to report the same dead connection.
func (f *Feed) drop(id uint64, reason string, lagged bool) {
	f.mu.Lock()
	sub, ok := f.subs[id]
	if ok {
		delete(f.subs, id)
	}
	count := len(f.subs)
	tick := f.lastTick
	f.mu.Unlock()
	if !ok {
		return
	}
	sub.conn.Close()

	if f.deps.Metrics != nil {
		f.deps.Metrics.Store("feed_subscribers", uint64(count))
		f.deps.Metrics.Add("feed_dropped_total", 1)
	}
	if f.deps.Logger != nil {
		f.deps.Logger.Printf("[feed] dropped observer %d (%s): %s", id, sub.addr, reason)
	}
	ctx := context.Background()
	if lagged {
		network.BroadcastLagged(ctx, f.deps.Publisher, tick, observerRef(id), network.BroadcastLaggedPayload{
			RemoteAddr: sub.addr,
			Reason:     reason,
		}, nil)
	}
	network.ObserverLeft(ctx, f.deps.Publisher, tick, observerRef(id), network.ObserverPayload{
		RemoteAddr:  sub.addr,
		Subscribers: count,
	}, nil)
}

func observerRef(id uint64) logging.EntityRef {
	return logging.EntityRef{ID: fmt.Sprintf("observer-%d", id), Kind: logging.EntityKindObserver}
}
