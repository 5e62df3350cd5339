package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	subscriberSend = 64
)

// Filter narrows the events a subscriber receives. Zero values match everything.
type Filter struct {
	SubjectID *uint
	Types     map[string]bool
}

func (f Filter) matches(ev Event) bool {
	if f.SubjectID != nil && ev.SubjectID != *f.SubjectID {
		return false
	}
	if len(f.Types) > 0 && !f.Types[ev.Type] {
		return false
	}
	return true
}

// FilterFromQuery reads ?subject_id= and ?types=a,b from the request.
func FilterFromQuery(r *http.Request) Filter {
	var f Filter
	q := r.URL.Query()
	if raw := q.Get("subject_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			v := uint(id)
			f.SubjectID = &v
		}
	}
	if raw := q.Get("types"); raw != "" {
		f.Types = make(map[string]bool)
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Types[t] = true
			}
		}
	}
	return f
}

type subscriber struct {
	conn   *websocket.Conn
	filter Filter
	send   chan Event
}

// Hub fans published events out to websocket subscribers.
type Hub struct {
	subscribers map[*subscriber]struct{}
	join        chan *subscriber
	leave       chan *subscriber
	events      chan Event
	done        chan struct{}
	mu          sync.RWMutex
	log         *zap.Logger
}

var _ Publisher = (*Hub)(nil)

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		join:        make(chan *subscriber),
		leave:       make(chan *subscriber),
		events:      make(chan Event, 256),
		done:        make(chan struct{}),
		log:         log.Named("hub"),
	}
}

// Run serves joins, leaves and deliveries until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.subscribers {
				h.drop(s)
			}
			h.mu.Unlock()
			return
		case s := <-h.join:
			h.mu.Lock()
			h.subscribers[s] = struct{}{}
			h.mu.Unlock()
		case s := <-h.leave:
			h.mu.Lock()
			if _, ok := h.subscribers[s]; ok {
				h.drop(s)
			}
			h.mu.Unlock()
		case ev := <-h.events:
			h.mu.Lock()
			for s := range h.subscribers {
				if !s.filter.matches(ev) {
					continue
				}
				select {
				case s.send <- ev:
				default:
					h.log.Warn("disconnecting slow feed subscriber", zap.String("remote", s.conn.RemoteAddr().String()))
					h.drop(s)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(s *subscriber) {
	close(s.send)
	delete(h.subscribers, s)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish queues an event for delivery. A full queue drops the event.
func (h *Hub) Publish(_ context.Context, event Event) error {
	select {
	case h.events <- event:
	default:
		h.log.Warn("dropping event, hub queue full", zap.String("type", event.Type), zap.Uint("subject_id", event.SubjectID))
	}
	return nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS subscribes the connection with a filter taken from the query string.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.Subscribe(w, r, FilterFromQuery(r))
}

// Subscribe upgrades the connection and streams matching events until either side closes.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, filter Filter) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	s := &subscriber{conn: conn, filter: filter, send: make(chan Event, subscriberSend)}
	select {
	case h.join <- s:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(s)
	h.readPump(s)

	select {
	case h.leave <- s:
	case <-h.done:
	}
}

// readPump discards client messages and keeps the read deadline fresh on pongs.
func (h *Hub) readPump(s *subscriber) {
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("failed to encode feed event", zap.Error(err))
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
