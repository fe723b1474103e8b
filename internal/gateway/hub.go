// Package gateway streams engine decisions and capital status to websocket
// observers.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"confluence-engine/internal/model"
)

// Channel names carried in envelopes.
const (
	ChannelCapital        = "capital"
	ChannelDecisionPrefix = "decision:"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

type latestEntry struct {
	Data []byte // envelope
	Seq  int64
}

// Hub manages websocket clients. It implements model.DecisionSink: every
// decision is broadcast on decision:{symbol} and its capital status on
// "capital". Envelopes carry a hub-wide sequence number so clients can
// reconnect with ?since=N and receive what they missed.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64
	replay  *ReplayBuffer

	// OnClientsChanged, if set, receives the client count after each connect/disconnect.
	OnClientsChanged func(n int)
}

// NewHub creates a hub keeping the last replaySize envelopes for backfill.
func NewHub(replaySize int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
		replay:  NewReplayBuffer(replaySize),
	}
}

// Run broadcasts decisions until ctx is cancelled or decisions is closed,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context, decisions <-chan model.Decision) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-decisions:
			if !ok {
				return
			}
			h.PublishDecision(d)
		}
	}
}

// PublishDecision broadcasts a decision and the capital status it observed.
func (h *Hub) PublishDecision(d model.Decision) {
	h.Broadcast(ChannelDecisionPrefix+d.Symbol, d.JSON())
	h.PublishCapital(d.Capital)
}

// PublishCapital broadcasts a capital status.
func (h *Hub) PublishCapital(st model.CapitalStatus) {
	data, err := json.Marshal(st)
	if err != nil {
		log.Printf("[gateway] marshal capital status: %v", err)
		return
	}
	h.Broadcast(ChannelCapital, data)
}

// Broadcast wraps data in an envelope and sends it to every client whose
// filter matches channel. Slow clients miss messages rather than block.
// It returns the envelope's sequence number.
func (h *Hub) Broadcast(channel string, data []byte) int64 {
	now := time.Now().UTC()

	h.mu.Lock()
	h.seq++
	seq := h.seq
	buf := envelope(channel, data, now, seq)
	h.latest[channel] = latestEntry{Data: buf, Seq: seq}
	h.mu.Unlock()

	h.replay.Push(seq, channel, buf)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(channel) {
			continue
		}
		select {
		case c.send <- buf:
		default:
		}
	}
	return seq
}

// envelope hand-builds {"channel":...,"data":...,"ts":...,"seq":N}.
func envelope(channel string, data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+96)
	buf = append(buf, `{"channel":`...)
	buf = strconv.AppendQuote(buf, channel)
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}

// ServeHTTP upgrades the request to a websocket and registers the client.
//
// Query parameters:
//
//	symbols  comma-separated decision filter (default: all symbols)
//	since    last sequence seen; newer buffered envelopes are replayed
//	         instead of the latest-per-channel snapshot
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}

	c := newClient(h, conn, parseSymbols(r.URL.Query().Get("symbols")))
	conn.EnableWriteCompression(true)

	if since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64); err == nil {
		c.sendReplay(since)
	} else {
		c.sendInitialState()
	}

	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.clientsChanged(n)
	log.Printf("[gateway] ws client connected (%d total)", n)

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the last sequence number issued.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	h.clientsChanged(n)
	log.Printf("[gateway] ws client disconnected (%d total)", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.clientsChanged(0)
}

func (h *Hub) clientsChanged(n int) {
	if h.OnClientsChanged != nil {
		h.OnClientsChanged(n)
	}
}

func parseSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
