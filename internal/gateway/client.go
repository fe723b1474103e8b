package gateway

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client is a single websocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu      sync.RWMutex
	symbols map[string]bool // empty: every symbol
}

// clientMsg is the only inbound message shape.
//
//	{"type":"subscribe","symbols":["BTCUSDT"]}
//	{"type":"ping","ping":1712000000000}
type clientMsg struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
	Ping    int64    `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn, symbols []string) *Client {
	c := &Client{conn: conn, send: make(chan []byte, 256), hub: h}
	c.setSymbols(symbols)
	return c
}

func (c *Client) setSymbols(symbols []string) {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[strings.ToUpper(s)] = true
	}
	c.mu.Lock()
	c.symbols = set
	c.mu.Unlock()
}

// wants reports whether channel passes the client's symbol filter.
// Capital status always passes.
func (c *Client) wants(channel string) bool {
	sym, ok := strings.CutPrefix(channel, ChannelDecisionPrefix)
	if !ok {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.symbols) == 0 || c.symbols[sym]
}

// sendInitialState queues the latest envelope of every matching channel, in
// sequence order. Called before the client is registered.
func (c *Client) sendInitialState() {
	c.hub.mu.RLock()
	entries := make([]latestEntry, 0, len(c.hub.latest))
	for ch, e := range c.hub.latest {
		if c.wants(ch) {
			entries = append(entries, e)
		}
	}
	c.hub.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	for _, e := range entries {
		c.queue(e.Data)
	}
}

// sendReplay queues buffered envelopes newer than since.
func (c *Client) sendReplay(since int64) {
	for _, e := range c.hub.replay.Since(since) {
		if c.wants(e.Channel) {
			c.queue(e.Data)
		}
	}
}

func (c *Client) queue(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		switch strings.ToLower(msg.Type) {
		case "subscribe":
			c.setSymbols(msg.Symbols)
		case "ping":
			pong, _ := json.Marshal(map[string]any{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			c.hub.mu.RLock()
			if c.hub.clients[c] {
				c.queue(pong)
			}
			c.hub.mu.RUnlock()
		}
	}
}

