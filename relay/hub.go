// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

// Package relay forwards live video units to browsers over websockets.
package relay

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheCacophonyProject/lwdrone/loglimiter"
	"github.com/TheCacophonyProject/lwdrone/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultQueue is the number of units buffered for each client.
	DefaultQueue = 64
)

// New returns a Hub buffering up to queue units for each client.
func New(queue int) *Hub {
	if queue < 1 {
		queue = DefaultQueue
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 256 * 1024,
		},
		queue:   queue,
		slow:    loglimiter.New(10 * time.Second),
		clients: make(map[*client]struct{}),
	}
}

// Hub is an http.Handler accepting websocket clients, each of which is sent
// every unit passed to Broadcast as a binary message. A client that can't
// keep up misses units rather than holding back the stream.
type Hub struct {
	upgrader websocket.Upgrader
	queue    int
	slow     *loglimiter.LogLimiter

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("relay: websocket upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.queue)}
	if !h.add(c) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream ended"))
		conn.Close()
		return
	}
	log.Printf("relay: %s connected (%d watching)", conn.RemoteAddr(), h.Clients())
	go h.writePump(c)
	go h.readPump(c)
}

// Broadcast queues u for every client and returns how many took it.
func (h *Hub) Broadcast(u *protocol.VideoFrame) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for c := range h.clients {
		select {
		case c.send <- u.Data:
			sent++
		default:
			h.slow.Printf("relay: client %s is behind, skipping units", c.addr())
		}
	}
	return sent
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (c *client) addr() string {
	if c.conn == nil {
		return "?"
	}
	return c.conn.RemoteAddr().String()
}

// readPump discards anything the browser sends, keeping the read deadline
// fresh from pongs so dead clients are noticed.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("relay: %s: %v", c.addr(), err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream ended"))
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
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
