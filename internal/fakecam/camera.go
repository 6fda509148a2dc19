// lwdrone - control and stream video from lewei WiFi camera modules
//  Copyright (C) 2020, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package fakecam

import (
	"errors"
	"sync"

	"github.com/TheCacophonyProject/lwdrone/transport"
)

// ErrRefused is what Connect reports for an address with no handler.
var ErrRefused = errors.New("connection refused")

// NewCamera returns a Camera with no handlers.
func NewCamera() *Camera {
	return &Camera{
		handlers: make(map[string]Handler),
		conns:    make(map[string][]*Conn),
	}
}

// Camera routes dialled connections to per-address handlers, keeping every
// Conn it hands out for inspection.
type Camera struct {
	mu       sync.Mutex
	handlers map[string]Handler
	conns    map[string][]*Conn
	// ChunkSize is applied to every new Conn.
	ChunkSize int
}

// Handle sets the handler for connections to addr.
func (c *Camera) Handle(addr string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[addr] = h
}

// Dial satisfies transport.Dialer.
func (c *Camera) Dial(addr string) transport.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handlers[addr]
	conn := NewConn(h)
	conn.ChunkSize = c.ChunkSize
	if !ok {
		conn.ConnectErr = ErrRefused
	}
	c.conns[addr] = append(c.conns[addr], conn)
	return conn
}

// Conns returns the connections made to addr, oldest first.
func (c *Camera) Conns(addr string) []*Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Conn{}, c.conns[addr]...)
}

// Last returns the newest connection to addr, or nil.
func (c *Camera) Last(addr string) *Conn {
	conns := c.Conns(addr)
	if len(conns) == 0 {
		return nil
	}
	return conns[len(conns)-1]
}
