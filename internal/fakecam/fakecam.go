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

// Package fakecam provides an in-memory stand-in for the camera for tests.
// A Conn decodes the frames written to it, hands each to a Handler and
// queues the handler's answers for Receive.
package fakecam

import (
	"errors"
	"sync"
	"time"

	"github.com/TheCacophonyProject/lwdrone/lwerr"
	"github.com/TheCacophonyProject/lwdrone/protocol"
	"github.com/TheCacophonyProject/lwdrone/transport"
)

// Handler answers one request with any number of frames.
type Handler func(req *protocol.Frame) []*protocol.Frame

// NewConn returns an unconnected Conn answering with h. A nil h never
// answers.
func NewConn(h Handler) *Conn {
	return &Conn{
		handler: h,
		ready:   make(chan struct{}, 1),
	}
}

type Conn struct {
	// ChunkSize limits the bytes returned by one Receive. Zero means no
	// limit beyond the caller's.
	ChunkSize int
	// ConnectErr makes Connect fail.
	ConnectErr error

	handler Handler
	ready   chan struct{}

	mu        sync.Mutex
	connected bool
	hungUp    bool
	sendBuf   []byte
	rx        []byte
	requests  []*protocol.Frame
	closes    int
}

func (c *Conn) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConnectErr != nil {
		return lwerr.New(lwerr.Connection, "connect", c.ConnectErr)
	}
	c.connected = true
	return nil
}

func (c *Conn) Send(p []byte) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return lwerr.New(lwerr.Connection, "send", transport.ErrNotConnected)
	}
	if c.hungUp {
		c.mu.Unlock()
		return lwerr.New(lwerr.Connection, "send", transport.ErrClosed)
	}
	c.sendBuf = append(c.sendBuf, p...)
	var reqs []*protocol.Frame
	for {
		f, n, err := protocol.Decode(c.sendBuf)
		if errors.Is(err, protocol.ErrIncomplete) {
			break
		}
		if err != nil {
			c.mu.Unlock()
			return err
		}
		c.sendBuf = c.sendBuf[n:]
		reqs = append(reqs, f)
	}
	c.requests = append(c.requests, reqs...)
	c.mu.Unlock()

	if c.handler == nil {
		return nil
	}
	for _, req := range reqs {
		c.Push(c.handler(req)...)
	}
	return nil
}

func (c *Conn) Receive(max int, timeout time.Duration) ([]byte, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		c.mu.Lock()
		if !c.connected {
			c.mu.Unlock()
			return nil, lwerr.New(lwerr.Connection, "receive", transport.ErrNotConnected)
		}
		if len(c.rx) > 0 {
			n := len(c.rx)
			if max > 0 && n > max {
				n = max
			}
			if c.ChunkSize > 0 && n > c.ChunkSize {
				n = c.ChunkSize
			}
			b := append([]byte{}, c.rx[:n]...)
			c.rx = c.rx[n:]
			c.mu.Unlock()
			return b, nil
		}
		if c.hungUp {
			c.connected = false
			c.mu.Unlock()
			return nil, lwerr.New(lwerr.Connection, "receive", transport.ErrClosed)
		}
		c.mu.Unlock()

		select {
		case <-c.ready:
		case <-expired:
			return nil, lwerr.New(lwerr.Timeout, "receive", transport.ErrTimeout)
		}
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.closes++
	return nil
}

// Push queues frames for Receive as if the camera had sent them.
func (c *Conn) Push(frames ...*protocol.Frame) {
	for _, f := range frames {
		b, err := protocol.Encode(f)
		if err != nil {
			panic(err)
		}
		c.PushBytes(b)
	}
}

// PushBytes queues raw bytes for Receive.
func (c *Conn) PushBytes(b []byte) {
	c.mu.Lock()
	c.rx = append(c.rx, b...)
	c.mu.Unlock()
	c.wake()
}

// HangUp makes Receive report a closed connection once queued bytes are
// drained.
func (c *Conn) HangUp() {
	c.mu.Lock()
	c.hungUp = true
	c.mu.Unlock()
	c.wake()
}

// Requests returns the frames received so far.
func (c *Conn) Requests() []*protocol.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*protocol.Frame{}, c.requests...)
}

// Opcodes returns the opcodes of the frames received so far.
func (c *Conn) Opcodes() []protocol.Opcode {
	var ops []protocol.Opcode
	for _, f := range c.Requests() {
		ops = append(ops, f.Opcode)
	}
	return ops
}

// Connected reports whether the Conn is open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Closes counts calls to Close.
func (c *Conn) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *Conn) wake() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// Reply returns a response to req with the given opcode and body, echoing
// the request's sequence id.
func Reply(req *protocol.Frame, op protocol.Opcode, payload []byte) *protocol.Frame {
	return &protocol.Frame{Opcode: op, Seq: req.Seq, Payload: payload}
}
