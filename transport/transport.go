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

package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/TheCacophonyProject/lwdrone/lwerr"
)

var (
	// ErrTimeout is the cause of a Receive or Send that ran out of time.
	ErrTimeout = errors.New("timed out")
	// ErrClosed is the cause when the peer closed the connection or the
	// connection was closed locally.
	ErrClosed = errors.New("connection closed")
	// ErrNotConnected is returned by Send and Receive before Connect.
	ErrNotConnected = errors.New("not connected")
)

// DefaultReadSize is used by Receive when no maximum is given.
const DefaultReadSize = 64 * 1024

// Conn is the byte level connection used by the protocol layers.
type Conn interface {
	Connect() error
	Send(p []byte) error
	Receive(max int, timeout time.Duration) ([]byte, error)
	Close() error
}

// Dialer creates an unconnected Conn for an address.
type Dialer func(addr string) Conn

// TCPDialer returns a Dialer producing TCP transports.
func TCPDialer(connectTimeout, writeTimeout time.Duration) Dialer {
	return func(addr string) Conn {
		return New(addr, connectTimeout, writeTimeout)
	}
}

// New returns a Transport for addr. Nothing is dialled until Connect.
func New(addr string, connectTimeout, writeTimeout time.Duration) *Transport {
	return &Transport{
		addr:           addr,
		connectTimeout: connectTimeout,
		writeTimeout:   writeTimeout,
	}
}

// Transport owns one TCP connection to the camera. It never reconnects by
// itself; after a hard error it is dead until Connect is called again.
type Transport struct {
	addr           string
	connectTimeout time.Duration
	writeTimeout   time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func (t *Transport) Addr() string {
	return t.addr
}

// Connected reports whether the connection is live.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

func (t *Transport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", t.addr, t.connectTimeout)
	if err != nil {
		return lwerr.New(lwerr.Connection, "connect "+t.addr, err)
	}
	t.conn = conn
	return nil
}

func (t *Transport) Send(p []byte) error {
	conn := t.current()
	if conn == nil {
		return lwerr.New(lwerr.Connection, "send", ErrNotConnected)
	}
	if t.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	// net.Conn.Write only returns early with an error.
	if _, err := conn.Write(p); err != nil {
		return t.fail("send", err)
	}
	return nil
}

// Receive blocks until at least one byte arrives, the timeout elapses or
// the connection fails. A timeout of zero or less waits forever.
func (t *Transport) Receive(max int, timeout time.Duration) ([]byte, error) {
	conn := t.current()
	if conn == nil {
		return nil, lwerr.New(lwerr.Connection, "receive", ErrNotConnected)
	}
	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		conn.SetReadDeadline(time.Time{})
	}
	if max <= 0 {
		max = DefaultReadSize
	}
	buf := make([]byte, max)
	n, err := conn.Read(buf)
	if n > 0 {
		// Any error is reported again by the next read.
		return buf[:n], nil
	}
	return nil, t.fail("receive", err)
}

// Close is idempotent and safe on a Transport that never connected.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *Transport) current() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// fail classifies err. Timeouts leave the connection usable; anything else
// tears it down.
func (t *Transport) fail(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return lwerr.New(lwerr.Timeout, op, ErrTimeout)
	}
	t.Close()
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return lwerr.New(lwerr.Connection, op, ErrClosed)
	}
	return lwerr.New(lwerr.Connection, op, err)
}
