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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/lwdrone/lwerr"
)

func listen(t *testing.T) (net.Listener, <-chan net.Conn) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln, accepted
}

func TestSendReceive(t *testing.T) {
	ln, accepted := listen(t)
	tr := New(ln.Addr().String(), time.Second, time.Second)
	require.NoError(t, tr.Connect())
	defer tr.Close()
	peer := <-accepted
	defer peer.Close()

	require.NoError(t, tr.Send([]byte("ping")))
	buf := make([]byte, 4)
	_, err := peer.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	_, err = peer.Write([]byte("pong"))
	require.NoError(t, err)
	got, err := tr.Receive(16, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(got))
}

func TestReceiveTimeoutKeepsConnection(t *testing.T) {
	ln, accepted := listen(t)
	tr := New(ln.Addr().String(), time.Second, time.Second)
	require.NoError(t, tr.Connect())
	defer tr.Close()
	peer := <-accepted
	defer peer.Close()

	_, err := tr.Receive(16, 20*time.Millisecond)
	assert.True(t, errors.Is(err, lwerr.ErrTimeout))
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, tr.Connected())

	peer.Write([]byte{1, 2, 3})
	got, err := tr.Receive(16, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestReceivePeerClosed(t *testing.T) {
	ln, accepted := listen(t)
	tr := New(ln.Addr().String(), time.Second, time.Second)
	require.NoError(t, tr.Connect())
	defer tr.Close()
	(<-accepted).Close()

	_, err := tr.Receive(16, time.Second)
	assert.True(t, errors.Is(err, lwerr.ErrConnection))
	assert.True(t, errors.Is(err, ErrClosed))
	assert.False(t, tr.Connected())
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	tr := New(addr, time.Second, time.Second)
	err = tr.Connect()
	assert.True(t, errors.Is(err, lwerr.ErrConnection))
	assert.False(t, tr.Connected())
}

func TestNotConnected(t *testing.T) {
	tr := New("127.0.0.1:1", time.Second, time.Second)

	err := tr.Send([]byte{1})
	assert.True(t, errors.Is(err, ErrNotConnected))
	_, err = tr.Receive(1, time.Millisecond)
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestCloseIdempotent(t *testing.T) {
	tr := New("127.0.0.1:1", time.Second, time.Second)
	assert.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())

	ln, accepted := listen(t)
	tr = New(ln.Addr().String(), time.Second, time.Second)
	require.NoError(t, tr.Connect())
	peer := <-accepted
	defer peer.Close()
	assert.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())
	assert.False(t, tr.Connected())
}
