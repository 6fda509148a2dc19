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

package correlator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/lwdrone/internal/fakecam"
	"github.com/TheCacophonyProject/lwdrone/lwerr"
	"github.com/TheCacophonyProject/lwdrone/protocol"
)

const timeout = 200 * time.Millisecond

func connected(t *testing.T, h fakecam.Handler) *fakecam.Conn {
	conn := fakecam.NewConn(h)
	require.NoError(t, conn.Connect())
	return conn
}

func echoArg(req *protocol.Frame) []*protocol.Frame {
	f := fakecam.Reply(req, req.Opcode, []byte{1, 2, 3})
	f.Arg = req.Arg
	return []*protocol.Frame{f}
}

func TestCall(t *testing.T) {
	conn := connected(t, echoArg)
	conn.ChunkSize = 1
	c := New(conn)

	resp, err := c.Call(&protocol.Frame{Opcode: protocol.GetTime, Arg: 4}, protocol.GetTime, timeout)
	require.NoError(t, err)
	assert.Equal(t, protocol.GetTime, resp.Opcode)
	assert.Equal(t, uint32(4), resp.Arg)
	assert.Equal(t, []byte{1, 2, 3}, resp.Payload)

	reqs := conn.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, uint32(1), reqs[0].Seq)
}

func TestCallDoesNotModifyRequest(t *testing.T) {
	c := New(connected(t, echoArg))
	req := protocol.NewFrame(protocol.GetTime, nil)
	_, err := c.Call(req, protocol.GetTime, timeout)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), req.Seq)
}

func TestCallUnexpectedOpcode(t *testing.T) {
	// The answer to a later command turns up first.
	conn := connected(t, nil)
	conn.Push(protocol.NewFrame(protocol.GetRecPlan, make([]byte, protocol.RecordPlanSize)))
	c := New(conn)

	_, err := c.Call(protocol.NewFrame(protocol.GetTime, nil), protocol.GetTime, timeout)
	assert.True(t, errors.Is(err, lwerr.ErrProtocol))
}

func TestCallFutureSequence(t *testing.T) {
	conn := connected(t, func(req *protocol.Frame) []*protocol.Frame {
		f := fakecam.Reply(req, protocol.GetTime, nil)
		f.Seq = req.Seq + 1
		return []*protocol.Frame{f}
	})
	c := New(conn)

	_, err := c.Call(protocol.NewFrame(protocol.GetTime, nil), protocol.GetTime, timeout)
	assert.True(t, errors.Is(err, lwerr.ErrProtocol))
}

func TestTimeoutLeavesConnectionUsable(t *testing.T) {
	calls := 0
	conn := connected(t, func(req *protocol.Frame) []*protocol.Frame {
		calls++
		if calls == 1 {
			return nil
		}
		return echoArg(req)
	})
	c := New(conn)

	_, err := c.Call(protocol.NewFrame(protocol.GetTime, nil), protocol.GetTime, 30*time.Millisecond)
	assert.True(t, errors.Is(err, lwerr.ErrTimeout))

	resp, err := c.Call(&protocol.Frame{Opcode: protocol.GetTime, Arg: 9}, protocol.GetTime, timeout)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), resp.Arg)
}

func TestLateResponseDiscarded(t *testing.T) {
	conn := connected(t, nil)
	c := New(conn)

	_, err := c.Call(protocol.NewFrame(protocol.GetTime, nil), protocol.GetTime, 30*time.Millisecond)
	require.True(t, errors.Is(err, lwerr.ErrTimeout))

	// The answer to the first call arrives after it gave up, then the
	// answer to the second.
	conn.Push(&protocol.Frame{Opcode: protocol.GetTime, Seq: 1, Arg: 1})
	conn.Push(&protocol.Frame{Opcode: protocol.GetTime, Seq: 2, Arg: 2})
	resp, err := c.Call(protocol.NewFrame(protocol.GetTime, nil), protocol.GetTime, timeout)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), resp.Arg)
}

func TestUnsolicitedFramesSkipped(t *testing.T) {
	conn := connected(t, func(req *protocol.Frame) []*protocol.Frame {
		return []*protocol.Frame{
			protocol.NewFrame(protocol.Heartbeat, make([]byte, protocol.StatusSize)),
			protocol.NewFrame(protocol.RetStream, []byte("old video")),
			fakecam.Reply(req, protocol.GetTime, []byte("now")),
		}
	})
	c := New(conn)

	resp, err := c.Call(protocol.NewFrame(protocol.GetTime, nil), protocol.GetTime, timeout)
	require.NoError(t, err)
	assert.Equal(t, []byte("now"), resp.Payload)
}

func TestHeartbeatCall(t *testing.T) {
	c := New(connected(t, echoArg))
	resp, err := c.Call(protocol.NewFrame(protocol.Heartbeat, nil), protocol.Heartbeat, timeout)
	require.NoError(t, err)
	assert.Equal(t, protocol.Heartbeat, resp.Opcode)
}

func TestAwaitContinuation(t *testing.T) {
	conn := connected(t, func(req *protocol.Frame) []*protocol.Frame {
		first := fakecam.Reply(req, protocol.GetRecList, []byte("a"))
		first.Aux = 1
		return []*protocol.Frame{first, fakecam.Reply(req, protocol.GetRecList, []byte("b"))}
	})
	c := New(conn)

	resp, err := c.Call(protocol.NewFrame(protocol.GetRecList, nil), protocol.GetRecList, timeout)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), resp.Aux)
	resp, err = c.Await(protocol.GetRecList, timeout)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), resp.Payload)
}

func TestConcurrentCalls(t *testing.T) {
	c := New(connected(t, echoArg))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i uint32) {
			defer wg.Done()
			resp, err := c.Call(&protocol.Frame{Opcode: protocol.GetTime, Arg: i}, protocol.GetTime, time.Second)
			if err == nil && resp.Arg != i {
				err = errors.New("response delivered to the wrong caller")
			}
			errs <- err
		}(uint32(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestReaderKeepsPartialFrame(t *testing.T) {
	conn := connected(t, nil)
	b, err := protocol.Encode(protocol.NewFrame(protocol.GetTime, []byte("12345678")))
	require.NoError(t, err)
	conn.PushBytes(b[:20])
	r := NewReader(conn)

	_, err = r.ReadFrame(20 * time.Millisecond)
	assert.True(t, errors.Is(err, lwerr.ErrTimeout))
	assert.Equal(t, 20, r.Buffered())

	conn.PushBytes(b[20:])
	f, err := r.ReadFrame(timeout)
	require.NoError(t, err)
	assert.Equal(t, []byte("12345678"), f.Payload)
	assert.Equal(t, 0, r.Buffered())
}

func TestReaderClosed(t *testing.T) {
	conn := connected(t, nil)
	conn.HangUp()
	_, err := NewReader(conn).ReadFrame(timeout)
	assert.True(t, errors.Is(err, lwerr.ErrConnection))
}
