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

// Package correlator matches command frames sent to the camera with the
// response frames that answer them.
//
// The camera handles one command at a time, so a Correlator allows a single
// outstanding call per connection. Concurrent callers are queued in the
// order they arrived.
//
// Requests are stamped with an increasing sequence id. Firmware that echoes
// the id gets exact matching: older ids are stale and skipped, newer ids
// mean the response stream is out of step. Firmware that leaves the id at
// zero is matched on the response opcode alone.
package correlator

import (
	"time"

	"github.com/TheCacophonyProject/lwdrone/lwerr"
	"github.com/TheCacophonyProject/lwdrone/protocol"
)

// New returns a Correlator for calls over t.
func New(t Transport) *Correlator {
	return &Correlator{
		t:    t,
		r:    NewReader(t),
		turn: make(chan struct{}, 1),
	}
}

type Correlator struct {
	t Transport
	r *Reader
	// Goroutines blocked sending on a full channel are released in FIFO
	// order, so turn doubles as a fair lock.
	turn chan struct{}
	seq  uint32
}

// Call sends req and returns the first frame answering it with opcode want.
// req is not modified.
func (c *Correlator) Call(req *protocol.Frame, want protocol.Opcode, timeout time.Duration) (*protocol.Frame, error) {
	c.turn <- struct{}{}
	defer func() { <-c.turn }()

	c.seq++
	if c.seq == 0 {
		c.seq = 1
	}
	f := *req
	f.Seq = c.seq
	if err := Send(c.t, &f); err != nil {
		return nil, err
	}
	return c.await(want, timeout)
}

// Await waits for a further frame answering the most recent call, for
// responses the camera splits over several frames.
func (c *Correlator) Await(want protocol.Opcode, timeout time.Duration) (*protocol.Frame, error) {
	c.turn <- struct{}{}
	defer func() { <-c.turn }()
	return c.await(want, timeout)
}

func (c *Correlator) await(want protocol.Opcode, timeout time.Duration) (*protocol.Frame, error) {
	op := "await " + want.String()
	deadline := time.Now().Add(timeout)
	for {
		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, lwerr.Errorf(lwerr.Timeout, op, "no response within %s", timeout)
		}
		f, err := c.r.ReadFrame(wait)
		if err != nil {
			return nil, err
		}
		switch {
		case f.Seq != 0 && f.Seq < c.seq:
			// Late answer to a call that already timed out.
			continue
		case f.Seq > c.seq:
			return nil, lwerr.Errorf(lwerr.Protocol, op, "got %s for request %d while waiting on %d", f, f.Seq, c.seq)
		case f.Opcode == want:
			return f, nil
		case f.Opcode == protocol.Heartbeat, f.Opcode.Streaming():
			// Left over from a stream that is still draining.
			continue
		default:
			return nil, lwerr.Errorf(lwerr.Protocol, op, "unexpected %s", f)
		}
	}
}
