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

package device

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/ratelimit"

	"github.com/TheCacophonyProject/lwdrone/correlator"
	"github.com/TheCacophonyProject/lwdrone/demux"
	"github.com/TheCacophonyProject/lwdrone/loglimiter"
	"github.com/TheCacophonyProject/lwdrone/lwerr"
	"github.com/TheCacophonyProject/lwdrone/protocol"
	"github.com/TheCacophonyProject/lwdrone/transport"
)

// ErrBusy is returned when a stream or replay is already running.
var ErrBusy = errors.New("a stream is already running")

var errStopped = errors.New("stopped")

// VideoStream is a live video stream or a recording replay. Units are
// pulled with Next; nothing is read from the camera in between, so a slow
// consumer holds the camera back rather than growing a buffer.
type VideoStream struct {
	// ID tags the stream's log lines.
	ID uuid.UUID

	d      *Device
	kind   string
	stopOp protocol.Opcode
	conn   transport.Conn
	r      *correlator.Reader
	units  *demux.Reader
	beat   *ratelimit.Bucket
	drops  *loglimiter.LogLimiter

	stop     chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	done  bool
	err   error
	count uint64
}

// StartVideoStream asks the camera for live video, high definition or
// not. The stream never ends by itself; call Stop (or StopVideoStream)
// when done.
func (d *Device) StartVideoStream(highDef bool) (*VideoStream, error) {
	req := protocol.NewFrame(protocol.StartStream, nil)
	req.Arg = boolArg(highDef)
	return d.openStream("stream", req, protocol.StopStream, &demux.VideoSplitter{})
}

// StartReplay streams back the recording at index in the camera's
// listing. The stream ends with io.EOF when the recording does.
func (d *Device) StartReplay(index int) (*VideoStream, error) {
	entries, err := d.ListRecordings()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("no recording at index %d", index)
	}
	body, err := protocol.ReplayRequest(entries[index])
	if err != nil {
		return nil, err
	}
	return d.openStream("replay", protocol.NewFrame(protocol.StartReplay, body),
		protocol.StopReplay, &demux.VideoSplitter{Replay: true})
}

// PlayRecording replays the recording at index into sink. Lost units are
// logged and skipped.
func (d *Device) PlayRecording(index int, sink io.Writer) error {
	s, err := d.StartReplay(index)
	if err != nil {
		return err
	}
	defer s.Stop()
	for {
		u, err := s.Next()
		switch {
		case err == io.EOF:
			return nil
		case errors.Is(err, demux.ErrDropped):
			continue
		case err != nil:
			return err
		}
		if _, err := sink.Write(u.Data); err != nil {
			return err
		}
	}
}

// StopVideoStream stops the running stream or replay, if any. It returns
// once the stop command has been sent and the connection closed.
func (d *Device) StopVideoStream() error {
	d.mu.Lock()
	s := d.stream
	d.mu.Unlock()
	if s != nil {
		s.Stop()
	}
	return nil
}

// Streaming reports whether a stream or replay is running.
func (d *Device) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream != nil
}

func (d *Device) openStream(kind string, req *protocol.Frame, stopOp protocol.Opcode, split demux.Splitter) (*VideoStream, error) {
	s := &VideoStream{
		ID:     uuid.New(),
		d:      d,
		kind:   kind,
		stopOp: stopOp,
		beat:   ratelimit.NewBucketWithClock(d.conf.HeartbeatInterval, 1, d.clock),
		drops:  loglimiter.New(10 * time.Second),
		stop:   make(chan struct{}),
	}
	// Held until the stream is usable, so a Stop from elsewhere waits.
	s.mu.Lock()
	defer s.mu.Unlock()

	d.mu.Lock()
	if d.stream != nil {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	d.stream = s
	d.mu.Unlock()

	conn := d.dial(d.conf.StreamAddr())
	if err := conn.Connect(); err != nil {
		d.release(s)
		return nil, err
	}
	if err := correlator.Send(conn, req); err != nil {
		conn.Close()
		d.release(s)
		return nil, err
	}
	s.conn = conn
	s.r = correlator.NewReader(conn)
	s.units = demux.NewReader(demux.SourceFunc(s.nextFrame), split)
	log.Printf("%s %s: started", kind, s.ID)
	return s, nil
}

func (d *Device) release(s *VideoStream) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == s {
		d.stream = nil
	}
}

// Next returns the next video unit. A *demux.DroppedError reports lost
// units and the stream carries on. io.EOF means the stream was stopped or
// the replay finished. Any other error ends the stream.
func (s *VideoStream) Next() (*protocol.VideoFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, s.result()
	}

	u, err := s.units.Next()
	switch {
	case err == nil:
		s.count++
		return u, nil
	case errors.Is(err, demux.ErrDropped):
		s.drops.Printf("%s %s: %v", s.kind, s.ID, err)
		return nil, err
	case err == io.EOF, err == errStopped:
		s.finish(nil)
	default:
		s.finish(err)
	}
	return nil, s.result()
}

// Stop ends the stream. It is safe to call from any goroutine and more
// than once; a Next in progress returns io.EOF within one poll interval.
func (s *VideoStream) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finish(nil)
}

// Close is Stop, for use as an io.Closer.
func (s *VideoStream) Close() error {
	s.Stop()
	return nil
}

func (s *VideoStream) result() error {
	if s.err != nil {
		return s.err
	}
	return io.EOF
}

// finish sends the stop command and tears the connection down. s.mu must
// be held.
func (s *VideoStream) finish(err error) {
	if s.done {
		return
	}
	s.done = true
	s.err = err
	if s.conn != nil {
		if err == nil {
			// Best effort; the camera also gives up when the connection goes.
			correlator.Send(s.conn, protocol.NewFrame(s.stopOp, nil))
		}
		s.conn.Close()
	}
	s.d.release(s)
	if err != nil {
		log.Printf("%s %s: ended after %d units: %v", s.kind, s.ID, s.count, err)
	} else {
		log.Printf("%s %s: ended after %d units", s.kind, s.ID, s.count)
	}
}

// nextFrame reads the next frame, sending heartbeats as they fall due and
// checking for a stop request at least once per poll interval.
func (s *VideoStream) nextFrame() (*protocol.Frame, error) {
	idle := time.Now()
	for {
		select {
		case <-s.stop:
			return nil, errStopped
		default:
		}
		if s.beat.TakeAvailable(1) > 0 {
			if err := correlator.Send(s.conn, protocol.NewFrame(protocol.Heartbeat, nil)); err != nil {
				return nil, err
			}
		}
		f, err := s.r.ReadFrame(s.d.poll)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, lwerr.ErrTimeout) {
			return nil, err
		}
		if time.Since(idle) >= s.d.conf.StreamTimeout {
			return nil, lwerr.Errorf(lwerr.Timeout, s.kind, "nothing received for %s", s.d.conf.StreamTimeout)
		}
	}
}
