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

package demux

import (
	"errors"
	"fmt"
	"io"

	"github.com/TheCacophonyProject/lwdrone/protocol"
)

// ErrDropped matches every *DroppedError.
var ErrDropped = errors.New("dropped frame")

// DroppedError reports units lost from a stream that carries on.
type DroppedError struct {
	Count int
}

func (e *DroppedError) Error() string {
	return fmt.Sprintf("%d frame(s) dropped", e.Count)
}

func (e *DroppedError) Is(target error) bool {
	return target == ErrDropped
}

// Source yields the frames of one session.
type Source interface {
	NextFrame() (*protocol.Frame, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (*protocol.Frame, error)

func (f SourceFunc) NextFrame() (*protocol.Frame, error) {
	return f()
}

// Splitter interprets the frames of one kind of session.
type Splitter interface {
	Split(f *protocol.Frame) Piece
	// Finish post-processes a complete unit. An error drops the unit.
	Finish(u *protocol.VideoFrame) error
}

// NewReader returns a Reader pulling frames from src.
func NewReader(src Source, s Splitter) *Reader {
	return &Reader{src: src, split: s, d: New()}
}

// Reader is a pull iterator over the units of a tolerant session. Frames
// are only read from src while Next is running, so a slow consumer holds
// the producer back.
type Reader struct {
	src     Source
	split   Splitter
	d       *Demuxer
	pending *protocol.VideoFrame
	done    bool
}

// Next returns the next unit. A *DroppedError means units were lost and
// the stream continues; io.EOF means the session ended; any other error
// comes from the source.
func (r *Reader) Next() (*protocol.VideoFrame, error) {
	if u := r.pending; u != nil {
		r.pending = nil
		return u, nil
	}
	for !r.done {
		f, err := r.src.NextFrame()
		if err != nil {
			return nil, err
		}
		ev, _ := r.d.Push(r.split.Split(f))
		r.done = ev.Done
		if ev.Unit != nil {
			if err := r.split.Finish(ev.Unit); err != nil {
				ev.Unit = nil
				ev.Dropped++
			}
		}
		if ev.Dropped > 0 {
			r.pending = ev.Unit
			return nil, &DroppedError{Count: ev.Dropped}
		}
		if ev.Unit != nil {
			return ev.Unit, nil
		}
	}
	return nil, io.EOF
}

// VideoSplitter handles live video (retstream) and, with Replay set,
// recording replays (retreplay ended by retreplayend).
type VideoSplitter struct {
	Replay   bool
	unmunger protocol.Unmunger
}

func (s *VideoSplitter) Split(f *protocol.Frame) Piece {
	switch f.Opcode {
	case protocol.RetStream, protocol.RetReplay:
		h, part, err := protocol.ParseVideoFrame(f.Payload)
		if err != nil {
			return Piece{Kind: Bad}
		}
		s.unmunger = protocol.UnmungerFor(f)
		return Piece{Kind: Fragment, Key: h.Count, Size: int(h.Size), Data: part}
	case protocol.RetReplayEnd:
		return Piece{Kind: End}
	}
	return Piece{Kind: Skip}
}

func (s *VideoSplitter) Finish(u *protocol.VideoFrame) error {
	s.unmunger.Unmunge(u.Data, u.Index)
	if !s.Replay {
		return nil
	}
	_, data, err := protocol.ReplayPrefix(u.Data)
	if err != nil {
		return err
	}
	u.Data = data
	return nil
}
