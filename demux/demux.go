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

// Package demux reassembles the units of a streaming session (H.264 units
// of live video or a replay, chunks of a download) from the frames that
// carry them.
package demux

import (
	"errors"
	"fmt"

	"github.com/TheCacophonyProject/lwdrone/protocol"
)

// Kind says how a frame contributes to the unit sequence.
type Kind int

const (
	// Fragment carries all or part of the unit identified by Key. The unit
	// is complete once Size bytes have arrived.
	Fragment Kind = iota
	// Skip carries nothing of interest.
	Skip
	// End closes the sequence.
	End
	// Bad is a frame that should have carried content but was malformed.
	Bad
)

// Piece is what a Splitter makes of one frame.
type Piece struct {
	Kind Kind
	Key  uint64
	// Size is the length of the whole unit. Zero means the fragment is the
	// whole unit.
	Size int
	Data []byte
}

// Event is the outcome of pushing one piece.
type Event struct {
	// Unit is set when the piece completed a unit.
	Unit *protocol.VideoFrame
	// Dropped counts units given up on because of this piece.
	Dropped int
	Done    bool
}

// ErrGap is the cause of every failure in sequential mode: a missing,
// repeated or incomplete unit.
var ErrGap = errors.New("gap in unit sequence")

// New returns a Demuxer that tolerates loss, as live video must.
func New() *Demuxer {
	return &Demuxer{}
}

// NewSequential returns a Demuxer requiring every unit in key order from
// first, with any loss failing the sequence. Downloads use this.
func NewSequential(first uint64) *Demuxer {
	return &Demuxer{sequential: true, next: first}
}

type Demuxer struct {
	sequential bool
	next       uint64
	open       *pending
	done       bool
}

type pending struct {
	key  uint64
	size int
	buf  []byte
}

// Next returns the key the next unit must have in sequential mode.
func (d *Demuxer) Next() uint64 {
	return d.next
}

// Push feeds one piece. Errors are only returned in sequential mode.
func (d *Demuxer) Push(p Piece) (Event, error) {
	var ev Event
	if d.done {
		return ev, fmt.Errorf("piece after end of sequence")
	}
	switch p.Kind {
	case Skip:
		return ev, nil

	case End:
		d.done = true
		ev.Done = true
		if d.open != nil {
			return ev, d.drop(&ev, "unit %d unfinished at end", d.open.key)
		}
		return ev, nil

	case Bad:
		if d.open != nil {
			return ev, d.drop(&ev, "unit %d interrupted by a malformed frame", d.open.key)
		}
		// A malformed frame outside any unit is taken to be a lost unit.
		ev.Dropped++
		if d.sequential {
			return ev, fmt.Errorf("%w: malformed frame", ErrGap)
		}
		return ev, nil
	}

	if d.open != nil && d.open.key != p.Key {
		if err := d.drop(&ev, "unit %d unfinished when unit %d started", d.open.key, p.Key); err != nil {
			return ev, err
		}
	}
	if d.open == nil {
		if d.sequential && p.Key != d.next {
			return ev, fmt.Errorf("%w: got unit %d, want %d", ErrGap, p.Key, d.next)
		}
		size := p.Size
		if size <= 0 {
			size = len(p.Data)
		}
		if len(p.Data) == size {
			// Whole unit in one piece; no copy needed.
			ev.Unit = d.emit(p.Key, p.Data)
			return ev, nil
		}
		d.open = &pending{key: p.Key, size: size, buf: make([]byte, 0, size)}
	}

	d.open.buf = append(d.open.buf, p.Data...)
	switch {
	case len(d.open.buf) == d.open.size:
		ev.Unit = d.emit(d.open.key, d.open.buf)
		d.open = nil
	case len(d.open.buf) > d.open.size:
		return ev, d.drop(&ev, "unit %d overran its size", d.open.key)
	}
	return ev, nil
}

func (d *Demuxer) emit(key uint64, data []byte) *protocol.VideoFrame {
	d.next = key + 1
	return &protocol.VideoFrame{Index: key, Data: data}
}

func (d *Demuxer) drop(ev *Event, format string, v ...interface{}) error {
	d.open = nil
	ev.Dropped++
	if d.sequential {
		return fmt.Errorf("%w: "+format, append([]interface{}{ErrGap}, v...)...)
	}
	return nil
}
