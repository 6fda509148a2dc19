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
	"time"

	"github.com/TheCacophonyProject/lwdrone/lwerr"
	"github.com/TheCacophonyProject/lwdrone/protocol"
	"github.com/TheCacophonyProject/lwdrone/transport"
)

const readSize = 64 * 1024

// Transport is the part of transport.Conn the protocol layers need.
type Transport interface {
	Send(p []byte) error
	Receive(max int, timeout time.Duration) ([]byte, error)
}

// NewReader returns a Reader decoding frames received from t.
func NewReader(t Transport) *Reader {
	return &Reader{t: t}
}

// Reader turns the arbitrary chunks returned by Receive into frames. Bytes
// of a partly received frame are kept across calls, including across
// timeouts.
type Reader struct {
	t   Transport
	buf []byte
}

// ReadFrame returns the next frame, waiting at most timeout. A timeout of
// zero or less waits forever.
func (r *Reader) ReadFrame(timeout time.Duration) (*protocol.Frame, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		f, n, err := protocol.Decode(r.buf)
		if err == nil {
			r.buf = r.buf[n:]
			return f, nil
		}
		if !errors.Is(err, protocol.ErrIncomplete) {
			return nil, err
		}

		var wait time.Duration
		if !deadline.IsZero() {
			wait = time.Until(deadline)
			if wait <= 0 {
				return nil, lwerr.New(lwerr.Timeout, "read frame", transport.ErrTimeout)
			}
		}
		b, err := r.t.Receive(readSize, wait)
		if err != nil {
			return nil, err
		}
		r.buf = append(r.buf, b...)
	}
}

// Buffered returns the number of bytes received but not yet decoded.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// Send encodes f and writes it to t.
func Send(t Transport, f *protocol.Frame) error {
	b, err := protocol.Encode(f)
	if err != nil {
		return err
	}
	return t.Send(b)
}
