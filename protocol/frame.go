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

// Package protocol implements the lewei camera wire format: the frame
// header shared by every message, and the fixed layouts of the payloads
// the client understands.
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/TheCacophonyProject/lwdrone/lwerr"
)

const (
	// HeaderSize is the length of the magic plus the nine header words.
	HeaderSize = len(magic) + headerWords*4

	// MaxPayloadSize bounds the body of a single frame.
	MaxPayloadSize = 4 << 20

	magic       = "lewei_cmd\x00"
	headerWords = 9
)

// ErrIncomplete is returned by Decode when the buffer does not yet hold a
// whole frame. The caller must keep the buffer and append to it.
var ErrIncomplete = errors.New("incomplete frame")

// Frame is one protocol unit: a header plus an opaque body.
type Frame struct {
	Opcode Opcode
	// Arg is the general purpose argument word (resolution flag, flip
	// setting, chunk index...).
	Arg uint32
	// Aux is set on responses that continue in a following frame.
	Aux        uint32
	StreamType uint32
	StreamKey1 uint32
	StreamKey2 uint32
	Extra      uint32
	// Seq is the correlation id. Zero means none.
	Seq     uint32
	Payload []byte
}

// NewFrame returns a frame with only the opcode and body set.
func NewFrame(op Opcode, payload []byte) *Frame {
	return &Frame{Opcode: op, Payload: payload}
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s(arg=%d seq=%d len=%d)", f.Opcode, f.Arg, f.Seq, len(f.Payload))
}

// Encode returns the wire bytes of f. The body size word is always taken
// from the payload.
func Encode(f *Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, lwerr.Errorf(lwerr.Protocol, "encode "+f.Opcode.String(),
			"payload of %d bytes exceeds %d", len(f.Payload), MaxPayloadSize)
	}
	buf := make([]byte, HeaderSize+len(f.Payload))
	copy(buf, magic)
	words := [headerWords]uint32{
		uint32(f.Opcode),
		f.Arg,
		f.Aux,
		uint32(len(f.Payload)),
		f.StreamType,
		f.StreamKey1,
		f.StreamKey2,
		f.Extra,
		f.Seq,
	}
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[len(magic)+i*4:], w)
	}
	copy(buf[HeaderSize:], f.Payload)
	return buf, nil
}

// Decode extracts the first frame from buf and reports how many bytes it
// used. When buf holds only part of a frame it returns ErrIncomplete and
// consumes nothing. The returned payload does not alias buf.
func Decode(buf []byte) (*Frame, int, error) {
	if len(buf) < len(magic) {
		if !bytes.HasPrefix([]byte(magic), buf) {
			return nil, 0, badMagic(buf)
		}
		return nil, 0, ErrIncomplete
	}
	if string(buf[:len(magic)]) != magic {
		return nil, 0, badMagic(buf[:len(magic)])
	}
	if len(buf) < HeaderSize {
		return nil, 0, ErrIncomplete
	}

	var words [headerWords]uint32
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[len(magic)+i*4:])
	}
	size := words[3]
	if size > MaxPayloadSize {
		return nil, 0, lwerr.Errorf(lwerr.Protocol, "decode",
			"%s body of %d bytes exceeds %d", Opcode(words[0]), size, MaxPayloadSize)
	}
	total := HeaderSize + int(size)
	if len(buf) < total {
		return nil, 0, ErrIncomplete
	}

	var payload []byte
	if size > 0 {
		payload = append(payload, buf[HeaderSize:total]...)
	}
	f := &Frame{
		Opcode:     Opcode(words[0]),
		Arg:        words[1],
		Aux:        words[2],
		StreamType: words[4],
		StreamKey1: words[5],
		StreamKey2: words[6],
		Extra:      words[7],
		Seq:        words[8],
		Payload:    payload,
	}
	return f, total, nil
}

func badMagic(b []byte) error {
	return lwerr.Errorf(lwerr.Protocol, "decode", "bad frame magic %q", b)
}
