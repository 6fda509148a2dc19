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

package protocol

import "math/bits"

// Stream types announced in the header of video frames.
const (
	StreamPlain     = 0
	StreamInvert    = 1
	StreamMidstream = 129
)

// Unmunger undoes the obfuscation the camera applies to H.264 units. Its
// parameters come from the header of the frames carrying the unit.
type Unmunger struct {
	streamType uint32
	a, b, c    uint16
}

func NewUnmunger(streamType, key1, key2 uint32) Unmunger {
	return Unmunger{
		streamType: streamType,
		a:          uint16(key1),
		b:          uint16(key1 >> 16),
		c:          uint16(key2),
	}
}

// UnmungerFor returns the Unmunger for the stream f belongs to.
func UnmungerFor(f *Frame) Unmunger {
	return NewUnmunger(f.StreamType, f.StreamKey1, f.StreamKey2)
}

// Unmunge fixes a complete unit in place. count is the unit's Count.
func (u Unmunger) Unmunge(data []byte, count uint64) {
	size := uint32(len(data))
	switch u.streamType {
	case StreamMidstream:
		u.fixMidstream(data, int(size>>1))
	case StreamInvert:
		if i := fixByte(count, size); i < size {
			data[i] = ^data[i]
		}
	}
}

// fixByte picks the inverted byte. The sum can carry past 64 bits for huge
// counts, so it is kept as a 65 bit value.
func fixByte(count uint64, size uint32) uint32 {
	p := uint64(size)
	var one uint64
	if p&1 == 0 {
		one = 1
	}
	lo, hi := bits.Add64(p^count, p, one)
	lo ^= p
	if p == 0 {
		return uint32(lo)
	}
	return uint32(bits.Rem64(hi, lo, p))
}

func (u Unmunger) fixMidstream(data []byte, i int) {
	if i+2 >= len(data) {
		return
	}
	if v, ok := tableIndex(&midstreamTable1, u.a); ok {
		data[i] = v
	}
	if v, ok := tableIndex(&midstreamTable2, u.b); ok {
		data[i+1] = data[i] ^ v
	}
	if v, ok := tableIndex(&midstreamTable3, u.c); ok {
		data[i+2] = data[i] ^ data[i+1] ^ v
	}
}

func tableIndex(t *[256]uint16, v uint16) (byte, bool) {
	for i, e := range t {
		if e == v {
			return byte(i), true
		}
	}
	return 0, false
}
