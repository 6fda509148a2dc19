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

import "fmt"

const (
	// VideoHeaderSize is the length of the sub-header on each video frame.
	VideoHeaderSize = 32
	// ReplayPrefixSize is the extra prefix inside each replayed unit.
	ReplayPrefixSize = 8
)

// VideoFrame is one demultiplexed unit of video, or one chunk of a
// downloaded file. Index orders units within their session.
type VideoFrame struct {
	Index uint64
	Data  []byte
}

// VideoHeader describes the H.264 unit a stream frame belongs to. Size is
// the length of the whole unit and Count identifies it.
type VideoHeader struct {
	Flag   uint32
	Size   uint32
	Count  uint64
	GPhoto uint32
}

// ParseVideoFrame splits the body of a retstream or retreplay frame into
// its sub-header and the unit bytes it carries.
func ParseVideoFrame(data []byte) (VideoHeader, []byte, error) {
	if len(data) < VideoHeaderSize {
		return VideoHeader{}, nil, badLength("video frame", len(data), "at least 32")
	}
	h := VideoHeader{
		Flag:   le.Uint32(data[0:]),
		Size:   le.Uint32(data[4:]),
		Count:  le.Uint64(data[8:]),
		GPhoto: le.Uint32(data[16:]),
	}
	return h, data[VideoHeaderSize:], nil
}

// MarshalVideoFrame builds a stream frame body for part of a unit.
func MarshalVideoFrame(h VideoHeader, part []byte) []byte {
	b := make([]byte, VideoHeaderSize+len(part))
	le.PutUint32(b[0:], h.Flag)
	le.PutUint32(b[4:], h.Size)
	le.PutUint64(b[8:], h.Count)
	le.PutUint32(b[16:], h.GPhoto)
	copy(b[VideoHeaderSize:], part)
	return b
}

// ReplayPrefix splits a reassembled replay unit into its frame number and
// the H.264 bytes.
func ReplayPrefix(unit []byte) (uint32, []byte, error) {
	if len(unit) < ReplayPrefixSize {
		return 0, nil, badLength("replay frame", len(unit), fmt.Sprint("at least ", ReplayPrefixSize))
	}
	return le.Uint32(unit), unit[ReplayPrefixSize:], nil
}
