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

import (
	"time"
)

// RecordEntrySize is the length of one entry in a recording listing.
const RecordEntrySize = 116

// RecordingEntry is one row of the camera's stored video index.
type RecordingEntry struct {
	Index    int
	Start    time.Time
	Duration time.Duration
	Path     string
}

// ParseRecordings decodes a listing body. Indexes are assigned in the
// order the camera reported the entries, starting at first.
func ParseRecordings(data []byte, first int) ([]RecordingEntry, error) {
	if len(data)%RecordEntrySize != 0 {
		return nil, badLength("recording list", len(data), "a multiple of 116")
	}
	entries := make([]RecordingEntry, 0, len(data)/RecordEntrySize)
	for off := 0; off < len(data); off += RecordEntrySize {
		b := data[off : off+RecordEntrySize]
		entries = append(entries, RecordingEntry{
			Index:    first + len(entries),
			Start:    fromCameraTime(int64(le.Uint32(b[0:]))),
			Duration: time.Duration(le.Uint32(b[4:])) * time.Second,
			Path:     cstring(b[16:]),
		})
	}
	return entries, nil
}

// MarshalRecordings encodes entries the way the camera lists them.
func MarshalRecordings(entries []RecordingEntry) ([]byte, error) {
	data := make([]byte, len(entries)*RecordEntrySize)
	for i, e := range entries {
		b := data[i*RecordEntrySize:]
		le.PutUint32(b[0:], uint32(toCameraTime(e.Start)))
		le.PutUint32(b[4:], uint32(e.Duration/time.Second))
		if err := putCString(b[16:16+PathMax], e.Path); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// RecordListRequest is the body of a getreclist command asking for up to
// 255 recordings on channel 1 made before ten years from now.
func RecordListRequest(now time.Time) []byte {
	b := make([]byte, 20)
	le.PutUint32(b[0:], 1)
	le.PutUint32(b[4:], 1)
	le.PutUint32(b[8:], 255)
	le.PutUint32(b[12:], uint32(now.AddDate(10, 0, 0).Unix()))
	return b
}

// ReplayRequest is the body of a startreplay command for e.
func ReplayRequest(e RecordingEntry) ([]byte, error) {
	b := make([]byte, 8+16+PathMax)
	start := e.Start.Unix()
	le.PutUint32(b[0:], uint32(start))
	le.PutUint32(b[4:], uint32(start+int64(e.Duration/time.Second)))
	if err := putCString(b[24:], e.Path); err != nil {
		return nil, err
	}
	return b, nil
}

// PathRequest is a body holding only a path, as used by delfile.
func PathRequest(path string) ([]byte, error) {
	b := make([]byte, PathMax)
	if err := putCString(b, path); err != nil {
		return nil, err
	}
	return b, nil
}
