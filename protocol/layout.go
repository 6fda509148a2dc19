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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/TheCacophonyProject/lwdrone/lwerr"
)

const (
	// PathMax is the size of the path field used throughout the protocol.
	PathMax = 100

	// The camera keeps its clock in GMT+8.
	cameraZoneOffset = 8 * 60 * 60
)

// ErrRejected is the cause when the camera answers a setting change with a
// non-zero status.
var ErrRejected = errors.New("rejected by camera")

var le = binary.LittleEndian

// cstring returns the text of a NUL padded field.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// putCString copies s into a fixed size field, failing if it doesn't fit.
func putCString(dst []byte, s string) error {
	if len(s) > len(dst) {
		return fmt.Errorf("%q longer than %d bytes", s, len(dst))
	}
	copy(dst, s)
	return nil
}

// fromCameraTime converts a camera epoch (seconds in GMT+8) to UTC.
func fromCameraTime(secs int64) time.Time {
	return time.Unix(secs-cameraZoneOffset, 0).UTC()
}

func toCameraTime(t time.Time) int64 {
	return t.Unix() + cameraZoneOffset
}

func badLength(what string, got int, want string) error {
	return lwerr.Errorf(lwerr.Protocol, "parse "+what, "invalid length %d, want %s", got, want)
}

// Rejected returns the error for a setting change the camera refused.
func Rejected(op Opcode, code uint32) error {
	return lwerr.New(lwerr.Protocol, op.String(), fmt.Errorf("%w (status %d)", ErrRejected, code))
}
