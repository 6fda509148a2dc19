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
	"fmt"
	"time"
)

const (
	// StatusSize is the length of a heartbeat response body.
	StatusSize = 64
	// CameraConfigSize is the length of a getconfig response body.
	CameraConfigSize = 140

	wifiNameMax = 32
	wifiPassMax = 32
)

// Status is the camera's answer to a heartbeat.
type Status struct {
	SDMounted bool
	SDSize    uint64
	SDFree    uint64
	Clients   uint32
	Time      time.Time
}

func ParseStatus(data []byte) (*Status, error) {
	if len(data) != StatusSize {
		return nil, badLength("heartbeat", len(data), "64")
	}
	return &Status{
		SDMounted: le.Uint32(data[0:]) == 1,
		SDSize:    le.Uint64(data[4:]),
		SDFree:    le.Uint64(data[12:]),
		Clients:   le.Uint32(data[20:]),
		Time:      fromCameraTime(int64(le.Uint64(data[24:]))),
	}, nil
}

func (s *Status) MarshalBinary() ([]byte, error) {
	b := make([]byte, StatusSize)
	if s.SDMounted {
		le.PutUint32(b[0:], 1)
	}
	le.PutUint64(b[4:], s.SDSize)
	le.PutUint64(b[12:], s.SDFree)
	le.PutUint32(b[20:], s.Clients)
	le.PutUint64(b[24:], uint64(toCameraTime(s.Time)))
	return b, nil
}

// Flip is the camera orientation.
type Flip uint32

const (
	FlipUp         Flip = 0
	FlipUpMirror   Flip = 1
	FlipDownMirror Flip = 2
	FlipDown       Flip = 3
)

var flipNames = []string{"up", "up_mirror", "down_mirror", "down"}

func (f Flip) String() string {
	if int(f) < len(flipNames) {
		return flipNames[f]
	}
	return fmt.Sprintf("flip(%d)", uint32(f))
}

// ParseFlip accepts the names returned by Flip.String.
func ParseFlip(s string) (Flip, error) {
	for i, name := range flipNames {
		if name == s {
			return Flip(i), nil
		}
	}
	return 0, fmt.Errorf("unknown camera flip %q", s)
}

// WiFiSecurity is the access point security mode.
type WiFiSecurity uint8

const (
	WiFiOpen    WiFiSecurity = 0
	WiFiWPA2PSK WiFiSecurity = 1
)

func (w WiFiSecurity) String() string {
	switch w {
	case WiFiOpen:
		return "open"
	case WiFiWPA2PSK:
		return "WPA2-PSK"
	}
	return fmt.Sprintf("security(%d)", uint8(w))
}

// CameraConfig is the camera's settings block.
type CameraConfig struct {
	WiFiChannel  uint8
	Flip         Flip
	Security     WiFiSecurity
	WiFiName     string
	WiFiPassword string
	// Time is zero when the camera reports an invalid clock.
	Time      time.Time
	SDMounted bool
	SDSize    uint64
	SDFree    uint64
	Version   string
}

func ParseCameraConfig(data []byte) (*CameraConfig, error) {
	if len(data) != CameraConfigSize {
		return nil, badLength("config", len(data), "140")
	}
	c := &CameraConfig{
		WiFiChannel:  data[0],
		Flip:         Flip(data[1]),
		Security:     WiFiSecurity(data[2]),
		WiFiName:     cstring(data[3:35]),
		WiFiPassword: cstring(data[35:67]),
		SDMounted:    data[75] == 1,
		SDSize:       le.Uint64(data[76:]),
		SDFree:       le.Uint64(data[84:]),
		Version:      cstring(data[92:140]),
	}
	// Some firmware reports garbage here.
	if secs := int64(le.Uint64(data[67:])); secs > 0 {
		c.Time = time.Unix(secs, 0)
	}
	return c, nil
}

// MarshalBinary encodes the settable fields; the rest is left zero as the
// camera expects.
func (c *CameraConfig) MarshalBinary() ([]byte, error) {
	b := make([]byte, CameraConfigSize)
	b[0] = c.WiFiChannel
	b[1] = byte(c.Flip)
	b[2] = byte(c.Security)
	if err := putCString(b[3:35], c.WiFiName); err != nil {
		return nil, err
	}
	if err := putCString(b[35:67], c.WiFiPassword); err != nil {
		return nil, err
	}
	return b, nil
}

// WiFiNameRequest is the body of a setwifiname command.
func WiFiNameRequest(name string) ([]byte, error) {
	if len(name) > wifiNameMax {
		return nil, fmt.Errorf("wifi name longer than %d bytes", wifiNameMax)
	}
	return []byte(name), nil
}

// WiFiPasswordRequest is the body of a setwifipass command: a dummy byte
// followed by the password in a 64 byte field.
func WiFiPasswordRequest(password string) ([]byte, error) {
	if len(password) > wifiPassMax {
		return nil, fmt.Errorf("wifi password longer than %d bytes", wifiPassMax)
	}
	b := make([]byte, 65)
	b[0] = '_'
	copy(b[1:], password)
	return b, nil
}

// TimeRequest is the body of a settime command.
func TimeRequest(t time.Time) []byte {
	b := make([]byte, 8)
	le.PutUint64(b, uint64(t.Unix()))
	return b
}

// ParseTime decodes a gettime body.
func ParseTime(data []byte) (time.Time, error) {
	if len(data) != 8 {
		return time.Time{}, badLength("time", len(data), "8")
	}
	return time.Unix(int64(le.Uint64(data)), 0), nil
}
