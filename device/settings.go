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
	"fmt"
	"time"

	"github.com/TheCacophonyProject/lwdrone/config"
	"github.com/TheCacophonyProject/lwdrone/protocol"
)

// BaudRates are the flight control serial speeds the camera accepts.
var BaudRates = []uint32{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// Time returns the camera's clock.
func (d *Device) Time() (time.Time, error) {
	resp, err := d.get(protocol.GetTime)
	if err != nil {
		return time.Time{}, err
	}
	return protocol.ParseTime(resp.Payload)
}

func (d *Device) SetTime(t time.Time) error {
	return d.set(protocol.SetTime, 0, protocol.TimeRequest(t))
}

// RotateDuration returns the length at which the camera starts a new
// recording file.
func (d *Device) RotateDuration() (time.Duration, error) {
	resp, err := d.get(protocol.GetRecTime)
	if err != nil {
		return 0, err
	}
	return time.Duration(resp.Arg) * time.Minute, nil
}

// SetRotateDuration sets the recording file length, in whole minutes. The
// camera only applies it after restarting.
func (d *Device) SetRotateDuration(length time.Duration) error {
	if length < config.MinRotateDuration || length > config.MaxRotateDuration {
		return fmt.Errorf("rotate duration %s is outside %s to %s",
			length, config.MinRotateDuration, config.MaxRotateDuration)
	}
	return d.set(protocol.SetRecTime, uint32(length/time.Minute), nil)
}

// Resolution reports whether the camera records at 1080p (otherwise 720p).
func (d *Device) Resolution() (bool, error) {
	resp, err := d.get(protocol.Get1080p)
	if err != nil {
		return false, err
	}
	return resp.Arg == 1, nil
}

func (d *Device) SetResolution(hd bool) error {
	return d.set(protocol.Set1080p, boolArg(hd), nil)
}

func (d *Device) CameraFlip() (protocol.Flip, error) {
	resp, err := d.get(protocol.GetCamFlip)
	if err != nil {
		return 0, err
	}
	return protocol.Flip(resp.Arg), nil
}

func (d *Device) SetCameraFlip(flip protocol.Flip) error {
	return d.set(protocol.SetCamFlip, uint32(flip), nil)
}

// Config returns the camera's settings block.
func (d *Device) Config() (*protocol.CameraConfig, error) {
	resp, err := d.get(protocol.GetConfig)
	if err != nil {
		return nil, err
	}
	return protocol.ParseCameraConfig(resp.Payload)
}

// ReformatSD wipes the camera's SD card.
func (d *Device) ReformatSD() error {
	return d.set(protocol.ReformatSD, 0, nil)
}

// RestartWiFi restarts the camera's access point. It goes down about five
// seconds after the camera answers and comes back a second later.
func (d *Device) RestartWiFi() error {
	return d.set(protocol.RestartWiFi, 0, nil)
}

func (d *Device) SetWiFiChannel(channel int) error {
	if channel < 1 || channel > 13 {
		return fmt.Errorf("invalid wifi channel %d", channel)
	}
	return d.set(protocol.SetWiFiChan, uint32(channel), nil)
}

func (d *Device) SetWiFiName(name string) error {
	body, err := protocol.WiFiNameRequest(name)
	if err != nil {
		return err
	}
	return d.set(protocol.SetWiFiName, 0, body)
}

func (d *Device) SetWiFiPassword(password string) error {
	body, err := protocol.WiFiPasswordRequest(password)
	if err != nil {
		return err
	}
	return d.set(protocol.SetWiFiPass, 0, body)
}

// SetWiFiDefaults restores the default network name with no password.
func (d *Device) SetWiFiDefaults() error {
	return d.set(protocol.SetWiFiDefs, 0, nil)
}

// BaudRate returns the serial speed used to talk to the flight controller.
func (d *Device) BaudRate() (uint32, error) {
	resp, err := d.get(protocol.GetBaudRate)
	if err != nil {
		return 0, err
	}
	return resp.Arg, nil
}

func (d *Device) SetBaudRate(rate uint32) error {
	for _, r := range BaudRates {
		if r == rate {
			return d.set(protocol.SetBaudRate, rate, nil)
		}
	}
	return fmt.Errorf("unsupported baud rate %d", rate)
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
