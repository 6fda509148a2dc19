// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/TheCacophonyProject/lwdrone/protocol"
)

type HeartbeatCmd struct{}

type TimeCmd struct {
	Get *TimeGetCmd `arg:"subcommand:get" help:"show the camera clock"`
	Set *TimeSetCmd `arg:"subcommand:set" help:"set the camera clock"`
}

type TimeGetCmd struct{}

type TimeSetCmd struct {
	Time string `arg:"positional" help:"RFC 3339 time, e.g. 2020-06-04T04:01:27Z (default: now)"`
}

type ResCmd struct {
	Get *ResGetCmd `arg:"subcommand:get" help:"show the recording resolution"`
	Set *ResSetCmd `arg:"subcommand:set" help:"set the recording resolution"`
}

type ResGetCmd struct{}

type ResSetCmd struct {
	Res string `arg:"positional,required" help:"720p or 1080p"`
}

type CamflipCmd struct {
	Get *CamflipGetCmd `arg:"subcommand:get" help:"show the camera orientation"`
	Set *CamflipSetCmd `arg:"subcommand:set" help:"set the camera orientation"`
}

type CamflipGetCmd struct{}

type CamflipSetCmd struct {
	Flip string `arg:"positional,required" help:"up, up_mirror, down_mirror or down"`
}

type ConfigCmd struct{}

type WifiCmd struct {
	Channel  *WifiChannelCmd  `arg:"subcommand:channel" help:"set the access point channel"`
	Name     *WifiNameCmd     `arg:"subcommand:name" help:"set the network name"`
	Password *WifiPasswordCmd `arg:"subcommand:password" help:"set the network password"`
	Defaults *WifiDefaultsCmd `arg:"subcommand:defaults" help:"restore the default name with no password"`
	Restart  *WifiRestartCmd  `arg:"subcommand:restart" help:"restart the access point"`
}

type WifiChannelCmd struct {
	Channel int `arg:"positional,required" help:"1 to 13"`
}

type WifiNameCmd struct {
	Name string `arg:"positional,required"`
}

type WifiPasswordCmd struct {
	Password string `arg:"positional,required"`
}

type WifiDefaultsCmd struct{}

type WifiRestartCmd struct{}

type BaudCmd struct {
	Get *BaudGetCmd `arg:"subcommand:get" help:"show the serial speed"`
	Set *BaudSetCmd `arg:"subcommand:set" help:"set the serial speed"`
}

type BaudGetCmd struct{}

type BaudSetCmd struct {
	Rate uint32 `arg:"positional,required" help:"1200, 2400, 4800, 9600, 19200, 38400, 57600 or 115200"`
}

type ReformatCmd struct {
	Yes bool `arg:"--yes" help:"confirm that everything on the SD card may be lost"`
}

func (a *app) heartbeat() error {
	st, err := a.dev.Heartbeat()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "sd card:  %s\n", sdCard(st.SDMounted, st.SDSize, st.SDFree))
	fmt.Fprintf(a.out, "clients:  %d\n", st.Clients)
	fmt.Fprintf(a.out, "time:     %s\n", st.Time.Format(time.RFC3339))
	return nil
}

func sdCard(mounted bool, size, free uint64) string {
	if !mounted {
		return "not mounted"
	}
	return fmt.Sprintf("%d MiB free of %d MiB", free>>20, size>>20)
}

func (a *app) camTime(cmd *TimeCmd) error {
	switch {
	case cmd.Get != nil:
		t, err := a.dev.Time()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, t.UTC().Format(time.RFC3339))
		return nil
	case cmd.Set != nil:
		t := a.now()
		if cmd.Set.Time != "" {
			var err error
			if t, err = time.Parse(time.RFC3339, cmd.Set.Time); err != nil {
				return err
			}
		}
		return a.dev.SetTime(t)
	}
	return errUsage
}

func (a *app) res(cmd *ResCmd) error {
	switch {
	case cmd.Get != nil:
		hd, err := a.dev.Resolution()
		if err != nil {
			return err
		}
		if hd {
			fmt.Fprintln(a.out, "1080p")
		} else {
			fmt.Fprintln(a.out, "720p")
		}
		return nil
	case cmd.Set != nil:
		switch cmd.Set.Res {
		case "720p":
			return a.dev.SetResolution(false)
		case "1080p":
			return a.dev.SetResolution(true)
		}
		return fmt.Errorf("unknown resolution %q", cmd.Set.Res)
	}
	return errUsage
}

func (a *app) camflip(cmd *CamflipCmd) error {
	switch {
	case cmd.Get != nil:
		flip, err := a.dev.CameraFlip()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, flip)
		return nil
	case cmd.Set != nil:
		flip, err := protocol.ParseFlip(cmd.Set.Flip)
		if err != nil {
			return err
		}
		return a.dev.SetCameraFlip(flip)
	}
	return errUsage
}

func (a *app) showConfig() error {
	c, err := a.dev.Config()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wifi name:     %s\n", c.WiFiName)
	fmt.Fprintf(a.out, "wifi password: %s\n", c.WiFiPassword)
	fmt.Fprintf(a.out, "wifi channel:  %d\n", c.WiFiChannel)
	fmt.Fprintf(a.out, "wifi security: %s\n", c.Security)
	fmt.Fprintf(a.out, "camera flip:   %s\n", c.Flip)
	fmt.Fprintf(a.out, "sd card:       %s\n", sdCard(c.SDMounted, c.SDSize, c.SDFree))
	if !c.Time.IsZero() {
		fmt.Fprintf(a.out, "time:          %s\n", c.Time.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(a.out, "version:       %s\n", c.Version)
	return nil
}

func (a *app) wifi(cmd *WifiCmd) error {
	switch {
	case cmd.Channel != nil:
		return a.dev.SetWiFiChannel(cmd.Channel.Channel)
	case cmd.Name != nil:
		return a.dev.SetWiFiName(cmd.Name.Name)
	case cmd.Password != nil:
		return a.dev.SetWiFiPassword(cmd.Password.Password)
	case cmd.Defaults != nil:
		return a.dev.SetWiFiDefaults()
	case cmd.Restart != nil:
		return a.dev.RestartWiFi()
	}
	return errUsage
}

func (a *app) baud(cmd *BaudCmd) error {
	switch {
	case cmd.Get != nil:
		rate, err := a.dev.BaudRate()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, rate)
		return nil
	case cmd.Set != nil:
		return a.dev.SetBaudRate(cmd.Set.Rate)
	}
	return errUsage
}

func (a *app) reformat(cmd *ReformatCmd) error {
	if !cmd.Yes {
		return errors.New("reformatting erases the SD card, pass --yes to go ahead")
	}
	return a.dev.ReformatSD()
}
