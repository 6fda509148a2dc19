// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package main

import (
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"

	"github.com/TheCacophonyProject/lwdrone/config"
	"github.com/TheCacophonyProject/lwdrone/device"
)

var version = "<not set>"

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	Address    string `arg:"-a,--address" help:"camera address, overriding the configuration file"`
	Quiet      bool   `arg:"-q,--quiet" help:"don't report success or failure"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`

	Rec       *RecCmd       `arg:"subcommand:rec" help:"recordings on the SD card"`
	Stream    *StreamCmd    `arg:"subcommand:stream" help:"live video"`
	Pic       *PicCmd       `arg:"subcommand:pic" help:"still pictures"`
	File      *FileCmd      `arg:"subcommand:file" help:"files on the SD card"`
	Heartbeat *HeartbeatCmd `arg:"subcommand:heartbeat" help:"show the camera status"`
	Time      *TimeCmd      `arg:"subcommand:time" help:"camera clock"`
	Res       *ResCmd       `arg:"subcommand:res" help:"recording resolution"`
	Camflip   *CamflipCmd   `arg:"subcommand:camflip" help:"camera orientation"`
	Config    *ConfigCmd    `arg:"subcommand:config" help:"show the camera settings"`
	Wifi      *WifiCmd      `arg:"subcommand:wifi" help:"access point settings"`
	Baud      *BaudCmd      `arg:"subcommand:baud" help:"flight controller serial speed"`
	Reformat  *ReformatCmd  `arg:"subcommand:reformat" help:"wipe the SD card"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = config.DefaultConfigFile
	p := arg.MustParse(&args)
	if p.Subcommand() == nil {
		p.Fail("missing command")
	}
	return args
}

func main() {
	args := procArgs()
	if !args.Timestamps {
		log.SetFlags(0) // Removes default timestamp flag
	}
	err := runMain(args)
	if !args.Quiet {
		if err != nil {
			log.Printf("failure: %v", err)
		} else {
			log.Print("success")
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func runMain(args Args) error {
	conf, err := loadConfig(args.ConfigFile)
	if err != nil {
		return err
	}
	if args.Address != "" {
		conf.Address = args.Address
	}

	dev := device.New(*conf)
	defer dev.Close()

	// Ctrl-C ends a stream or replay cleanly; anything else just dies.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		if !dev.Streaming() {
			log.Printf("%v", sig)
			os.Exit(1)
		}
		dev.StopVideoStream()
	}()

	a := &app{dev: dev, conf: conf, out: os.Stdout, now: time.Now}
	return a.run(args)
}

// loadConfig reads filename, falling back to the defaults when the default
// file isn't there.
func loadConfig(filename string) (*config.Config, error) {
	conf, err := config.ParseConfigFile(filename)
	if errors.Is(err, os.ErrNotExist) && filename == config.DefaultConfigFile {
		d := config.Default()
		return &d, nil
	}
	return conf, err
}

type app struct {
	dev  *device.Device
	conf *config.Config
	out  io.Writer
	now  func() time.Time
}

func (a *app) run(args Args) error {
	switch {
	case args.Rec != nil:
		return a.rec(args.Rec)
	case args.Stream != nil:
		return a.stream(args.Stream)
	case args.Pic != nil:
		return a.pic(args.Pic)
	case args.File != nil:
		return a.file(args.File)
	case args.Heartbeat != nil:
		return a.heartbeat()
	case args.Time != nil:
		return a.camTime(args.Time)
	case args.Res != nil:
		return a.res(args.Res)
	case args.Camflip != nil:
		return a.camflip(args.Camflip)
	case args.Config != nil:
		return a.showConfig()
	case args.Wifi != nil:
		return a.wifi(args.Wifi)
	case args.Baud != nil:
		return a.baud(args.Baud)
	case args.Reformat != nil:
		return a.reformat(args.Reformat)
	}
	return errors.New("missing command")
}

// errUsage is returned when a command group is given without a subcommand.
var errUsage = errors.New("missing subcommand, see --help")
