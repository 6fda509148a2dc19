// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package main

import (
	"log"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"

	"github.com/TheCacophonyProject/lwdrone/config"
	"github.com/TheCacophonyProject/lwdrone/device"
	"github.com/TheCacophonyProject/lwdrone/loglimiter"
)

const (
	pollInterval       = 5 * time.Second
	failureLogInterval = 5 * time.Minute
)

var version = "<not set>"

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	Record     bool   `arg:"-r,--record" help:"start recording with the configured plan once the camera answers"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = config.DefaultConfigFile
	arg.MustParse(&args)
	return args
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	if !args.Timestamps {
		log.SetFlags(0) // Removes default timestamp flag
	}

	log.Printf("version: %s", version)
	conf, err := config.ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}
	logConfig(conf)

	dev := device.New(*conf)
	defer dev.Close()

	s := newService(dev, conf.Recording)
	log.Print("starting dbus service")
	if err := startService(s); err != nil {
		return err
	}

	return monitor(s, args.Record)
}

// monitor polls the camera forever, keeping the systemd watchdog fed while
// it answers.
func monitor(s *service, record bool) error {
	failures := loglimiter.New(failureLogInterval)
	connected := false
	for {
		err := s.poll()
		switch {
		case err != nil:
			if connected {
				log.Printf("lost camera: %v", err)
				connected = false
			}
			failures.Printf("camera not answering: %v", err)
		case !connected:
			log.Print("camera connected")
			connected = true
			if record {
				if err := s.StartRecording(); err != nil {
					log.Printf("failed to start recording: %v", err)
				} else {
					record = false
				}
			}
		}
		if connected {
			daemon.SdNotify(false, "WATCHDOG=1")
		}
		time.Sleep(pollInterval)
	}
}

func logConfig(conf *config.Config) {
	log.Printf("camera command address: %s", conf.CommandAddr())
	log.Printf("camera stream address: %s", conf.StreamAddr())
	log.Printf("recording days: %v, max duration: %s", conf.Recording.Days, conf.Recording.MaxDuration)
}
