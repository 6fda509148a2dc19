// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package main

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/TheCacophonyProject/lwdrone/demux"
	"github.com/TheCacophonyProject/lwdrone/relay"
)

type StreamCmd struct {
	Start *StreamStartCmd `arg:"subcommand:start" help:"stream live video until interrupted"`
}

type StreamStartCmd struct {
	LowDef  bool   `arg:"--low-def" help:"ask for the low definition stream"`
	OutFile string `arg:"-o,--out-file" help:"file to write the H.264 stream to, - for stdout (default: stdout unless serving)"`
	Serve   string `arg:"--serve" help:"relay the stream to websocket clients at this address, e.g. :8080"`
}

func (a *app) stream(cmd *StreamCmd) error {
	if cmd.Start == nil {
		return errUsage
	}
	return a.streamStart(cmd.Start)
}

func (a *app) streamStart(cmd *StreamStartCmd) error {
	var w output
	if cmd.OutFile != "" || cmd.Serve == "" {
		var err error
		if w, err = a.create(cmd.OutFile); err != nil {
			return err
		}
	}

	var hub *relay.Hub
	if cmd.Serve != "" {
		hub = relay.New(relay.DefaultQueue)
		defer hub.Close()
		mux := http.NewServeMux()
		mux.Handle("/stream", hub)
		srv := &http.Server{Addr: cmd.Serve, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				log.Printf("relay server: %v", err)
			}
		}()
		defer srv.Close()
		log.Printf("relaying video on ws://%s/stream", cmd.Serve)
	}

	err := a.pump(cmd.LowDef, w, hub)
	if w == nil {
		return err
	}
	if err != nil {
		w.Close()
		return err
	}
	return w.Commit()
}

// pump copies live video units to w and hub (either may be nil) until the
// stream is stopped or fails.
func (a *app) pump(lowDef bool, w io.Writer, hub *relay.Hub) error {
	s, err := a.dev.StartVideoStream(!lowDef)
	if err != nil {
		return err
	}
	defer s.Stop()
	for {
		u, err := s.Next()
		switch {
		case err == io.EOF:
			return nil
		case errors.Is(err, demux.ErrDropped):
			continue
		case err != nil:
			return err
		}
		if w != nil {
			if _, err := w.Write(u.Data); err != nil {
				return err
			}
		}
		if hub != nil {
			hub.Broadcast(u)
		}
	}
}
