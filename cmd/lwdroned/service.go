// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package main

import (
	"errors"
	"sync"
	"time"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"

	"github.com/TheCacophonyProject/lwdrone/config"
	"github.com/TheCacophonyProject/lwdrone/device"
	"github.com/TheCacophonyProject/lwdrone/protocol"
)

const (
	dbusName = "org.cacophony.lwdrone"
	dbusPath = "/org/cacophony/lwdrone"
)

// Recording is one entry of ListRecordings. Start is a Unix time and
// Duration is in seconds.
type Recording struct {
	Index    int32
	Path     string
	Start    int64
	Duration int64
}

// Status is the daemon's view of the camera as of the last heartbeat.
type Status struct {
	Connected bool
	Recording bool
	Streaming bool
	SDMounted bool
	SDFree    uint64
	SDSize    uint64
	// LastSeen is the Unix time of the last answered heartbeat, zero if
	// never.
	LastSeen int64
}

type service struct {
	dev *device.Device
	rec config.RecordingConfig
	now func() time.Time

	mu       sync.Mutex
	status   *protocol.Status
	lastSeen time.Time
	err      error
}

func newService(dev *device.Device, rec config.RecordingConfig) *service {
	return &service{dev: dev, rec: rec, now: time.Now}
}

func startService(s *service) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken")
	}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")
	return nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

// poll sends a heartbeat and records the answer for Status.
func (s *service) poll() error {
	st, err := s.dev.Heartbeat()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	if err == nil {
		s.status = st
		s.lastSeen = s.now()
	}
	return err
}

// TakePicture takes a still and returns the JPEG.
func (s *service) TakePicture() ([]byte, *dbus.Error) {
	jpeg, err := s.dev.TakePicture()
	if err != nil {
		return nil, makeDbusError("TakePicture", err)
	}
	return jpeg, nil
}

// StartRecording starts recording to the SD card with the configured plan.
func (s *service) StartRecording() *dbus.Error {
	plan, err := s.rec.Plan(s.now())
	if err != nil {
		return makeDbusError("StartRecording", err)
	}
	if s.rec.RotateDuration != 0 {
		if err := s.dev.SetRotateDuration(s.rec.RotateDuration); err != nil {
			return makeDbusError("StartRecording", err)
		}
	}
	if err := s.dev.StartRecording(plan); err != nil {
		return makeDbusError("StartRecording", err)
	}
	return nil
}

func (s *service) StopRecording() *dbus.Error {
	if err := s.dev.StopRecording(); err != nil {
		return makeDbusError("StopRecording", err)
	}
	return nil
}

func (s *service) ListRecordings() ([]Recording, *dbus.Error) {
	entries, err := s.dev.ListRecordings()
	if err != nil {
		return nil, makeDbusError("ListRecordings", err)
	}
	recs := make([]Recording, len(entries))
	for i, e := range entries {
		recs[i] = Recording{
			Index:    int32(e.Index),
			Path:     e.Path,
			Start:    e.Start.Unix(),
			Duration: int64(e.Duration / time.Second),
		}
	}
	return recs, nil
}

func (s *service) Status() (Status, *dbus.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Connected: s.err == nil && s.status != nil,
		Recording: s.dev.Recording(),
		Streaming: s.dev.Streaming(),
	}
	if s.status != nil {
		st.SDMounted = s.status.SDMounted
		st.SDFree = s.status.SDFree
		st.SDSize = s.status.SDSize
		st.LastSeen = s.lastSeen.Unix()
	}
	return st, nil
}

func makeDbusError(name string, err error) *dbus.Error {
	return &dbus.Error{
		Name: dbusName + "." + name,
		Body: []interface{}{err.Error()},
	}
}
