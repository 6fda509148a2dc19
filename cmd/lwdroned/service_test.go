// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/lwdrone/config"
	"github.com/TheCacophonyProject/lwdrone/device"
	"github.com/TheCacophonyProject/lwdrone/internal/fakecam"
	"github.com/TheCacophonyProject/lwdrone/protocol"
)

const cmdAddr = "192.168.0.1:8060"

var testNow = time.Date(2020, 6, 4, 4, 1, 27, 0, time.UTC)

func newTestService(cam *fakecam.Camera, rec config.RecordingConfig) *service {
	conf := config.Default()
	conf.CommandTimeout = 200 * time.Millisecond
	s := newService(device.New(conf, device.WithDialer(cam.Dial)), rec)
	s.now = func() time.Time { return testNow }
	return s
}

func answer(bodies map[protocol.Opcode][]byte) fakecam.Handler {
	return func(req *protocol.Frame) []*protocol.Frame {
		return []*protocol.Frame{fakecam.Reply(req, req.Opcode, bodies[req.Opcode])}
	}
}

func TestStatusBeforePoll(t *testing.T) {
	s := newTestService(fakecam.NewCamera(), config.Default().Recording)
	defer s.dev.Close()

	st, err := s.Status()
	require.Nil(t, err)
	assert.Equal(t, Status{}, st)
}

func TestPoll(t *testing.T) {
	hb, err := (&protocol.Status{SDMounted: true, SDSize: 8 << 30, SDFree: 1 << 30, Time: testNow}).MarshalBinary()
	require.NoError(t, err)
	cam := fakecam.NewCamera()
	cam.Handle(cmdAddr, answer(map[protocol.Opcode][]byte{protocol.Heartbeat: hb}))
	s := newTestService(cam, config.Default().Recording)
	defer s.dev.Close()

	require.NoError(t, s.poll())
	st, dbusErr := s.Status()
	require.Nil(t, dbusErr)
	assert.Equal(t, Status{
		Connected: true,
		SDMounted: true,
		SDFree:    1 << 30,
		SDSize:    8 << 30,
		LastSeen:  testNow.Unix(),
	}, st)
}

func TestPollFailureKeepsLastStatus(t *testing.T) {
	hb, err := (&protocol.Status{SDMounted: true, SDFree: 42}).MarshalBinary()
	require.NoError(t, err)
	cam := fakecam.NewCamera()
	cam.Handle(cmdAddr, answer(map[protocol.Opcode][]byte{protocol.Heartbeat: hb}))
	s := newTestService(cam, config.Default().Recording)
	defer s.dev.Close()

	require.NoError(t, s.poll())
	cam.Handle(cmdAddr, func(*protocol.Frame) []*protocol.Frame { return nil })
	cam.Last(cmdAddr).HangUp()
	assert.Error(t, s.poll())

	st, dbusErr := s.Status()
	require.Nil(t, dbusErr)
	assert.False(t, st.Connected)
	assert.Equal(t, uint64(42), st.SDFree)
}

func TestStartRecording(t *testing.T) {
	cam := fakecam.NewCamera()
	cam.Handle(cmdAddr, answer(nil))
	rec := config.Default().Recording
	rec.RotateDuration = 3 * time.Minute
	s := newTestService(cam, rec)
	defer s.dev.Close()

	require.Nil(t, s.StartRecording())
	reqs := cam.Last(cmdAddr).Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, protocol.SetRecTime, reqs[0].Opcode)
	assert.Equal(t, uint32(3), reqs[0].Arg)
	plan, err := protocol.ParseRecordPlan(reqs[1].Payload)
	require.NoError(t, err)
	assert.True(t, plan.Active)
	assert.Equal(t, []string{"Thu"}, plan.DayList())

	st, _ := s.Status()
	assert.True(t, st.Recording)

	require.Nil(t, s.StopRecording())
	st, _ = s.Status()
	assert.False(t, st.Recording)
}

func TestListRecordings(t *testing.T) {
	listing, err := protocol.MarshalRecordings([]protocol.RecordingEntry{{
		Start:    testNow,
		Duration: 90 * time.Second,
		Path:     "/mnt/Video/20200604-040127.mp4",
	}})
	require.NoError(t, err)
	cam := fakecam.NewCamera()
	cam.Handle(cmdAddr, answer(map[protocol.Opcode][]byte{protocol.GetRecList: listing}))
	s := newTestService(cam, config.Default().Recording)
	defer s.dev.Close()

	recs, dbusErr := s.ListRecordings()
	require.Nil(t, dbusErr)
	assert.Equal(t, []Recording{{
		Path:     "/mnt/Video/20200604-040127.mp4",
		Start:    testNow.Unix(),
		Duration: 90,
	}}, recs)
}

func TestErrorsNamedAfterMethod(t *testing.T) {
	s := newTestService(fakecam.NewCamera(), config.Default().Recording)
	defer s.dev.Close()

	_, err := s.TakePicture()
	require.NotNil(t, err)
	assert.Equal(t, "org.cacophony.lwdrone.TakePicture", err.Name)

	err = s.StopRecording()
	require.NotNil(t, err)
	assert.Equal(t, "org.cacophony.lwdrone.StopRecording", err.Name)
}
