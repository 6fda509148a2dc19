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

// Package device is the entry point for talking to a lewei camera.
//
// A Device keeps two kinds of connection. Commands go over one cached
// connection to the command port, queued in arrival order. Live video,
// replays and downloads each open their own connection to the stream
// port, so commands can still be issued while a stream is running.
package device

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"github.com/TheCacophonyProject/lwdrone/config"
	"github.com/TheCacophonyProject/lwdrone/correlator"
	"github.com/TheCacophonyProject/lwdrone/lwerr"
	"github.com/TheCacophonyProject/lwdrone/protocol"
	"github.com/TheCacophonyProject/lwdrone/transport"
)

// Option configures a Device.
type Option func(*Device)

// WithDialer replaces the TCP dialer, usually with a fake camera.
func WithDialer(dial transport.Dialer) Option {
	return func(d *Device) {
		d.dial = dial
	}
}

// WithClock sets the clock pacing stream heartbeats.
func WithClock(clock ratelimit.Clock) Option {
	return func(d *Device) {
		d.clock = clock
	}
}

// WithPollInterval sets how often a running stream checks for a stop
// request, overriding the configured poll-interval.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Device) {
		d.poll = interval
	}
}

// New returns a Device for the camera described by conf. Nothing is
// dialled until the first operation.
func New(conf config.Config, opts ...Option) *Device {
	d := &Device{
		conf:  conf,
		dial:  transport.TCPDialer(conf.ConnectTimeout, conf.CommandTimeout),
		clock: new(realClock),
		poll:  conf.PollInterval,
		turn:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type Device struct {
	conf  config.Config
	dial  transport.Dialer
	clock ratelimit.Clock
	poll  time.Duration

	// turn admits one control operation at a time, in arrival order.
	turn chan struct{}
	conn transport.Conn
	corr *correlator.Correlator

	mu        sync.Mutex
	stream    *VideoStream
	recording bool
}

// Close stops any running stream and drops the control connection.
func (d *Device) Close() error {
	d.mu.Lock()
	s := d.stream
	d.mu.Unlock()
	if s != nil {
		s.Stop()
	}

	d.turn <- struct{}{}
	defer func() { <-d.turn }()
	d.dropControl()
	return nil
}

// control runs fn with the correlator of the control connection. A
// connection that fails or falls out of step is discarded; when a reused
// connection turns out to be dead, fn is run once more on a fresh one.
func (d *Device) control(fn func(c *correlator.Correlator) error) error {
	d.turn <- struct{}{}
	defer func() { <-d.turn }()

	reused := d.corr != nil
	err := d.tryControl(fn)
	if err != nil && reused && lwerr.KindOf(err) == lwerr.Connection {
		log.Printf("control connection lost, reconnecting: %v", err)
		err = d.tryControl(fn)
	}
	return err
}

func (d *Device) tryControl(fn func(c *correlator.Correlator) error) error {
	if d.corr == nil {
		conn := d.dial(d.conf.CommandAddr())
		if err := conn.Connect(); err != nil {
			return err
		}
		d.conn = conn
		d.corr = correlator.New(conn)
	}
	err := fn(d.corr)
	switch lwerr.KindOf(err) {
	case lwerr.Connection:
		d.dropControl()
	case lwerr.Protocol:
		if !errors.Is(err, protocol.ErrRejected) {
			d.dropControl()
		}
	}
	return err
}

func (d *Device) dropControl() {
	if d.conn != nil {
		d.conn.Close()
	}
	d.conn = nil
	d.corr = nil
}

// call sends req on the control connection and waits for a frame with the
// same opcode.
func (d *Device) call(req *protocol.Frame) (*protocol.Frame, error) {
	var resp *protocol.Frame
	err := d.control(func(c *correlator.Correlator) error {
		var err error
		resp, err = c.Call(req, req.Opcode, d.conf.CommandTimeout)
		return err
	})
	return resp, err
}

func (d *Device) get(op protocol.Opcode) (*protocol.Frame, error) {
	return d.call(protocol.NewFrame(op, nil))
}

// set sends a change the camera acknowledges with a zero arg.
func (d *Device) set(op protocol.Opcode, arg uint32, body []byte) error {
	req := protocol.NewFrame(op, body)
	req.Arg = arg
	resp, err := d.call(req)
	if err != nil {
		return err
	}
	if resp.Arg != 0 {
		return protocol.Rejected(op, resp.Arg)
	}
	return nil
}

// Heartbeat asks the camera for its status.
func (d *Device) Heartbeat() (*protocol.Status, error) {
	resp, err := d.get(protocol.Heartbeat)
	if err != nil {
		return nil, err
	}
	return protocol.ParseStatus(resp.Payload)
}

// StartRecording sets plan active on the camera, which then records to its
// SD card on the planned days and hours.
func (d *Device) StartRecording(plan protocol.RecordPlan) error {
	plan.Active = true
	if err := d.setRecordPlan(plan); err != nil {
		return err
	}
	d.setRecording(true)
	return nil
}

// StopRecording switches recording off with an inactive plan.
func (d *Device) StopRecording() error {
	plan := protocol.DefaultRecordPlan(time.Now())
	plan.Active = false
	if err := d.setRecordPlan(plan); err != nil {
		return err
	}
	d.setRecording(false)
	return nil
}

// Recording reports whether the last plan sent to or read from the camera
// was active.
func (d *Device) Recording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recording
}

func (d *Device) setRecording(on bool) {
	d.mu.Lock()
	d.recording = on
	d.mu.Unlock()
}

func (d *Device) setRecordPlan(plan protocol.RecordPlan) error {
	body, err := plan.MarshalBinary()
	if err != nil {
		return err
	}
	return d.set(protocol.SetRecPlan, 0, body)
}

// RecordPlan returns the camera's recording plan.
func (d *Device) RecordPlan() (protocol.RecordPlan, error) {
	resp, err := d.get(protocol.GetRecPlan)
	if err != nil {
		return protocol.RecordPlan{}, err
	}
	plan, err := protocol.ParseRecordPlan(resp.Payload)
	if err != nil {
		return plan, err
	}
	d.setRecording(plan.Active)
	return plan, nil
}
