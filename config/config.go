// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

// Package config loads the camera client settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"strconv"
	"time"

	"github.com/TheCacophonyProject/window"
	yaml "gopkg.in/yaml.v2"

	"github.com/TheCacophonyProject/lwdrone/protocol"
)

// DefaultConfigFile is where the tools look for settings.
const DefaultConfigFile = "/etc/lwdrone.yaml"

type Config struct {
	Address           string          `yaml:"address"`
	CommandPort       int             `yaml:"command-port"`
	StreamPort        int             `yaml:"stream-port"`
	ConnectTimeout    time.Duration   `yaml:"connect-timeout"`
	CommandTimeout    time.Duration   `yaml:"command-timeout"`
	StreamTimeout     time.Duration   `yaml:"stream-timeout"`
	PollInterval      time.Duration   `yaml:"poll-interval"`
	HeartbeatInterval time.Duration   `yaml:"heartbeat-interval"`
	ChunkRetries      int             `yaml:"chunk-retries"`
	Recording         RecordingConfig `yaml:"recording"`
}

// RecordingConfig describes the plan sent to the camera when recording is
// started.
type RecordingConfig struct {
	// Days holds day abbreviations ("Mon", "tue"...). Empty means today.
	Days      []string         `yaml:"days"`
	StartTime window.TimeOfDay `yaml:"start-time"`
	// StopTime unset means the end of the day.
	StopTime       window.TimeOfDay `yaml:"stop-time"`
	MaxDuration    time.Duration    `yaml:"max-duration"`
	RotateDuration time.Duration    `yaml:"rotate-duration"`
}

// Limits the camera puts on recording file lengths.
const (
	MinRotateDuration = time.Minute
	MaxRotateDuration = 10 * time.Minute
)

var defaultConfig = Config{
	Address:           "192.168.0.1",
	CommandPort:       8060,
	StreamPort:        7060,
	ConnectTimeout:    15 * time.Second,
	CommandTimeout:    5 * time.Second,
	StreamTimeout:     5 * time.Second,
	PollInterval:      200 * time.Millisecond,
	HeartbeatInterval: time.Second,
	ChunkRetries:      3,
	Recording: RecordingConfig{
		MaxDuration: 5 * time.Minute,
	},
}

// Default returns the settings used when no file is given.
func Default() Config {
	return defaultConfig
}

func ParseConfigFile(filename string) (*Config, error) {
	buf, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(buf)
}

func ParseConfig(buf []byte) (*Config, error) {
	conf := defaultConfig
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (conf *Config) Validate() error {
	if conf.Address == "" {
		return errors.New("address is not set")
	}
	if err := validPort("command-port", conf.CommandPort); err != nil {
		return err
	}
	if err := validPort("stream-port", conf.StreamPort); err != nil {
		return err
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"connect-timeout", conf.ConnectTimeout},
		{"command-timeout", conf.CommandTimeout},
		{"stream-timeout", conf.StreamTimeout},
		{"poll-interval", conf.PollInterval},
		{"heartbeat-interval", conf.HeartbeatInterval},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s should be greater than zero", d.name)
		}
	}
	if conf.PollInterval > conf.StreamTimeout {
		return errors.New("poll-interval should not be longer than stream-timeout")
	}
	if conf.ChunkRetries < 0 {
		return errors.New("chunk-retries can't be negative")
	}
	return conf.Recording.Validate()
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s %d is out of range", name, port)
	}
	return nil
}

// CommandAddr is the host:port of the camera's command port.
func (conf *Config) CommandAddr() string {
	return net.JoinHostPort(conf.Address, strconv.Itoa(conf.CommandPort))
}

// StreamAddr is the host:port of the camera's stream port.
func (conf *Config) StreamAddr() string {
	return net.JoinHostPort(conf.Address, strconv.Itoa(conf.StreamPort))
}

func (conf *RecordingConfig) Validate() error {
	if _, err := protocol.ParseDays(conf.Days); err != nil {
		return fmt.Errorf("recording days: %v", err)
	}
	if conf.MaxDuration < time.Second {
		return errors.New("recording max-duration should be at least 1s")
	}
	if d := conf.RotateDuration; d != 0 && (d < MinRotateDuration || d > MaxRotateDuration) {
		return fmt.Errorf("recording rotate-duration should be between %s and %s", MinRotateDuration, MaxRotateDuration)
	}
	return nil
}

// Plan returns the record plan for recording starting at now.
func (conf *RecordingConfig) Plan(now time.Time) (protocol.RecordPlan, error) {
	plan := protocol.DefaultRecordPlan(now)
	if len(conf.Days) > 0 {
		days, err := protocol.ParseDays(conf.Days)
		if err != nil {
			return plan, err
		}
		plan.Days = days
	}
	if !conf.StartTime.IsZero() {
		plan.Start = sinceMidnight(conf.StartTime.Time)
	}
	if !conf.StopTime.IsZero() {
		plan.End = sinceMidnight(conf.StopTime.Time)
	}
	plan.MaxDuration = conf.MaxDuration
	return plan, nil
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}
