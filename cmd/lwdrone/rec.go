// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/TheCacophonyProject/window"

	"github.com/TheCacophonyProject/lwdrone/protocol"
)

type RecCmd struct {
	List   *RecListCmd   `arg:"subcommand:list" help:"list the recordings"`
	Play   *RecPlayCmd   `arg:"subcommand:play" help:"replay a recording"`
	Start  *RecStartCmd  `arg:"subcommand:start" help:"start recording to the SD card"`
	Stop   *RecStopCmd   `arg:"subcommand:stop" help:"stop recording"`
	Status *RecStatusCmd `arg:"subcommand:status" help:"show the recording plan"`
	Rotate *RecRotateCmd `arg:"subcommand:rotate" help:"show or set the recording file length"`
}

type RecListCmd struct{}

type RecPlayCmd struct {
	Index   int    `arg:"positional,required" help:"recording index, as listed"`
	OutFile string `arg:"-o,--out-file" help:"file to write the H.264 stream to, - for stdout"`
}

type RecStartCmd struct {
	Days        []string      `arg:"--days" help:"days to record on (Sun, Mon...), default from the configuration or today"`
	StartTime   string        `arg:"--start-time" help:"time of day to start, HH:MM"`
	StopTime    string        `arg:"--stop-time" help:"time of day to stop, HH:MM"`
	MaxDuration time.Duration `arg:"--max-duration" help:"longest recording"`
	Rotate      time.Duration `arg:"--rotate" help:"recording file length, 1m to 10m"`
}

type RecStopCmd struct{}

type RecStatusCmd struct{}

type RecRotateCmd struct {
	Length time.Duration `arg:"positional" help:"new recording file length, 1m to 10m"`
}

func (a *app) rec(cmd *RecCmd) error {
	switch {
	case cmd.List != nil:
		return a.recList()
	case cmd.Play != nil:
		return a.recPlay(cmd.Play)
	case cmd.Start != nil:
		return a.recStart(cmd.Start)
	case cmd.Stop != nil:
		return a.dev.StopRecording()
	case cmd.Status != nil:
		return a.recStatus()
	case cmd.Rotate != nil:
		return a.recRotate(cmd.Rotate)
	}
	return errUsage
}

func (a *app) recList() error {
	entries, err := a.dev.ListRecordings()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(a.out, "%3d  %s  %8s  %s\n",
			e.Index, e.Start.Format("2006-01-02 15:04:05"), e.Duration, e.Path)
	}
	return nil
}

func (a *app) recPlay(cmd *RecPlayCmd) error {
	w, err := a.create(cmd.OutFile)
	if err != nil {
		return err
	}
	if err := a.dev.PlayRecording(cmd.Index, w); err != nil {
		w.Close()
		return err
	}
	return w.Commit()
}

func (a *app) recStart(cmd *RecStartCmd) error {
	rc := a.conf.Recording
	if len(cmd.Days) > 0 {
		rc.Days = cmd.Days
	}
	if err := setTimeOfDay(&rc.StartTime, cmd.StartTime); err != nil {
		return err
	}
	if err := setTimeOfDay(&rc.StopTime, cmd.StopTime); err != nil {
		return err
	}
	if cmd.MaxDuration != 0 {
		rc.MaxDuration = cmd.MaxDuration
	}
	if cmd.Rotate != 0 {
		rc.RotateDuration = cmd.Rotate
	}
	if err := rc.Validate(); err != nil {
		return err
	}
	plan, err := rc.Plan(a.now())
	if err != nil {
		return err
	}

	if rc.RotateDuration != 0 {
		if err := a.dev.SetRotateDuration(rc.RotateDuration); err != nil {
			return err
		}
	}
	return a.dev.StartRecording(plan)
}

func setTimeOfDay(tod *window.TimeOfDay, s string) error {
	if s == "" {
		return nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	tod.Time = t
	return nil
}

func (a *app) recStatus() error {
	plan, err := a.dev.RecordPlan()
	if err != nil {
		return err
	}
	rotate, err := a.dev.RotateDuration()
	if err != nil {
		return err
	}
	a.printPlan(plan)
	fmt.Fprintf(a.out, "rotate:       %s\n", rotate)
	return nil
}

func (a *app) printPlan(plan protocol.RecordPlan) {
	fmt.Fprintf(a.out, "active:       %t\n", plan.Active)
	fmt.Fprintf(a.out, "days:         %s\n", strings.Join(plan.DayList(), " "))
	fmt.Fprintf(a.out, "start:        %s\n", clock(plan.Start))
	fmt.Fprintf(a.out, "end:          %s\n", clock(plan.End))
	fmt.Fprintf(a.out, "max duration: %s\n", plan.MaxDuration)
}

// clock formats an offset from midnight as HH:MM:SS.
func clock(d time.Duration) string {
	return time.Time{}.Add(d).Format("15:04:05")
}

func (a *app) recRotate(cmd *RecRotateCmd) error {
	if cmd.Length == 0 {
		rotate, err := a.dev.RotateDuration()
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, rotate)
		return nil
	}
	return a.dev.SetRotateDuration(cmd.Length)
}
