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

package protocol

import (
	"fmt"
	"strings"
	"time"
)

// RecordPlanSize is the length of a record plan body.
const RecordPlanSize = 20

// DayNames are the abbreviations used for RecordPlan.Days, Sunday first.
var DayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// RecordPlan is the camera's recording schedule. Recording to the SD card
// is switched on and off by sending an active or inactive plan.
type RecordPlan struct {
	Active bool
	// Days is indexed by time.Weekday.
	Days [7]bool
	// Start and End are offsets from midnight, camera local time.
	Start       time.Duration
	End         time.Duration
	MaxDuration time.Duration
}

// DefaultRecordPlan records all of today (in the camera's time zone) in
// five minute files.
func DefaultRecordPlan(now time.Time) RecordPlan {
	var p RecordPlan
	p.Active = true
	p.Days[now.In(cameraZone).Weekday()] = true
	p.End = 24*time.Hour - time.Second
	p.MaxDuration = 5 * time.Minute
	return p
}

var cameraZone = time.FixedZone("GMT+8", cameraZoneOffset)

// ParseDays converts day abbreviations ("Sun", "mon"...) into plan days.
func ParseDays(names []string) ([7]bool, error) {
	var days [7]bool
	for _, name := range names {
		found := false
		for i, d := range DayNames {
			if strings.EqualFold(d, name) {
				days[i] = true
				found = true
			}
		}
		if !found {
			return days, fmt.Errorf("unknown day %q", name)
		}
	}
	return days, nil
}

// DayList returns the abbreviations of the active days.
func (p RecordPlan) DayList() []string {
	var out []string
	for i, on := range p.Days {
		if on {
			out = append(out, DayNames[i])
		}
	}
	return out
}

func (p RecordPlan) MarshalBinary() ([]byte, error) {
	if p.Start < 0 || p.Start >= 24*time.Hour || p.End < 0 || p.End >= 24*time.Hour {
		return nil, fmt.Errorf("record plan times must be within a day")
	}
	b := make([]byte, RecordPlanSize)
	if p.Active {
		le.PutUint32(b[0:], 1)
	}
	var flags uint32
	for i, on := range p.Days {
		if on {
			flags |= 1 << uint(i)
		}
	}
	le.PutUint32(b[4:], flags)
	le.PutUint32(b[8:], uint32(p.Start/time.Second))
	le.PutUint32(b[12:], uint32(p.End/time.Second))
	le.PutUint32(b[16:], uint32(p.MaxDuration/time.Second))
	return b, nil
}

func ParseRecordPlan(data []byte) (RecordPlan, error) {
	var p RecordPlan
	if len(data) != RecordPlanSize {
		return p, badLength("record plan", len(data), "20")
	}
	p.Active = le.Uint32(data[0:]) != 0
	flags := le.Uint32(data[4:])
	for i := range p.Days {
		p.Days[i] = flags&(1<<uint(i)) != 0
	}
	p.Start = time.Duration(le.Uint32(data[8:])) * time.Second
	p.End = time.Duration(le.Uint32(data[12:])) * time.Second
	p.MaxDuration = time.Duration(le.Uint32(data[16:])) * time.Second
	return p, nil
}
