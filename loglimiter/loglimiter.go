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

// Package loglimiter keeps noisy log lines (dropped video units, a relay
// client falling behind, a camera that stopped answering) from flooding
// the log.
package loglimiter

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// New returns a LogLimiter that lets the same line through at most once
// per interval.
func New(interval time.Duration) *LogLimiter {
	return &LogLimiter{
		interval: interval,
		nowFunc:  time.Now,
		output:   log.Print,
	}
}

// LogLimiter suppresses a line seen again within the interval. When a
// suppressed line is next let through it carries the number of repeats
// that were held back; when a different line arrives first, the count is
// logged on its own.
//
// A LogLimiter is safe for concurrent use.
type LogLimiter struct {
	interval time.Duration
	nowFunc  func() time.Time
	output   func(v ...interface{})

	mu         sync.Mutex
	last       string
	lastTime   time.Time
	suppressed int
}

func (l *LogLimiter) Printf(format string, v ...interface{}) {
	l.Print(fmt.Sprintf(format, v...))
}

func (l *LogLimiter) Print(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if s == l.last && now.Sub(l.lastTime) < l.interval {
		l.suppressed++
		return
	}
	switch {
	case l.suppressed == 0:
		l.output(s)
	case s == l.last:
		l.output(fmt.Sprintf("%s (repeated %d more times)", s, l.suppressed))
	default:
		l.output(fmt.Sprintf("last message repeated %d more times", l.suppressed))
		l.output(s)
	}
	l.last = s
	l.lastTime = now
	l.suppressed = 0
}

// Suppressed returns how many lines are currently being held back.
func (l *LogLimiter) Suppressed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.suppressed
}
