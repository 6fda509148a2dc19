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

// Package lwerr defines the error kinds reported by the camera client.
//
// Every failure that crosses a package boundary is an *Error carrying one
// of four kinds. Callers branch on the kind with errors.Is:
//
//	if errors.Is(err, lwerr.ErrTimeout) { ... }
//
// and reach the underlying cause with errors.Unwrap or errors.As.
package lwerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Connection means the socket could not be established or maintained.
	Connection Kind = iota + 1
	// Timeout means an expected response did not arrive in time.
	Timeout
	// Protocol means the device sent well-formed bytes that broke the
	// expected frame or response contract.
	Protocol
	// Transfer means a download completed short, out of order or with a gap.
	Transfer
)

func (k Kind) String() string {
	switch k {
	case Connection:
		return "connection error"
	case Timeout:
		return "timeout"
	case Protocol:
		return "protocol error"
	case Transfer:
		return "transfer error"
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// Sentinels for use with errors.Is.
var (
	ErrConnection = &Error{Kind: Connection}
	ErrTimeout    = &Error{Kind: Timeout}
	ErrProtocol   = &Error{Kind: Protocol}
	ErrTransfer   = &Error{Kind: Transfer}
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New returns an *Error of the given kind wrapping err.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is New with a formatted cause.
func Errorf(kind Kind, op string, format string, v ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, v...)}
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
