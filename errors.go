/*
Copyright © 2021 the RTM authors.
This file is part of RTM.

RTM is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

RTM is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with RTM.  If not, see <http://www.gnu.org/licenses/>.
*/

package rtm

import (
	"fmt"
	"strings"
)

// ErrorKind classifies the failures that can stop a migration.
type ErrorKind int

// Kinds of errors. None of them are retried: a migration either
// completes for every selected shot or it fails.
const (
	// ConfigurationError is an unsupported or missing setting detected at start-up.
	ConfigurationError ErrorKind = iota + 1
	// DeviceResourceError is a failure to obtain compute resources or memory.
	DeviceResourceError
	// DataBoundsError is an access outside of a grid or checkpoint store.
	DataBoundsError
	// CollaboratorIOError is a missing or unreadable model or trace file.
	CollaboratorIOError
	// LogicError is a call made in the wrong state, for example restoring
	// a checkpoint out of order.
	LogicError
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigurationError:
		return "configuration error"
	case DeviceResourceError:
		return "device resource error"
	case DataBoundsError:
		return "data bounds error"
	case CollaboratorIOError:
		return "collaborator I/O error"
	case LogicError:
		return "logic error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the error type returned (or panicked with, for programming
// errors) by the imaging core.
type Error struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "GridBox.Get"
	Path string // file involved, if any
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("rtm: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// NewError returns an *Error of the given kind with a formatted message.
func NewError(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func errorf(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return NewError(kind, op, format, args...)
}

func ioError(op, path string, err error) *Error {
	return &Error{Kind: CollaboratorIOError, Op: op, Path: path, Err: err}
}

// IsKind reports whether err, or any error it wraps, is an *Error of
// the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// recoverShot converts a panic carrying an *Error (or anything else)
// into an error stored in *err.
func recoverShot(shot int, err *error) {
	r := recover()
	if r == nil {
		return
	}
	switch v := r.(type) {
	case *Error:
		*err = fmt.Errorf("rtm: shot %d: %w", shot, v)
	case error:
		*err = fmt.Errorf("rtm: shot %d: %w", shot, v)
	default:
		*err = fmt.Errorf("rtm: shot %d: %v", shot, v)
	}
}
