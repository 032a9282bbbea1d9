// util/error.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"fmt"
	"os"
	"strings"

	"github.com/ndsemu/gl3d/log"
)

// ErrorLogger is a small utility class used to log errors when validating
// configuration and recorded frames. It tracks context about what is
// currently being validated and accumulates multiple errors, making it
// possible to log errors while still continuing validation.
type ErrorLogger struct {
	// Tracked via Push()/Pop() calls to remember what we're looking at if
	// an error is found.
	hierarchy []string
	// Actual error messages to report.
	errors []string
	// Errors passed to Error, so that callers can match them with
	// errors.Is.
	wrapped []error
}

func (e *ErrorLogger) Push(s string) {
	e.hierarchy = append(e.hierarchy, s)
}

func (e *ErrorLogger) Pop() {
	e.hierarchy = e.hierarchy[:len(e.hierarchy)-1]
}

func (e *ErrorLogger) ErrorString(s string, args ...interface{}) {
	e.errors = append(e.errors, strings.Join(e.hierarchy, " / ")+": "+fmt.Sprintf(s, args...))
}

func (e *ErrorLogger) Error(err error) {
	e.errors = append(e.errors, strings.Join(e.hierarchy, " / ")+": "+err.Error())
	e.wrapped = append(e.wrapped, err)
}

func (e *ErrorLogger) HaveErrors() bool {
	return len(e.errors) > 0
}

func (e *ErrorLogger) PrintErrors(lg *log.Logger) {
	// Two loops so they aren't interleaved with logging to stdout
	if lg != nil {
		for _, err := range e.errors {
			lg.Errorf("%+v", err)
		}
	}
	for _, err := range e.errors {
		fmt.Fprintln(os.Stderr, err)
	}
}

func (e *ErrorLogger) String() string {
	return strings.Join(e.errors, "\n")
}

// Err returns nil if nothing was logged and otherwise a single error
// carrying every message; it unwraps to the errors given to Error.
func (e *ErrorLogger) Err() error {
	if !e.HaveErrors() {
		return nil
	}
	return &loggedErrors{msg: e.String(), wrapped: e.wrapped}
}

type loggedErrors struct {
	msg     string
	wrapped []error
}

func (l *loggedErrors) Error() string   { return l.msg }
func (l *loggedErrors) Unwrap() []error { return l.wrapped }
