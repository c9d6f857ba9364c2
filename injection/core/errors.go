// SPDX-License-Identifier: Apache-2.0

package core

import (
	"errors"
)

var (
	// ErrCapacityExceeded is returned when the condition or wait table is full.
	// Shared state is left unchanged.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrNotFound is returned by Wakeup when nobody waits on the point.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned before any state is touched.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrFatal marks an operation that partially succeeded and left shared
	// state inconsistent with the caller's request.
	ErrFatal = errors.New("fatal")
)

// TriggeredError is returned by points attached with ActionError.
type TriggeredError struct {
	Point string
}

func (e *TriggeredError) Error() string {
	return "error triggered for injection point " + e.Point
}
