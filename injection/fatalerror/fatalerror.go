// SPDX-License-Identifier: Apache-2.0

package fatalerror

import (
	"regexp"
)

// This package defines the error types reported to callers of the
// injection point API. Separate package for namespacing.

// ErrorType is reported in the errorType field of API error responses
type ErrorType string

const (
	// Caller errors
	InvalidArgument ErrorType = "Injection.InvalidArgument" // unknown action, bad name, malformed request
	NotFound        ErrorType = "Injection.NotFound"        // wakeup of a point nobody waits on
	PointExists     ErrorType = "Injection.PointExists"     // attach of an already attached point

	// Capacity errors
	CapacityExceeded ErrorType = "Injection.CapacityExceeded" // condition, wait or point table full

	// Triggered by an attached point
	Triggered ErrorType = "Injection.Error"

	// The caller went away or timed out while a point was running
	Canceled ErrorType = "Injection.Canceled"

	// Server errors
	Fatal    ErrorType = "Injection.Fatal" // shared state no longer matches what the caller asked for
	Internal ErrorType = "Injection.Internal"
	Unknown  ErrorType = "Injection.Unknown"
)

var knownErrorTypes = map[ErrorType]struct{}{
	InvalidArgument:  {},
	NotFound:         {},
	PointExists:      {},
	CapacityExceeded: {},
	Triggered:        {},
	Canceled:         {},
	Fatal:            {},
	Internal:         {},
}

var errorTypePattern = regexp.MustCompile(`^Injection\.[A-Z][a-zA-Z]+$`)

// GetValidErrorType returns errorType when it is a well formed injection
// error type, and Unknown otherwise.
func GetValidErrorType(errorType string) ErrorType {
	if _, ok := knownErrorTypes[ErrorType(errorType)]; ok {
		return ErrorType(errorType)
	}
	if errorTypePattern.MatchString(errorType) {
		return ErrorType(errorType)
	}
	return Unknown
}
