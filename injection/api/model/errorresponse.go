// SPDX-License-Identifier: Apache-2.0

package model

// ErrorResponse is returned by the API server when an operation fails,
// providing information about the error.
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
}

func (e *ErrorResponse) Error() string {
	return e.ErrorType + ": " + e.ErrorMessage
}
