// SPDX-License-Identifier: Apache-2.0

package model

// StatusOK is the status of every successful operation.
const StatusOK = "OK"

// StatusResponse is a response returned by the API server,
// providing status information.
type StatusResponse struct {
	Status string `json:"status"`
	// Notices emitted while running a point.
	Notices []string `json:"notices,omitempty"`
}
