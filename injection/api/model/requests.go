// SPDX-License-Identifier: Apache-2.0

package model

// AttachRequest is the body of /test/attach.
type AttachRequest struct {
	Name   string `json:"name"`
	Action string `json:"action"`
}

// PointRequest is the body of the operations taking only a point name.
type PointRequest struct {
	Name string `json:"name"`
}
