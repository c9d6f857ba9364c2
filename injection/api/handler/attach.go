// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"net/http"

	"github.com/pgtest/injection-points/injection/api/model"
	"github.com/pgtest/injection-points/injection/api/rendering"
	"github.com/pgtest/injection-points/injection/core"
)

type attachHandler struct {
	module InjectionPoints
}

func (h *attachHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	var req model.AttachRequest
	if !decodeRequest(writer, request, &req) {
		return
	}

	if err := h.module.Attach(req.Name, core.Action(req.Action)); err != nil {
		rendering.RenderError(writer, request, err)
		return
	}

	rendering.RenderOK(writer, request)
}

// NewAttachHandler returns a new instance of http handler
// for serving /test/attach.
func NewAttachHandler(module InjectionPoints) http.Handler {
	return &attachHandler{module: module}
}
