// SPDX-License-Identifier: Apache-2.0

package rendering

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/pgtest/injection-points/injection/api/model"
	"github.com/pgtest/injection-points/injection/core"
	"github.com/pgtest/injection-points/injection/fatalerror"
	"github.com/pgtest/injection-points/injection/points"
)

// ErrorStatus maps an error returned by the injection points module to the
// error type and HTTP status reported to the caller.
func ErrorStatus(err error) (fatalerror.ErrorType, int) {
	var triggered *core.TriggeredError

	switch {
	case errors.As(err, &triggered):
		return fatalerror.Triggered, http.StatusConflict
	// Checked first: fatal errors also wrap the error that caused them.
	case errors.Is(err, core.ErrFatal):
		return fatalerror.Fatal, http.StatusInternalServerError
	case errors.Is(err, core.ErrCapacityExceeded), errors.Is(err, points.ErrRegistryFull):
		return fatalerror.CapacityExceeded, http.StatusInsufficientStorage
	case errors.Is(err, core.ErrInvalidArgument), errors.Is(err, points.ErrInvalidName):
		return fatalerror.InvalidArgument, http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return fatalerror.NotFound, http.StatusNotFound
	case errors.Is(err, points.ErrPointExists):
		return fatalerror.PointExists, http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fatalerror.Canceled, http.StatusRequestTimeout
	}
	return fatalerror.Internal, http.StatusInternalServerError
}

// RenderError renders err with the status ErrorStatus assigns to it.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	errorType, status := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("errorType", errorType).Error("Injection point operation failed")
	}

	RenderJSON(status, w, r, &model.ErrorResponse{
		ErrorType:    string(errorType),
		ErrorMessage: err.Error(),
	})
}

// RenderInvalidRequest method for rendering error response
func RenderInvalidRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	RenderJSON(http.StatusBadRequest, w, r, &model.ErrorResponse{
		ErrorType:    string(fatalerror.InvalidArgument),
		ErrorMessage: fmt.Sprintf(format, args...),
	})
}
