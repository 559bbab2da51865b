//
//  Copyright © Manetu Inc. All rights reserved.
//

package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/manetu/datasentinel/pkg/common"
)

var statusByCode = map[common.Code]int{
	common.InvalidRequest:    http.StatusBadRequest,
	common.InvalidTrapType:   http.StatusBadRequest,
	common.UserNotFound:      http.StatusNotFound,
	common.WatermarkNotFound: http.StatusNotFound,
	common.Unauthorized:      http.StatusUnauthorized,
	common.LockFailed:        http.StatusServiceUnavailable,
}

// ErrorHandler renders errors as [ErrorResponse] bodies.  Sentinel errors map onto HTTP
// statuses by code; anything unclassified is a 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := ErrorResponse{Error: err.Error()}

	var se *common.SentinelError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &se):
		if s, ok := statusByCode[se.Code]; ok {
			status = s
		}
		body = ErrorResponse{Error: se.Reason, Code: string(se.Code)}
	case errors.As(err, &he):
		status = he.Code
		if msg, ok := he.Message.(string); ok {
			body.Error = msg
		} else {
			body.Error = http.StatusText(status)
		}
	default:
		logger.Errorf(agent, "error", "%s %s failed: %+v", c.Request().Method, c.Path(), err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logger.Warnf(agent, "error", "unable to write error response: %v", err)
	}
}

func badRequest(format string, args ...interface{}) error {
	return common.NewError(common.InvalidRequest, format, args...)
}
