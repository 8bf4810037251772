package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const serverErrorMessage = "Server error"

// Body renders err as the JSON body and status code sent to clients.
// Internal errors never leak their text.
func Body(err error) (int, map[string]interface{}) {
	var ae *Error
	if errors.As(err, &ae) {
		status := ae.Kind.Status()
		msg := ae.Message
		if status == http.StatusInternalServerError {
			msg = serverErrorMessage
		}
		body := map[string]interface{}{"message": msg}
		for k, v := range ae.Fields {
			body[k] = v
		}
		return status, body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, map[string]interface{}{"message": serverErrorMessage}
		}
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, map[string]interface{}{"message": msg}
	}

	return http.StatusInternalServerError, map[string]interface{}{"message": serverErrorMessage}
}

// ErrorHandler is installed as echo's HTTPErrorHandler. 5xx errors are logged
// with the request id and path before the sanitized body is written. Conflicts
// (taken slots, duplicate emails) are logged at info level.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Body(err)
		reqID, _ := c.Get("request_id").(string)
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error().
				Err(err).
				Str("request_id", reqID).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		case IsConflict(err):
			logger.Info().
				Str("request_id", reqID).
				Str("path", c.Request().URL.Path).
				Str("reason", body["message"].(string)).
				Msg("request conflict")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
