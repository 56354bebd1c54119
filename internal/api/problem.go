package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"casefiling/backend/pkg/apperr"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Status   int      `json:"status"`
	Detail   string   `json:"detail"`
	Instance string   `json:"instance,omitempty"`
	Kind     string   `json:"kind,omitempty"`
	Fields   []string `json:"fields,omitempty"`
}

const problemTypeBase = "urn:casefiling:problem:"

// StatusForKind returns the HTTP status an error kind is reported with.
func StatusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindImmutableField:
		return http.StatusUnprocessableEntity
	case apperr.KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders every handler error as application/problem+json.
// Internal errors are logged with their cause and answered without it.
func ErrorHandler(logger Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		problem := ProblemDetails{Type: "about:blank", Instance: c.Request().URL.Path}

		var appErr *apperr.Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			problem.Status = StatusForKind(appErr.Kind)
			problem.Type = problemTypeBase + strings.ToLower(string(appErr.Kind))
			problem.Kind = string(appErr.Kind)
			problem.Title = http.StatusText(problem.Status)
			problem.Detail = appErr.Message
			problem.Fields = appErr.Fields
			if appErr.Kind == apperr.KindInternal {
				logger.Error("request failed", "path", c.Path(), "error", err)
				problem.Detail = "internal error"
			}
		case errors.As(err, &httpErr):
			problem.Status = httpErr.Code
			problem.Title = http.StatusText(httpErr.Code)
			if msg, ok := httpErr.Message.(string); ok {
				problem.Detail = msg
			}
		default:
			logger.Error("unhandled request error", "path", c.Path(), "error", err)
			problem.Status = http.StatusInternalServerError
			problem.Title = http.StatusText(http.StatusInternalServerError)
			problem.Detail = "internal error"
		}

		c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(problem.Status)
			return
		}
		_ = c.JSON(problem.Status, problem)
	}
}
