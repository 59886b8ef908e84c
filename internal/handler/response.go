package handler

import (
	"errors"
	"net/http"

	"github.com/campusolx/backend/internal/logger"
	"github.com/campusolx/backend/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type errorPayload struct {
	Code    string               `json:"code"`
	Message string               `json:"message"`
	Details []service.FieldError `json:"details,omitempty"`
	ChatID  *uint64              `json:"chatId,omitempty"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

func statusForKind(k service.Kind) int {
	switch k {
	case service.KindValidation, service.KindInvalidTransition, service.KindInvalidState:
		return http.StatusBadRequest
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders any error as the JSON error envelope.
func writeError(c echo.Context, err error) error {
	if se, ok := service.AsError(err); ok {
		body := NewErrorResponse(string(se.Kind), se.Message)
		if se.Reason != "" {
			body.Error.Code = se.Reason
		}
		body.Error.Details = se.Fields
		if se.Kind == service.KindConflict && se.ConflictID != 0 {
			id := se.ConflictID
			body.Error.ChatID = &id
		}
		return c.JSON(statusForKind(se.Kind), body)
	}

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		return c.JSON(he.Code, NewErrorResponse(httpCode(he.Code), msg))
	}

	logger.FromContext(c.Request().Context()).Error("request failed", zap.Error(err))
	msg := "internal server error"
	if c.Echo().Debug {
		msg = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", msg))
}

func httpCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	}
	return "bad_request"
}

// HTTPErrorHandler routes errors returned by handlers and middleware through writeError.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if werr := writeError(c, err); werr != nil {
		c.Logger().Error(werr)
	}
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
