package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	apperrors "github.com/umalmyha/customers-api/internal/errors"
	"github.com/umalmyha/customers-api/internal/validation"
)

// HTTPErrorHandler maps application errors to responses, 5xx responses never expose error text
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorResponse(err)

	entry := logrus.WithFields(logrus.Fields{
		"method":    c.Request().Method,
		"uri":       c.Request().RequestURI,
		"status":    status,
		"requestId": c.Response().Header().Get(echo.HeaderXRequestID),
	}).WithError(err)

	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}

	if err != nil {
		logrus.WithError(err).Error("failed to send error response")
	}
}

func errorResponse(err error) (int, any) {
	var pldErr *validation.PayloadError
	if errors.As(err, &pldErr) {
		return http.StatusBadRequest, pldErr
	}

	var cvErr *apperrors.ConstraintViolationErr
	if errors.As(err, &cvErr) {
		return http.StatusConflict, cvErr
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Code >= http.StatusInternalServerError {
			return httpErr.Code, echo.Map{"message": http.StatusText(httpErr.Code)}
		}

		if m, ok := httpErr.Message.(string); ok {
			return httpErr.Code, echo.Map{"message": m}
		}
		return httpErr.Code, httpErr.Message
	}

	return http.StatusInternalServerError, echo.Map{"message": http.StatusText(http.StatusInternalServerError)}
}
