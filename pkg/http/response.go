package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// JSONResponse writes data as is with 200. Datafeed bodies carry no wrapper.
func JSONResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// OKResponse writes {"ok":true}.
func OKResponse(c echo.Context) error {
	return c.JSON(http.StatusOK, OKResult{OK: true})
}

// ErrorResponse writes the error envelope with the given status.
func ErrorResponse(c echo.Context, status int, msg string) error {
	return c.JSON(status, ErrorEnvelope{Status: StatusError, ErrMsg: msg})
}

// ValidationErrorResponse writes a 400 for the result of ReadAndValidateRequest.
func ValidationErrorResponse(c echo.Context, verr interface{}) error {
	env := ErrorEnvelope{Status: StatusError, Code: "ERR_BAD_REQUEST"}
	if details, ok := verr.([]ValidationError); ok {
		env.Details = details
		msgs := make([]string, 0, len(details))
		for _, d := range details {
			msgs = append(msgs, d.Message)
		}
		env.ErrMsg = strings.Join(msgs, "; ")
	} else {
		env.ErrMsg = "invalid request"
	}
	return c.JSON(http.StatusBadRequest, env)
}

// AppErrorResponse writes an AppError with its status, anything else as 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.JSON(appErr.Status, ErrorEnvelope{
			Status: StatusError,
			ErrMsg: appErr.Message,
			Code:   appErr.Code,
		})
	}
	return ErrorResponse(c, http.StatusInternalServerError, "internal server error")
}
