// Package apperr defines the error kinds shared by the ledger domains and
// their mapping onto HTTP responses.
package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrInvalidState         = errors.New("invalid state")
	ErrDuplicatePayment     = errors.New("duplicate payment")
	ErrAlreadyRefunded      = errors.New("already refunded")
	ErrValidation           = errors.New("validation failed")
	ErrOutsideBookingWindow = errors.New("outside booking window")
	ErrConflict             = errors.New("conflict")
	ErrUnauthorized         = errors.New("unauthorized")
)

// HTTPStatus returns the response status for err. Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrOutsideBookingWindow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrDuplicatePayment),
		errors.Is(err, ErrAlreadyRefunded),
		errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTP converts err into an echo.HTTPError. Internal errors are not echoed
// back to the client; the original error is kept as Internal for logging.
func ToHTTP(err error) *echo.HTTPError {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		he := echo.NewHTTPError(status, "internal server error")
		he.Internal = err
		return he
	}
	return echo.NewHTTPError(status, err.Error())
}
