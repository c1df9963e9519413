package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/Lixing-Zhang/storefront/internal/repository"
	"github.com/Lixing-Zhang/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

var errInvalidID = errors.New("invalid ID supplied")

// clientErrors are reported to the caller as 400 with the error text
var clientErrors = []error{
	service.ErrMissingField,
	service.ErrInvalidDeliveryMethod,
	service.ErrMissingAddress,
	service.ErrInvalidDateTime,
	service.ErrOutOfServiceArea,
	service.ErrLeadTime,
	service.ErrClosedDay,
	service.ErrOutOfHours,
	service.ErrValidation,
	repository.ErrInsufficientStock,
	repository.ErrInvalidInput,
	errInvalidID,
}

// errorStatus maps a domain error to an HTTP status and a client-facing message.
// Unknown errors become a 500 with a generic message.
func errorStatus(err error) (int, string) {
	if errors.Is(err, repository.ErrProductNotFound) || errors.Is(err, repository.ErrNotFound) {
		return http.StatusNotFound, capitalize(err.Error())
	}
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, err.Error()
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

// capitalize upper-cases the first letter of an error text for display
func capitalize(msg string) string {
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}

// parseID reads a positive int64 URL parameter
func parseID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
