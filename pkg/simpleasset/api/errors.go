package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, simpleasset.ErrValidation),
		errors.Is(err, simpleasset.ErrUnresolvedOrderEntry),
		errors.Is(err, simpleasset.ErrInvalidOwnerKind):
		return http.StatusBadRequest
	case errors.Is(err, simpleasset.ErrDerivationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, simpleasset.ErrOwnerNotFound),
		errors.Is(err, simpleasset.ErrAssetNotFound),
		errors.Is(err, simpleasset.ErrBlobNotFound),
		errors.Is(err, simpleasset.ErrInvalidKey):
		return http.StatusNotFound
	case errors.Is(err, simpleasset.ErrOwnerConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError maps service errors onto status codes. Internal failures are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		message = http.StatusText(status)
	}
	writeMessage(w, r, status, message)
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Message: message})
}

// writeFormError reports a body that could not be decoded. A body cut off by
// the size bound is 413; everything else is the client's malformed input.
func writeFormError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeMessage(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeMessage(w, r, http.StatusBadRequest, err.Error())
}
