package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/slidedeck-backend/internal/platform/filestore"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromStorage maps a store error onto an HTTP status and code.
func FromStorage(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case filestore.IsValidation(err):
		return New(http.StatusBadRequest, "invalid_request", err)
	case filestore.IsNotFound(err):
		return New(http.StatusNotFound, "not_found", err)
	case filestore.IsStorageIO(err):
		return New(http.StatusInternalServerError, "storage_error", err)
	default:
		return New(http.StatusInternalServerError, "server_error", err)
	}
}
