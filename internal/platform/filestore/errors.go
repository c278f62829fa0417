package filestore

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindValidation ErrorKind = "validation"
	KindStorageIO  ErrorKind = "storage_io"
)

// Error is returned by every store operation that fails. Op names the store
// operation, Path is the relative path involved (when known).
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "filestore error"
	}
	msg := string(e.Kind)
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func validationErr(op, path string, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Path: path, Err: fmt.Errorf(format, args...)}
}

func notFoundErr(op, path string) error {
	return &Error{Kind: KindNotFound, Op: op, Path: path, Err: errors.New("file not found")}
}

func ioErr(op, path string, err error) error {
	return &Error{Kind: KindStorageIO, Op: op, Path: path, Err: err}
}

func kindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func IsNotFound(err error) bool   { return kindOf(err) == KindNotFound }
func IsValidation(err error) bool { return kindOf(err) == KindValidation }
func IsStorageIO(err error) bool  { return kindOf(err) == KindStorageIO }
