// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package failure provides the error taxonomy shared by all gourd packages.

Every error that crosses a package boundary is a *Error with a Type. The HTTP layer
maps the Type to a status code with HTTPStatus, so handlers never need to inspect
driver specific errors themselves.
*/
package failure

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
)

// Type represents the category of an error
type Type string

// all error categories
const (
	TypeValidation     Type = "validation"
	TypeAuthentication Type = "authentication"
	TypeAuthorization  Type = "authorization"
	TypeStorage        Type = "storage"
	TypeNotFound       Type = "not_found"
	TypeInternal       Type = "internal"
)

// Error is a categorized error with an optional cause
type Error struct {
	Type    Type
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error of the given type
func New(t Type, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Newf creates a new error of the given type with a formatted message
func Newf(t Type, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a type and message
func Wrap(err error, t Type, message string) *Error {
	return &Error{Type: t, Message: message, Cause: err}
}

// Wrapf wraps err with a type and a formatted message
func Wrapf(err error, t Type, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Validation is a shortcut for a validation error with a formatted message
func Validation(format string, args ...interface{}) *Error {
	return Newf(TypeValidation, format, args...)
}

// IsType returns true if err is a *Error of type t
func IsType(err error, t Type) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// TypeOf returns the type of err, or TypeInternal for foreign errors
func TypeOf(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return TypeInternal
}

// HTTPStatus maps an error to the status code the REST API reports
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeAuthentication:
		return http.StatusUnauthorized
	case TypeAuthorization:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromStorage categorizes an error returned by the database driver.
//
// sql.ErrNoRows becomes TypeNotFound, constraint violations reported by Postgres
// (unique 23505, not null 23502, foreign key 23503) become a storage error with the
// message "constraint violation", everything else a plain storage error.
func FromStorage(err error, what string) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Wrapf(err, TypeNotFound, "no such %s", what)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23502", "23503":
			return Wrapf(err, TypeStorage, "constraint violation on %s", what)
		}
	}
	return Wrapf(err, TypeStorage, "cannot access %s", what)
}
