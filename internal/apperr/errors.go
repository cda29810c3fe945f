// Package apperr holds the error taxonomy shared by every service and the
// HTTP layer. Services return *Error for anything the caller can act on;
// everything else is treated as internal.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidRequest    Code = "invalid_request"
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeNotFound          Code = "not_found"
	CodeInvalidOrderState Code = "invalid_order_state"
	CodeInsufficientStock Code = "insufficient_stock"
	CodeInvalidCursor     Code = "invalid_cursor"
	CodeConflict          Code = "conflict"
	CodeInternal          Code = "internal"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap keeps err as the cause while exposing msg to the caller.
func Wrap(code Code, err error, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func InvalidRequest(format string, args ...any) *Error {
	return New(CodeInvalidRequest, format, args...)
}

func Unauthorized() *Error {
	return New(CodeUnauthorized, "authentication required")
}

func Forbidden(format string, args ...any) *Error {
	return New(CodeForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

func InvalidOrderState(current string) *Error {
	return New(CodeInvalidOrderState, "order is already %s", current)
}

func InsufficientStock(format string, args ...any) *Error {
	return New(CodeInsufficientStock, format, args...)
}

func InvalidCursor(err error) *Error {
	return Wrap(CodeInvalidCursor, err, "invalid cursor")
}

func Conflict(format string, args ...any) *Error {
	return New(CodeConflict, format, args...)
}

// CodeOf reports the taxonomy code carried by err, CodeInternal when none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Message returns the user-visible message; internal errors never leak detail.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != CodeInternal {
		return e.Message
	}
	return "internal error"
}

var statusByCode = map[Code]int{
	CodeInvalidRequest:    http.StatusBadRequest,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeForbidden:         http.StatusForbidden,
	CodeNotFound:          http.StatusNotFound,
	CodeInvalidOrderState: http.StatusConflict,
	CodeInsufficientStock: http.StatusConflict,
	CodeInvalidCursor:     http.StatusBadRequest,
	CodeConflict:          http.StatusConflict,
}

func HTTPStatus(code Code) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
