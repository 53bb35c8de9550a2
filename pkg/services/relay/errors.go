package relay

import (
	"fmt"
	"net/http"
)

// Error is a relay error. Message is one of the fixed categories returned to
// clients, Data holds details that are only logged.
type Error struct {
	HTTPCode int
	Message  string
	Data     string
}

// Error categories.
const (
	MsgMalformedRequest  = "malformed request"
	MsgRequestTooLarge   = "request too large"
	MsgMethodNotAllowed  = "method not allowed"
	MsgMissingFields     = "missing fields"
	MsgInvalidAddress    = "invalid address"
	MsgInvalidValue      = "invalid value"
	MsgDeadlinePassed    = "deadline passed"
	MsgInvalidSignature  = "invalid signature"
	MsgInvalidNonce      = "invalid nonce"
	MsgChainUnavailable  = "chain unavailable"
	MsgInsufficientFunds = "insufficient relayer funds"
	MsgPredictedRevert   = "predicted revert"
	MsgExecutionReverted = "execution reverted"
	MsgNotIncluded       = "transaction not included"
	MsgInternalError     = "internal error"
)

// NewError creates an Error.
func NewError(httpCode int, message string, data string) *Error {
	return &Error{
		HTTPCode: httpCode,
		Message:  message,
		Data:     data,
	}
}

// NewBadRequestError creates a 400 error of the given category.
func NewBadRequestError(message string, data string) *Error {
	return NewError(http.StatusBadRequest, message, data)
}

// NewInternalServerError creates a 500 error.
func NewInternalServerError(data string) *Error {
	return NewError(http.StatusInternalServerError, MsgInternalError, data)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Data == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Data)
}

// Is allows to match errors of the same category with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == e.Message
}

// Errors to match against with errors.Is.
var (
	ErrMissingFields     = NewBadRequestError(MsgMissingFields, "")
	ErrInvalidAddress    = NewBadRequestError(MsgInvalidAddress, "")
	ErrDeadlinePassed    = NewBadRequestError(MsgDeadlinePassed, "")
	ErrInvalidSignature  = NewBadRequestError(MsgInvalidSignature, "")
	ErrInvalidNonce      = NewError(http.StatusConflict, MsgInvalidNonce, "")
	ErrInsufficientFunds = NewError(http.StatusServiceUnavailable, MsgInsufficientFunds, "")
	ErrPredictedRevert   = NewError(http.StatusUnprocessableEntity, MsgPredictedRevert, "")
	ErrExecutionReverted = NewError(http.StatusUnprocessableEntity, MsgExecutionReverted, "")
)
