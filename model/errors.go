package model

import "fmt"

type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrSpent             ErrorCode = "SPENT"
	ErrConflict          ErrorCode = "CONFLICT"
	ErrAuthorization     ErrorCode = "AUTHORIZATION"
	ErrUniqueness        ErrorCode = "UNIQUENESS_VIOLATION"
	ErrSchema            ErrorCode = "SCHEMA_VIOLATION"
	ErrNonce             ErrorCode = "NONCE_ERROR"
	ErrValidityRange     ErrorCode = "VALIDITY_RANGE"
	ErrTokenPreservation ErrorCode = "TOKEN_PRESERVATION"
	ErrInternal          ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human message.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}
