package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrChatUnavailable = errors.New("chat unavailable: missing or invalid API key")
)

// AppError carries a stable code next to the wrapped cause.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

const (
	ErrCodeStorage     = "STORAGE_FAILED"
	ErrCodeCredentials = "CREDENTIALS_MISSING"
	ErrCodeUpstream    = "UPSTREAM_FAILED"
	ErrCodeCredit      = "CREDIT_EXHAUSTED"
	ErrCodeInvalid     = "INVALID_INPUT"
)

type ErrorKind int

const (
	ErrorKindGeneric ErrorKind = iota
	ErrorKindCredit
)

func (k ErrorKind) String() string {
	if k == ErrorKindCredit {
		return "credit"
	}
	return "generic"
}

// creditKeywords maps upstream error text to ErrorKindCredit. It is a
// best-effort match on the message, not a structured code.
var creditKeywords = []string{"quota", "billing", "credit", "rate limit"}

// Classify sorts an upstream failure into the credit-exhausted kind or the
// generic one.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindGeneric
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range creditKeywords {
		if strings.Contains(msg, kw) {
			return ErrorKindCredit
		}
	}
	return ErrorKindGeneric
}
