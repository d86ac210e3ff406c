package cbjwt

import "fmt"

// ErrorCode represents token minting error categories.
type ErrorCode string

const (
	ErrCodeConfiguration ErrorCode = "configuration_error"
	ErrCodeKeyParse      ErrorCode = "key_parse_error"
	ErrCodeSigning       ErrorCode = "signing_error"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeConfiguration: "Configuration error",
	ErrCodeKeyParse:      "Invalid private key",
	ErrCodeSigning:       "Signing failed",
}

// Error wraps minting errors with a stable code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}
