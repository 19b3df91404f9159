package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	CodeConversationNotFound ErrorCode = "CONVERSATION_NOT_FOUND"
	CodeValidation           ErrorCode = "VALIDATION_ERROR"
	CodeStore                ErrorCode = "STORE_ERROR"
)

// AppError is the protocol-level error taxonomy. Message is safe to emit to
// the originating connection; Cause is for logs only.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func Unauthorized(msg string) error {
	return &AppError{Code: CodeUnauthorized, Message: msg}
}

func ConversationNotFound() error {
	return &AppError{Code: CodeConversationNotFound, Message: "conversation not found"}
}

func Validation(msg string) error {
	return &AppError{Code: CodeValidation, Message: msg}
}

func Store(cause error) error {
	return &AppError{Code: CodeStore, Message: "storage unavailable", Cause: cause}
}

// ProtocolMessage is what goes into an error event: the taxonomy message for
// known failures, a generic one otherwise.
func ProtocolMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// Repository sentinels
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationExists   = errors.New("conversation already exists for pair")
	ErrInvalidCredentials   = errors.New("invalid email or password")
)
