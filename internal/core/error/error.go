package errx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
)

// Code classifies an AppError independently of its transport status.
type Code string

const (
	CodeValidation Code = "validation"
	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	CodePermission Code = "permission"
	CodeTimeout    Code = "timeout"
	CodeUpstream   Code = "upstream"
	CodeInternal   Code = "internal"
)

// AppError wraps an underlying error with a status, a code and a safe message.
type AppError struct {
	Err     error
	Status  int
	Code    Code
	Message string
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches the underlying error.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// New creates a new AppError; the code is derived from the status.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
	}
}

func Validation(err error, message string) *AppError {
	return New(err, http.StatusBadRequest, message)
}

func NotFound(err error, message string) *AppError {
	return New(err, http.StatusNotFound, message)
}

func Conflict(err error, message string) *AppError {
	return New(err, http.StatusConflict, message)
}

func Permission(err error, message string) *AppError {
	return New(err, http.StatusForbidden, message)
}

func Timeout(err error, message string) *AppError {
	return New(err, http.StatusGatewayTimeout, message)
}

func Internal(err error) *AppError {
	return New(err, http.StatusInternalServerError, SystemErrorMessage)
}

// WrapRedis maps Redis errors onto AppError; redis.Nil becomes not found.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	}
	return New(err, http.StatusBadGateway, RedisErrorMessage)
}

// CodeOf returns the code of the first AppError in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

func codeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusForbidden, http.StatusUnauthorized:
		return CodePermission
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return CodeTimeout
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return CodeUpstream
	default:
		return CodeInternal
	}
}
