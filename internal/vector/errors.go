package vector

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type OperationErrorCode string

const (
	OperationErrorValidation      OperationErrorCode = "validation_failed"
	OperationErrorEncodeFailed    OperationErrorCode = "encode_failed"
	OperationErrorDecodeFailed    OperationErrorCode = "decode_failed"
	OperationErrorTransportFailed OperationErrorCode = "transport_failed"
	OperationErrorTimeout         OperationErrorCode = "timeout"
	OperationErrorQueryFailed     OperationErrorCode = "query_failed"
)

type OperationError struct {
	Backend    string
	Code       OperationErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed (op=%s code=%s status=%d): %s", e.Backend, e.Operation, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s operation failed (op=%s code=%s status=%d): %v", e.Backend, e.Operation, e.Code, e.StatusCode, e.Cause)
}

func (e *OperationError) Unwrap() error { return e.Cause }

func opErr(backend, op string, code OperationErrorCode, msg string, cause error) error {
	return &OperationError{Backend: backend, Code: code, Operation: op, Message: msg, Cause: cause}
}

func classifyHTTPCallError(backend, op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(backend, op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(backend, op, OperationErrorTimeout, message, err)
	}
	return opErr(backend, op, OperationErrorTransportFailed, message, err)
}

type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid vector store config %s: %s", e.Field, e.Message)
}
