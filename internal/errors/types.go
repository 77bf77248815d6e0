package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// FailureClass buckets provider failures for circuit and failover decisions.
type FailureClass int

const (
	// ClassOther - anything we cannot classify; treated as non-retryable
	ClassOther FailureClass = iota
	// ClassRateLimit - 429 / rate limited; transient
	ClassRateLimit
	// ClassAuth - 401/403 / bad credentials; fatal for this provider
	ClassAuth
	// ClassOverload - 5xx / provider overloaded; transient
	ClassOverload
	// ClassNetwork - connection-level failure; transient
	ClassNetwork
)

func (c FailureClass) String() string {
	switch c {
	case ClassRateLimit:
		return "rate_limit"
	case ClassAuth:
		return "auth"
	case ClassOverload:
		return "overload"
	case ClassNetwork:
		return "network"
	default:
		return "other"
	}
}

// TransientError represents a provider failure that may heal on its own.
type TransientError struct {
	Err        error
	StatusCode int
	Class      FailureClass
	Message    string
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError represents a provider failure that will not heal without
// operator intervention (bad credentials, malformed request).
type PermanentError struct {
	Err        error
	StatusCode int
	Class      FailureClass
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// NewRateLimitError wraps a 429-class failure.
func NewRateLimitError(err error, message string) *TransientError {
	return &TransientError{Err: err, Class: ClassRateLimit, StatusCode: 429, Message: message}
}

// NewOverloadError wraps a 5xx-class failure.
func NewOverloadError(err error, statusCode int, message string) *TransientError {
	return &TransientError{Err: err, Class: ClassOverload, StatusCode: statusCode, Message: message}
}

// NewAuthError wraps a credentials failure.
func NewAuthError(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Class: ClassAuth, StatusCode: 401, Message: message}
}

// NewPermanentError wraps a non-retryable failure without a specific class.
func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Class: ClassOther, Message: message}
}

// NewTransientError wraps a retryable failure without a specific class.
func NewTransientError(err error, message string) *TransientError {
	return &TransientError{Err: err, Class: ClassNetwork, Message: message}
}

// Classify determines the failure class of an error. Explicitly wrapped errors
// win; otherwise the error string is sniffed for provider-shaped failures the
// same way upstream SDK errors tend to surface them.
func Classify(err error) FailureClass {
	if err == nil {
		return ClassOther
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return transientErr.Class
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return permanentErr.Class
	}

	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "429"), strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "too many requests"):
		return ClassRateLimit
	case strings.Contains(lower, "401"), strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "invalid api key"), strings.Contains(lower, "authentication"),
		strings.Contains(lower, "403"), strings.Contains(lower, "forbidden"):
		return ClassAuth
	case strings.Contains(lower, "500"), strings.Contains(lower, "502"),
		strings.Contains(lower, "503"), strings.Contains(lower, "504"),
		strings.Contains(lower, "overloaded"), strings.Contains(lower, "service unavailable"),
		strings.Contains(lower, "internal server error"), strings.Contains(lower, "bad gateway"):
		return ClassOverload
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassNetwork
	}
	for _, pattern := range []string{"connection refused", "connection reset", "broken pipe", "timeout", "deadline exceeded", "dns"} {
		if strings.Contains(lower, pattern) {
			return ClassNetwork
		}
	}

	return ClassOther
}

// IsRateLimit reports whether the error is a rate-limit failure.
func IsRateLimit(err error) bool { return Classify(err) == ClassRateLimit }

// IsAuth reports whether the error is an authentication-class failure.
func IsAuth(err error) bool { return Classify(err) == ClassAuth }

// IsOverload reports whether the error is a provider-overload failure.
func IsOverload(err error) bool { return Classify(err) == ClassOverload }

// IsFailoverRetryable reports whether a failure should be retried once against
// the alternate provider binding. Rate limits and overloads are transient;
// authentication failures are retried too because the alternate binding
// carries its own credential. Everything else (malformed-request class and
// unclassifiable errors) propagates immediately.
func IsFailoverRetryable(err error) bool {
	switch Classify(err) {
	case ClassRateLimit, ClassAuth, ClassOverload:
		return true
	default:
		return false
	}
}
