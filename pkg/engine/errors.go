package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass classifies a failure by what a caller may do about it.
type ErrorClass string

const (
	// ErrorClassTransient is a failure that may pass on a later attempt:
	// transport errors, timeouts, 5xx answers.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled is a 429 or 503 answer.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict is a stale revision on a mutation.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent covers everything that repeats unchanged: mapping
	// errors, rejected requests, missing objects, correlation misses.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError is a classified error naming the subject or remote object
// it concerns.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	Class   ErrorClass `json:"class"`
	Message string     `json:"message"`

	// Code identifies the failure for errors.Is and reports.
	Code string `json:"code,omitempty"`

	// Resource is the subject or remote object that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the remote call or engine step that failed.
	Operation string `json:"operation,omitempty"`

	Err     error                  `json:"-"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *EngineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Class, e.Message)

	var ctx []string
	if e.Resource != "" {
		ctx = append(ctx, "resource="+e.Resource)
	}
	if e.Operation != "" {
		ctx = append(ctx, "operation="+e.Operation)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}

	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches another EngineError on class and code, so the sentinels below
// work with errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

func newError(class ErrorClass, message string, err error) *EngineError {
	return &EngineError{Class: class, Message: message, Err: err}
}

// NewTransientError creates a transient error.
func NewTransientError(message string, err error) *EngineError {
	return newError(ErrorClassTransient, message, err)
}

// NewThrottledError creates a throttled error.
func NewThrottledError(message string, err error) *EngineError {
	return newError(ErrorClassThrottled, message, err)
}

// NewConflictError creates a conflict error.
func NewConflictError(message string, err error) *EngineError {
	return newError(ErrorClassConflict, message, err)
}

// NewPermanentError creates a permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return newError(ErrorClassPermanent, message, err)
}

// WithResource names the subject or remote object the error is about.
func (e *EngineError) WithResource(resourceID string) *EngineError {
	e.Resource = resourceID
	return e
}

// WithOperation names the failed step.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode sets the error code.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail attaches one detail value.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func hasClass(err error, class ErrorClass) bool {
	var e *EngineError
	return errors.As(err, &e) && e.Class == class
}

// IsTransient reports whether err is transient.
func IsTransient(err error) bool { return hasClass(err, ErrorClassTransient) }

// IsThrottled reports whether err is throttled.
func IsThrottled(err error) bool { return hasClass(err, ErrorClassThrottled) }

// IsConflict reports whether err is a revision conflict.
func IsConflict(err error) bool { return hasClass(err, ErrorClassConflict) }

// IsPermanent reports whether err is permanent.
func IsPermanent(err error) bool { return hasClass(err, ErrorClassPermanent) }

// IsRetryable reports whether a later attempt of the same call may succeed.
// The engine itself never retries; the class is reported for the caller.
func IsRetryable(err error) bool {
	return IsTransient(err) || IsThrottled(err) || IsConflict(err)
}

// ClassOf returns the class and code of err. Errors outside the taxonomy are
// permanent and carry no code.
func ClassOf(err error) (ErrorClass, string) {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class, e.Code
	}
	return ErrorClassPermanent, ""
}

// Common error codes.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// Provisioning error codes.
const (
	ErrCodeMapping               = "MAPPING_ERROR"
	ErrCodeFieldExclusivity      = "FIELD_EXCLUSIVITY"
	ErrCodeCorrelationMiss       = "CORRELATION_MISS"
	ErrCodeDuplicateCorrelation  = "DUPLICATE_CORRELATION"
	ErrCodeMissingRelationship   = "MISSING_RELATIONSHIP"
	ErrCodeReadinessTimeout      = "READINESS_TIMEOUT"
	ErrCodeTemplateNotConfigured = "TEMPLATE_NOT_CONFIGURED"
	ErrCodePortNotFound          = "PORT_NOT_FOUND"
	ErrCodePolicyDenied          = "POLICY_DENIED"
)

// Sentinels for errors.Is. EngineError.Is matches on class and code only.
var (
	ErrMapping               = &EngineError{Class: ErrorClassPermanent, Code: ErrCodeMapping}
	ErrFieldExclusivity      = &EngineError{Class: ErrorClassPermanent, Code: ErrCodeFieldExclusivity}
	ErrCorrelationMiss       = &EngineError{Class: ErrorClassPermanent, Code: ErrCodeCorrelationMiss}
	ErrDuplicateCorrelation  = &EngineError{Class: ErrorClassPermanent, Code: ErrCodeDuplicateCorrelation}
	ErrMissingRelationship   = &EngineError{Class: ErrorClassPermanent, Code: ErrCodeMissingRelationship}
	ErrTemplateNotConfigured = &EngineError{Class: ErrorClassPermanent, Code: ErrCodeTemplateNotConfigured}
	ErrPortNotFound          = &EngineError{Class: ErrorClassPermanent, Code: ErrCodePortNotFound}
	ErrPolicyDenied          = &EngineError{Class: ErrorClassPermanent, Code: ErrCodePolicyDenied}
	ErrReadinessTimeout      = &EngineError{Class: ErrorClassTransient, Code: ErrCodeReadinessTimeout}
)
