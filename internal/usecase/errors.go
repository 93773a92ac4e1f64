package usecase

import "errors"

const (
	CodeValidation = "VALIDATION_ERROR"
	// Rate-limited and spam submissions are answered like accepted ones, so
	// these two codes never reach a response; they only tag the rejection
	// log line.
	CodeRateLimited  = "RATE_LIMITED"
	CodeSpamRejected = "SPAM_REJECTED"

	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodePaymentRequired = "PAYMENT_REQUIRED"
	CodeInternal        = "INTERNAL_ERROR"
)

// DomainError is safe to show to the caller as-is.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// TechnicalError wraps an infrastructure failure. Only Code and a generic
// message reach the caller; Err is for logs.
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

// ErrorCode returns the stable code for err, INTERNAL_ERROR when unknown.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	var te *TechnicalError
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeInternal
}

func validationError(msg string) error {
	return &DomainError{Code: CodeValidation, Message: msg}
}

func notFound(msg string) error {
	return &DomainError{Code: CodeNotFound, Message: msg}
}

func conflict(msg string) error {
	return &DomainError{Code: CodeConflict, Message: msg}
}

func paymentRequired(msg string) error {
	return &DomainError{Code: CodePaymentRequired, Message: msg}
}

func internal(msg string, err error) error {
	return &TechnicalError{Code: CodeInternal, Message: msg, Err: err}
}
