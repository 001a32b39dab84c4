package payer

import (
	"errors"
	"fmt"
)

// ErrorCode classifies payer integration failures. The UI layer branches on
// these to show distinct messaging ("verify member ID" vs "payer
// unavailable, try later").
type ErrorCode string

const (
	ErrCodeAuthFailed         ErrorCode = "AUTH_FAILED"
	ErrCodeAPIError           ErrorCode = "API_ERROR"
	ErrCodeMemberNotFound     ErrorCode = "MEMBER_NOT_FOUND"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeNotImplemented     ErrorCode = "NOT_IMPLEMENTED"
	ErrCodeUnknown            ErrorCode = "UNKNOWN_ERROR"
)

// Error is the typed error adapters raise internally. Public capability
// methods convert it into the envelope; it never crosses the package
// boundary as a bare error.
type Error struct {
	Code      ErrorCode
	PayerCode string
	Message   string
	Details   string
}

func (e *Error) Error() string {
	if e.PayerCode != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.PayerCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAuthFailed reports rejected or malformed credentials.
func NewAuthFailed(payerCode, message string) *Error {
	return &Error{Code: ErrCodeAuthFailed, PayerCode: payerCode, Message: message}
}

// NewAPIError reports a non-2xx payer response other than not-found.
func NewAPIError(payerCode string, status int, body string) *Error {
	return &Error{
		Code:      ErrCodeAPIError,
		PayerCode: payerCode,
		Message:   fmt.Sprintf("payer API error (status %d)", status),
		Details:   body,
	}
}

// NewMemberNotFound reports that the payer has no record for the member.
func NewMemberNotFound(payerCode, memberID string) *Error {
	return &Error{
		Code:      ErrCodeMemberNotFound,
		PayerCode: payerCode,
		Message:   fmt.Sprintf("no member record for identifier %q", memberID),
	}
}

// NewServiceUnavailable reports exhausted retries against 5xx or transport
// failures. lastErr is the failure observed on the final attempt.
func NewServiceUnavailable(payerCode string, lastErr error) *Error {
	msg := "payer unreachable"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return &Error{Code: ErrCodeServiceUnavailable, PayerCode: payerCode, Message: msg}
}

// NewNotImplemented reports a capability this payer does not support.
func NewNotImplemented(payerCode string, capability Capability) *Error {
	return &Error{
		Code:      ErrCodeNotImplemented,
		PayerCode: payerCode,
		Message:   fmt.Sprintf("capability %q is not supported by this payer", capability),
	}
}

// CodeOf extracts the taxonomy code from any error, defaulting to
// UNKNOWN_ERROR for untyped failures.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrCodeUnknown
}

// DetailsOf extracts typed error details when present.
func DetailsOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Details
	}
	return ""
}
