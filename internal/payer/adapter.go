package payer

import (
	"context"
	"fmt"
	"time"
)

// AuthResult is the outcome of a successful credential exchange.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time // zero means the payer omitted expiry
}

// HealthState describes payer reachability.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded" // reachable but rejecting (4xx)
	HealthDown     HealthState = "down"     // 5xx, timeout, or network failure
)

// HealthStatus is the result of a connectivity probe.
type HealthStatus struct {
	Status    HealthState `json:"status"`
	LatencyMs int64       `json:"latency_ms"`
	Message   string      `json:"message,omitempty"`
}

// Adapter is the interface every payer integration implements. Capability
// methods never return a bare error across this boundary: all failures
// funnel into the response envelope.
type Adapter interface {
	// Name returns the payer code this adapter serves (e.g. "medicare").
	Name() string

	// Authenticate exchanges decrypted credentials for a session token
	// using the payer's auth flow. Failures are returned as errors here;
	// this is an internal building block, always wrapped by a capability
	// method that converts to the envelope.
	Authenticate(ctx context.Context, cred Credential) (AuthResult, error)

	// HealthCheck probes payer connectivity without touching member data.
	HealthCheck(ctx context.Context) HealthStatus

	// SupportsCapability reports which capabilities this payer actually
	// implements, so the caller can pre-filter without a network call.
	SupportsCapability(c Capability) bool

	CheckEligibility(ctx context.Context, rc RequestContext) Response[NormalizedEligibility]
	GetBenefits(ctx context.Context, rc RequestContext) Response[NormalizedBenefits]
	GetClaimsHistory(ctx context.Context, rc RequestContext) Response[NormalizedClaimsHistory]
	CheckPriorAuth(ctx context.Context, rc RequestContext) Response[NormalizedPriorAuth]
}

// Unimplemented provides NOT_IMPLEMENTED defaults for all four capability
// methods. Concrete adapters embed it and override what they support.
type Unimplemented struct {
	PayerCode string
}

func (u Unimplemented) SupportsCapability(Capability) bool { return false }

func (u Unimplemented) CheckEligibility(context.Context, RequestContext) Response[NormalizedEligibility] {
	return notImplemented[NormalizedEligibility](u.PayerCode, CapabilityEligibility)
}

func (u Unimplemented) GetBenefits(context.Context, RequestContext) Response[NormalizedBenefits] {
	return notImplemented[NormalizedBenefits](u.PayerCode, CapabilityBenefits)
}

func (u Unimplemented) GetClaimsHistory(context.Context, RequestContext) Response[NormalizedClaimsHistory] {
	return notImplemented[NormalizedClaimsHistory](u.PayerCode, CapabilityClaimsHistory)
}

func (u Unimplemented) CheckPriorAuth(context.Context, RequestContext) Response[NormalizedPriorAuth] {
	return notImplemented[NormalizedPriorAuth](u.PayerCode, CapabilityPriorAuth)
}

func notImplemented[T any](payerCode string, c Capability) Response[T] {
	err := NewNotImplemented(payerCode, c)
	return ErrorResponse[T](err.Code, err.Message, "", 0, "")
}

// Guard runs the body of a capability method and converts any failure,
// including panics, into the error envelope. Response time is measured
// wall-clock from start, so SLA tracking includes authentication overhead.
func Guard[T any](start time.Time, requestID string, fn func() (*T, []byte, error)) (resp Response[T]) {
	defer func() {
		if r := recover(); r != nil {
			resp = ErrorResponse[T](ErrCodeUnknown, fmt.Sprintf("unexpected failure: %v", r), "", time.Since(start), requestID)
		}
	}()

	data, raw, err := fn()
	if err != nil {
		return ErrorResponse[T](CodeOf(err), err.Error(), DetailsOf(err), time.Since(start), requestID)
	}
	return SuccessResponse(*data, raw, time.Since(start), requestID)
}
