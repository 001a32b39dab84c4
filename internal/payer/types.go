// Package payer defines the capability contract every insurance payer
// integration implements, the normalized output schema all adapters map
// into, and the shared plumbing (token cache, retrying HTTP client,
// response envelopes) concrete adapters compose.
package payer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Capability identifies one payer operation the platform can invoke.
type Capability string

const (
	CapabilityEligibility   Capability = "eligibility"
	CapabilityBenefits      Capability = "benefits"
	CapabilityClaimsHistory Capability = "claims_history"
	CapabilityPriorAuth     Capability = "prior_auth"
)

// CredentialType tags the shape of a decrypted payer credential.
type CredentialType string

const (
	CredentialOAuthClient CredentialType = "oauth_client_credentials"
	CredentialAPIKey      CredentialType = "api_key"
)

// Credential is the decrypted credential union handed to adapters by the
// credential manager. It lives only for the duration of a request and is
// never persisted in cleartext.
type Credential struct {
	Type         CredentialType `json:"type"`
	ClientID     string         `json:"client_id,omitempty"`
	ClientSecret string         `json:"client_secret,omitempty"`
	APIKey       string         `json:"api_key,omitempty"`
}

// RequestContext carries everything an adapter needs for one capability
// call. It is constructed by the orchestrator and read-only to adapters.
type RequestContext struct {
	OrgID       string
	PayerCode   string
	MemberID    string
	FirstName   string
	LastName    string
	DateOfBirth string // YYYY-MM-DD
	ProviderNPI string
	ProviderOrg string
	TaxID       string

	// Claims history window. Zero values mean "payer default".
	ServiceStart time.Time
	ServiceEnd   time.Time

	Credential Credential
}

// CoverageStatus is the normalized coverage state across all payers.
type CoverageStatus string

const (
	CoverageActive   CoverageStatus = "active"
	CoverageInactive CoverageStatus = "inactive"
	CoverageUnknown  CoverageStatus = "unknown"
)

// NormalizedEligibility is the canonical eligibility result. Every adapter
// populates the same field set so callers never branch on payer identity.
type NormalizedEligibility struct {
	MemberID        string         `json:"member_id"`
	PayerCode       string         `json:"payer_code"`
	IsEligible      bool           `json:"is_eligible"`
	Status          CoverageStatus `json:"status"`
	PlanName        string         `json:"plan_name,omitempty"`
	CoverageType    string         `json:"coverage_type,omitempty"`
	EffectiveDate   string         `json:"effective_date,omitempty"`   // YYYY-MM-DD
	TerminationDate string         `json:"termination_date,omitempty"` // YYYY-MM-DD, empty when open-ended
}

// NormalizedBenefits is the canonical benefits summary.
type NormalizedBenefits struct {
	Copay              float64 `json:"copay"`
	CoinsurancePercent float64 `json:"coinsurance_percent"`
	Deductible         float64 `json:"deductible"`
	OutOfPocketMax     float64 `json:"out_of_pocket_max"`
	VisitLimit         int     `json:"visit_limit"`
	VisitsRemaining    int     `json:"visits_remaining"`
	PriorAuthRequired  bool    `json:"prior_auth_required"`
}

// ClaimRecord is one normalized historical claim.
type ClaimRecord struct {
	ClaimID               string  `json:"claim_id"`
	ServiceDate           string  `json:"service_date,omitempty"` // YYYY-MM-DD
	Status                string  `json:"status,omitempty"`
	BilledAmount          float64 `json:"billed_amount"`
	AllowedAmount         float64 `json:"allowed_amount"`
	PaidAmount            float64 `json:"paid_amount"`
	PatientResponsibility float64 `json:"patient_responsibility"`
}

// NormalizedClaimsHistory is the canonical claims history result.
type NormalizedClaimsHistory struct {
	Claims      []ClaimRecord `json:"claims"`
	TotalBilled float64       `json:"total_billed"`
	TotalPaid   float64       `json:"total_paid"`
}

// NormalizedPriorAuth is the canonical prior authorization result.
type NormalizedPriorAuth struct {
	Required   bool   `json:"required"`
	AuthNumber string `json:"auth_number,omitempty"`
	Status     string `json:"status,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty"` // YYYY-MM-DD
}

// Response is the uniform envelope every capability call returns. Exactly
// one of Data/Error is populated; RequestID is always set so even
// unexpected failure paths stay traceable. RawResponse is retained only on
// success, for audit and debugging.
type Response[T any] struct {
	Success        bool            `json:"success"`
	Data           *T              `json:"data,omitempty"`
	Error          *ErrorDetail    `json:"error,omitempty"`
	RawResponse    json.RawMessage `json:"raw_response,omitempty"`
	ResponseTimeMs int64           `json:"response_time_ms"`
	RequestID      string          `json:"request_id"`
}

// ErrorDetail is the error half of the response envelope.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// SuccessResponse builds a success envelope, generating a request id when
// the caller did not supply one.
func SuccessResponse[T any](data T, raw json.RawMessage, elapsed time.Duration, requestID string) Response[T] {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return Response[T]{
		Success:        true,
		Data:           &data,
		RawResponse:    raw,
		ResponseTimeMs: elapsed.Milliseconds(),
		RequestID:      requestID,
	}
}

// ErrorResponse builds a failure envelope, generating a request id when the
// caller did not supply one.
func ErrorResponse[T any](code ErrorCode, message, details string, elapsed time.Duration, requestID string) Response[T] {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return Response[T]{
		Success:        false,
		Error:          &ErrorDetail{Code: code, Message: message, Details: details},
		ResponseTimeMs: elapsed.Milliseconds(),
		RequestID:      requestID,
	}
}
