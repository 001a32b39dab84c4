// Package medicarefhir integrates the government FHIR payer (Medicare
// Blue Button style): OAuth2 client-credentials auth, Patient/Coverage
// eligibility lookups, and ExplanationOfBenefit claims history.
package medicarefhir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clearwell-health/therabill/internal/payer"
	"github.com/clearwell-health/therabill/pkg/logging"
)

const (
	payerCode = "medicare"
	tokenPath = "/o/token/"
)

// Config holds configuration for the Medicare FHIR client.
type Config struct {
	BaseURL        string // production base URL
	SandboxBaseURL string // sandbox base URL, used when Sandbox is true
	Sandbox        bool
	Timeout        time.Duration
	Logger         *logging.Logger

	// Retry pacing override, used by tests.
	Backoff time.Duration
}

// Client implements payer.Adapter for the Medicare FHIR API.
type Client struct {
	payer.Unimplemented

	baseURL string
	http    *payer.RetryClient
	tokens  *payer.TokenCache
	probe   *http.Client
	logger  *logging.Logger
}

// New creates a Medicare FHIR adapter.
func New(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if cfg.Sandbox && cfg.SandboxBaseURL != "" {
		baseURL = cfg.SandboxBaseURL
	}
	if baseURL == "" {
		return nil, fmt.Errorf("medicarefhir: base URL is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Component("payer.medicare")

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	opts := []payer.RetryClientOption{payer.WithAttemptTimeout(timeout)}
	if cfg.Backoff > 0 {
		opts = append(opts, payer.WithBackoff(cfg.Backoff))
	}

	return &Client{
		Unimplemented: payer.Unimplemented{PayerCode: payerCode},
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		http:          payer.NewRetryClient(payerCode, logger, opts...),
		tokens:        payer.NewTokenCache(),
		probe:         &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
	}, nil
}

// Name returns the payer code this adapter serves.
func (c *Client) Name() string { return payerCode }

// SupportsCapability reports eligibility and claims history. Benefits and
// prior auth are not exposed through the Medicare FHIR surface.
func (c *Client) SupportsCapability(cap payer.Capability) bool {
	switch cap {
	case payer.CapabilityEligibility, payer.CapabilityClaimsHistory:
		return true
	}
	return false
}

// Authenticate exchanges OAuth2 client credentials for a bearer token at
// POST {base}/o/token/.
func (c *Client) Authenticate(ctx context.Context, cred payer.Credential) (payer.AuthResult, error) {
	if cred.Type != payer.CredentialOAuthClient {
		return payer.AuthResult{}, fmt.Errorf("medicarefhir: expected oauth_client_credentials, got %q", cred.Type)
	}
	if cred.ClientID == "" || cred.ClientSecret == "" {
		return payer.AuthResult{}, fmt.Errorf("medicarefhir: client id and secret are required")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", cred.ClientID)
	form.Set("client_secret", cred.ClientSecret)

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(ctx, payer.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + tokenPath,
		Header: header,
		Body:   []byte(form.Encode()),
	})
	if err != nil {
		return payer.AuthResult{}, err
	}
	if res.StatusCode != http.StatusOK {
		return payer.AuthResult{}, fmt.Errorf("token endpoint rejected credentials (status %d): %s", res.StatusCode, string(res.Body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(res.Body, &tokenResp); err != nil {
		return payer.AuthResult{}, fmt.Errorf("decode token response: %w", err)
	}

	result := payer.AuthResult{Token: tokenResp.AccessToken}
	if tokenResp.ExpiresIn > 0 {
		result.ExpiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}
	return result, nil
}

// HealthCheck probes the FHIR metadata endpoint.
func (c *Client) HealthCheck(ctx context.Context) payer.HealthStatus {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fhir/metadata", nil)
	if err != nil {
		return payer.HealthStatus{Status: payer.HealthDown, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := c.probe.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return payer.HealthStatus{Status: payer.HealthDown, LatencyMs: latency, Message: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return payer.HealthStatus{Status: payer.HealthHealthy, LatencyMs: latency}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return payer.HealthStatus{Status: payer.HealthDegraded, LatencyMs: latency, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	default:
		return payer.HealthStatus{Status: payer.HealthDown, LatencyMs: latency, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}
}

// CheckEligibility finds the patient by member identifier, fetches the
// associated Coverage resource, and maps it to the normalized shape.
func (c *Client) CheckEligibility(ctx context.Context, rc payer.RequestContext) payer.Response[payer.NormalizedEligibility] {
	start := time.Now()
	requestID := uuid.NewString()

	return payer.Guard(start, requestID, func() (*payer.NormalizedEligibility, []byte, error) {
		token, err := c.tokens.Ensure(ctx, payerCode, func(ctx context.Context) (payer.AuthResult, error) {
			return c.Authenticate(ctx, rc.Credential)
		})
		if err != nil {
			return nil, nil, err
		}

		patient, err := c.findPatient(ctx, token, rc.MemberID)
		if err != nil {
			return nil, nil, err
		}

		raw, coverages, err := c.fetchCoverage(ctx, token, patient.ID)
		if err != nil {
			return nil, nil, err
		}
		if len(coverages) == 0 {
			norm := payer.NormalizedEligibility{
				MemberID:  rc.MemberID,
				PayerCode: payerCode,
				Status:    payer.CoverageUnknown,
			}
			return &norm, raw, nil
		}

		norm := normalizeEligibility(rc.MemberID, coverages[0], time.Now())
		return &norm, raw, nil
	})
}

// GetClaimsHistory maps the patient's ExplanationOfBenefit bundle into
// normalized claim records.
func (c *Client) GetClaimsHistory(ctx context.Context, rc payer.RequestContext) payer.Response[payer.NormalizedClaimsHistory] {
	start := time.Now()
	requestID := uuid.NewString()

	return payer.Guard(start, requestID, func() (*payer.NormalizedClaimsHistory, []byte, error) {
		token, err := c.tokens.Ensure(ctx, payerCode, func(ctx context.Context) (payer.AuthResult, error) {
			return c.Authenticate(ctx, rc.Credential)
		})
		if err != nil {
			return nil, nil, err
		}

		patient, err := c.findPatient(ctx, token, rc.MemberID)
		if err != nil {
			return nil, nil, err
		}

		params := url.Values{}
		params.Set("patient", patient.ID)
		if !rc.ServiceStart.IsZero() {
			params.Add("service-date", "ge"+rc.ServiceStart.Format("2006-01-02"))
		}
		if !rc.ServiceEnd.IsZero() {
			params.Add("service-date", "le"+rc.ServiceEnd.Format("2006-01-02"))
		}

		raw, bundle, err := c.fhirSearch(ctx, token, "/fhir/ExplanationOfBenefit", params)
		if err != nil {
			return nil, nil, err
		}

		history := normalizeClaims(decodeEntries[ExplanationOfBenefit](bundle, "ExplanationOfBenefit"))
		return &history, raw, nil
	})
}

// findPatient resolves the member identifier to a FHIR Patient. An empty
// result bundle means the payer has no record for the member.
func (c *Client) findPatient(ctx context.Context, token, memberID string) (Patient, error) {
	params := url.Values{}
	params.Set("identifier", memberID)

	_, bundle, err := c.fhirSearch(ctx, token, "/fhir/Patient", params)
	if err != nil {
		return Patient{}, err
	}

	patients := decodeEntries[Patient](bundle, "Patient")
	if len(patients) == 0 {
		return Patient{}, payer.NewMemberNotFound(payerCode, memberID)
	}
	return patients[0], nil
}

func (c *Client) fetchCoverage(ctx context.Context, token, patientID string) ([]byte, []Coverage, error) {
	params := url.Values{}
	params.Set("beneficiary", "Patient/"+patientID)

	raw, bundle, err := c.fhirSearch(ctx, token, "/fhir/Coverage", params)
	if err != nil {
		return nil, nil, err
	}
	return raw, decodeEntries[Coverage](bundle, "Coverage"), nil
}

// fhirSearch runs an authorized FHIR search and decodes the bundle.
func (c *Client) fhirSearch(ctx context.Context, token, path string, params url.Values) ([]byte, Bundle, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("Accept", "application/fhir+json")

	res, err := c.http.Do(ctx, payer.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + path + "?" + params.Encode(),
		Header: header,
	})
	if err != nil {
		return nil, Bundle{}, err
	}
	if res.StatusCode == http.StatusNotFound {
		return nil, Bundle{}, payer.NewMemberNotFound(payerCode, params.Get("identifier"))
	}
	if res.StatusCode != http.StatusOK {
		return nil, Bundle{}, payer.NewAPIError(payerCode, res.StatusCode, string(res.Body))
	}

	var bundle Bundle
	if err := json.Unmarshal(res.Body, &bundle); err != nil {
		return nil, Bundle{}, fmt.Errorf("decode FHIR bundle: %w", err)
	}
	return res.Body, bundle, nil
}
