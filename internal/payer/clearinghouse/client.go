// Package clearinghouse integrates commercial payers through a
// clearinghouse EDI gateway: one API-key authenticated JSON surface that
// fronts X12 270/271 eligibility transactions for many trading partners.
package clearinghouse

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clearwell-health/therabill/internal/payer"
	"github.com/clearwell-health/therabill/pkg/logging"
)

const payerCode = "clearinghouse"

// Config holds configuration for the clearinghouse client.
type Config struct {
	EligibilityURL string
	HealthURL      string
	Timeout        time.Duration
	Partners       *PartnerTable // nil means DefaultPartnerTable
	Logger         *logging.Logger

	// Retry pacing override, used by tests.
	Backoff time.Duration
}

// Client implements payer.Adapter for the clearinghouse gateway. A single
// instance serves every commercial payer in its partner table; register it
// once per payer code via Registry.RegisterAs.
type Client struct {
	payer.Unimplemented

	eligibilityURL string
	healthURL      string
	partners       *PartnerTable
	http           *payer.RetryClient
	probe          *http.Client
	logger         *logging.Logger
}

// New creates a clearinghouse adapter.
func New(cfg Config) (*Client, error) {
	if cfg.EligibilityURL == "" {
		return nil, fmt.Errorf("clearinghouse: eligibility URL is required")
	}

	partners := cfg.Partners
	if partners == nil {
		partners = DefaultPartnerTable()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Component("payer.clearinghouse")

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	opts := []payer.RetryClientOption{payer.WithAttemptTimeout(timeout)}
	if cfg.Backoff > 0 {
		opts = append(opts, payer.WithBackoff(cfg.Backoff))
	}

	return &Client{
		Unimplemented:  payer.Unimplemented{PayerCode: payerCode},
		eligibilityURL: cfg.EligibilityURL,
		healthURL:      cfg.HealthURL,
		partners:       partners,
		http:           payer.NewRetryClient(payerCode, logger, opts...),
		probe:          &http.Client{Timeout: 10 * time.Second},
		logger:         logger,
	}, nil
}

// Name returns the adapter's own code. Routed payer codes come from the
// partner table; see Payers.
func (c *Client) Name() string { return payerCode }

// Payers returns the commercial payer codes this instance can route.
func (c *Client) Payers() []string { return c.partners.Codes() }

// SupportsCapability reports eligibility and benefits. Claims history and
// prior auth status are not available through the 270/271 surface.
func (c *Client) SupportsCapability(cap payer.Capability) bool {
	switch cap {
	case payer.CapabilityEligibility, payer.CapabilityBenefits:
		return true
	}
	return false
}

// Authenticate validates the API key shape. The clearinghouse has no token
// exchange; the key rides on every request.
func (c *Client) Authenticate(_ context.Context, cred payer.Credential) (payer.AuthResult, error) {
	if cred.Type != payer.CredentialAPIKey {
		return payer.AuthResult{}, fmt.Errorf("clearinghouse: expected api_key credential, got %q", cred.Type)
	}
	if cred.APIKey == "" {
		return payer.AuthResult{}, fmt.Errorf("clearinghouse: api key is required")
	}
	return payer.AuthResult{Token: cred.APIKey}, nil
}

// HealthCheck probes the gateway status endpoint.
func (c *Client) HealthCheck(ctx context.Context) payer.HealthStatus {
	if c.healthURL == "" {
		return payer.HealthStatus{Status: payer.HealthDegraded, Message: "no health endpoint configured"}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return payer.HealthStatus{Status: payer.HealthDown, Message: err.Error()}
	}

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

// CheckEligibility submits a 270 inquiry and maps the 271 response to the
// normalized eligibility shape.
func (c *Client) CheckEligibility(ctx context.Context, rc payer.RequestContext) payer.Response[payer.NormalizedEligibility] {
	start := time.Now()
	requestID := uuid.NewString()

	return payer.Guard(start, requestID, func() (*payer.NormalizedEligibility, []byte, error) {
		raw, resp, err := c.inquire(ctx, rc)
		if err != nil {
			return nil, nil, err
		}
		norm := parseEligibility(rc.MemberID, rc.PayerCode, *resp)
		return &norm, raw, nil
	})
}

// GetBenefits runs the same 270 inquiry and folds the benefit segments into
// the normalized benefits summary.
func (c *Client) GetBenefits(ctx context.Context, rc payer.RequestContext) payer.Response[payer.NormalizedBenefits] {
	start := time.Now()
	requestID := uuid.NewString()

	return payer.Guard(start, requestID, func() (*payer.NormalizedBenefits, []byte, error) {
		raw, resp, err := c.inquire(ctx, rc)
		if err != nil {
			return nil, nil, err
		}
		norm := parseBenefits(*resp)
		return &norm, raw, nil
	})
}

// inquire resolves the trading partner, posts the 270 payload, and decodes
// the 271 response. Partner resolution happens before any network call so a
// misconfigured payer fails fast.
func (c *Client) inquire(ctx context.Context, rc payer.RequestContext) ([]byte, *eligibilityResponse, error) {
	partnerID, err := c.partners.Resolve(rc.PayerCode)
	if err != nil {
		return nil, nil, err
	}

	apiKey, err := c.Authenticate(ctx, rc.Credential)
	if err != nil {
		return nil, nil, payer.NewAuthFailed(rc.PayerCode, err.Error())
	}

	payload := eligibilityRequest{
		ControlNumber:           controlNumber(),
		TradingPartnerServiceID: partnerID,
		Provider: providerInfo{
			OrganizationName: rc.ProviderOrg,
			NPI:              rc.ProviderNPI,
			TaxID:            rc.TaxID,
		},
		Subscriber: subscriberInfo{
			MemberID:    rc.MemberID,
			FirstName:   rc.FirstName,
			LastName:    rc.LastName,
			DateOfBirth: strings.ReplaceAll(rc.DateOfBirth, "-", ""),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("encode eligibility request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Key "+apiKey.Token)

	res, err := c.http.Do(ctx, payer.Request{
		Method: http.MethodPost,
		URL:    c.eligibilityURL,
		Header: header,
		Body:   body,
	})
	if err != nil {
		return nil, nil, err
	}

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, nil, payer.NewAuthFailed(rc.PayerCode, fmt.Sprintf("gateway rejected api key (status %d)", res.StatusCode))
	case http.StatusNotFound:
		return nil, nil, payer.NewMemberNotFound(rc.PayerCode, rc.MemberID)
	default:
		return nil, nil, payer.NewAPIError(rc.PayerCode, res.StatusCode, string(res.Body))
	}

	var resp eligibilityResponse
	if err := json.Unmarshal(res.Body, &resp); err != nil {
		return nil, nil, fmt.Errorf("decode eligibility response: %w", err)
	}

	// The gateway reports member-level rejections in-band with a 200.
	for _, e := range resp.Errors {
		if isMemberNotFound(e) {
			return nil, nil, payer.NewMemberNotFound(rc.PayerCode, rc.MemberID)
		}
	}
	if len(resp.Errors) > 0 {
		return nil, nil, payer.NewAPIError(rc.PayerCode, res.StatusCode, resp.Errors[0].Description)
	}

	return res.Body, &resp, nil
}

// AAA code 75 is "Subscriber/Insured Not Found"; 72 is an invalid member id.
func isMemberNotFound(e responseError) bool {
	return e.Code == "75" || e.Code == "72"
}

// controlNumber generates the 9-digit interchange control number the 270
// transaction requires.
func controlNumber() string {
	return fmt.Sprintf("%09d", rand.Intn(1_000_000_000))
}
