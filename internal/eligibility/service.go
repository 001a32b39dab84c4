// Package eligibility orchestrates payer capability calls: it resolves the
// adapter and credentials for a request, short-circuits through the result
// cache, and records every call in the audit trail and metrics.
package eligibility

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clearwell-health/therabill/internal/audit"
	"github.com/clearwell-health/therabill/internal/observability/metrics"
	"github.com/clearwell-health/therabill/internal/payer"
	"github.com/clearwell-health/therabill/pkg/logging"
)

var tracer trace.Tracer = otel.Tracer("therabill.internal.eligibility")

// CredentialSource resolves decrypted payer credentials per org.
type CredentialSource interface {
	Resolve(ctx context.Context, orgID, payerCode string) (payer.Credential, error)
}

// Request identifies one capability call from the API surface.
type Request struct {
	OrgID       string
	PayerCode   string
	MemberID    string
	FirstName   string
	LastName    string
	DateOfBirth string
	ProviderNPI string
	ProviderOrg string
	TaxID       string

	ServiceStart time.Time
	ServiceEnd   time.Time
}

// Service is the payer orchestrator.
type Service struct {
	registry *payer.Registry
	creds    CredentialSource
	cache    *Cache
	audit    *audit.Service
	metrics  *metrics.PayerMetrics
	logger   *logging.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithCache enables the eligibility result cache.
func WithCache(c *Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithAudit enables audit logging of payer calls.
func WithAudit(a *audit.Service) Option {
	return func(s *Service) { s.audit = a }
}

// WithMetrics enables payer call metrics.
func WithMetrics(m *metrics.PayerMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(registry *payer.Registry, creds CredentialSource, logger *logging.Logger, opts ...Option) *Service {
	if registry == nil {
		panic("eligibility: registry cannot be nil")
	}
	if creds == nil {
		panic("eligibility: credential source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		registry: registry,
		creds:    creds,
		logger:   logger.Component("eligibility"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckEligibility verifies coverage, consulting the result cache before
// calling the payer.
func (s *Service) CheckEligibility(ctx context.Context, req Request) payer.Response[payer.NormalizedEligibility] {
	ctx, span := tracer.Start(ctx, "eligibility.check")
	defer span.End()
	span.SetAttributes(
		attribute.String("payer", req.PayerCode),
		attribute.String("org_id", req.OrgID),
	)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, req.OrgID, req.PayerCode, req.MemberID)
		if err != nil {
			// Cache trouble never blocks a verification.
			span.RecordError(err)
			s.logger.Warn("eligibility cache read failed", "payer", req.PayerCode, "error", err)
		}
		if cached != nil {
			s.metrics.ObserveCacheHit()
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return *cached
		}
		s.metrics.ObserveCacheMiss()
	}

	resp := dispatch(ctx, s, payer.CapabilityEligibility, req,
		func(a payer.Adapter, rc payer.RequestContext) payer.Response[payer.NormalizedEligibility] {
			return a.CheckEligibility(ctx, rc)
		})

	if s.cache != nil && resp.Success {
		if err := s.cache.Set(ctx, req.OrgID, req.PayerCode, req.MemberID, resp); err != nil {
			span.RecordError(err)
			s.logger.Warn("eligibility cache write failed", "payer", req.PayerCode, "error", err)
		}
	}
	return resp
}

// GetBenefits fetches the member's benefit summary.
func (s *Service) GetBenefits(ctx context.Context, req Request) payer.Response[payer.NormalizedBenefits] {
	ctx, span := tracer.Start(ctx, "eligibility.benefits")
	defer span.End()
	span.SetAttributes(attribute.String("payer", req.PayerCode))

	return dispatch(ctx, s, payer.CapabilityBenefits, req,
		func(a payer.Adapter, rc payer.RequestContext) payer.Response[payer.NormalizedBenefits] {
			return a.GetBenefits(ctx, rc)
		})
}

// GetClaimsHistory fetches the member's historical claims.
func (s *Service) GetClaimsHistory(ctx context.Context, req Request) payer.Response[payer.NormalizedClaimsHistory] {
	ctx, span := tracer.Start(ctx, "eligibility.claims_history")
	defer span.End()
	span.SetAttributes(attribute.String("payer", req.PayerCode))

	return dispatch(ctx, s, payer.CapabilityClaimsHistory, req,
		func(a payer.Adapter, rc payer.RequestContext) payer.Response[payer.NormalizedClaimsHistory] {
			return a.GetClaimsHistory(ctx, rc)
		})
}

// CheckPriorAuth fetches prior authorization status.
func (s *Service) CheckPriorAuth(ctx context.Context, req Request) payer.Response[payer.NormalizedPriorAuth] {
	ctx, span := tracer.Start(ctx, "eligibility.prior_auth")
	defer span.End()
	span.SetAttributes(attribute.String("payer", req.PayerCode))

	return dispatch(ctx, s, payer.CapabilityPriorAuth, req,
		func(a payer.Adapter, rc payer.RequestContext) payer.Response[payer.NormalizedPriorAuth] {
			return a.CheckPriorAuth(ctx, rc)
		})
}

// PayerInfo describes one registered payer for listings.
type PayerInfo struct {
	Code         string             `json:"code"`
	Capabilities []payer.Capability `json:"capabilities"`
}

// ListPayers returns every registered payer and its capabilities.
func (s *Service) ListPayers() []PayerInfo {
	codes := s.registry.Codes()
	infos := make([]PayerInfo, 0, len(codes))
	for _, code := range codes {
		a, err := s.registry.Get(code)
		if err != nil {
			continue
		}
		var caps []payer.Capability
		for _, c := range []payer.Capability{
			payer.CapabilityEligibility,
			payer.CapabilityBenefits,
			payer.CapabilityClaimsHistory,
			payer.CapabilityPriorAuth,
		} {
			if a.SupportsCapability(c) {
				caps = append(caps, c)
			}
		}
		infos = append(infos, PayerInfo{Code: code, Capabilities: caps})
	}
	return infos
}

// HealthCheck probes one payer's connectivity.
func (s *Service) HealthCheck(ctx context.Context, payerCode string) (payer.HealthStatus, error) {
	a, err := s.registry.Get(payerCode)
	if err != nil {
		return payer.HealthStatus{}, err
	}
	return a.HealthCheck(ctx), nil
}

// InvalidateCache drops the cached eligibility result for one member.
func (s *Service) InvalidateCache(ctx context.Context, orgID, payerCode, memberID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, orgID, payerCode, memberID)
}

// dispatch runs the shared per-call pipeline: adapter lookup, capability
// pre-filter, credential resolution, the call itself, then audit and
// metrics. Every failure becomes an envelope, never a bare error.
func dispatch[T any](ctx context.Context, s *Service, cap payer.Capability, req Request, call func(payer.Adapter, payer.RequestContext) payer.Response[T]) payer.Response[T] {
	start := time.Now()

	a, err := s.registry.Get(req.PayerCode)
	if err != nil {
		return finish(ctx, s, cap, req, payer.ErrorResponse[T](
			payer.ErrCodeNotImplemented, err.Error(), "", time.Since(start), ""), start)
	}
	if !a.SupportsCapability(cap) {
		e := payer.NewNotImplemented(req.PayerCode, cap)
		return finish(ctx, s, cap, req, payer.ErrorResponse[T](
			e.Code, e.Message, "", time.Since(start), ""), start)
	}

	cred, err := s.creds.Resolve(ctx, req.OrgID, req.PayerCode)
	if err != nil {
		return finish(ctx, s, cap, req, payer.ErrorResponse[T](
			payer.ErrCodeAuthFailed, "no usable credential for payer: "+err.Error(), "", time.Since(start), ""), start)
	}

	rc := payer.RequestContext{
		OrgID:        req.OrgID,
		PayerCode:    req.PayerCode,
		MemberID:     req.MemberID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DateOfBirth:  req.DateOfBirth,
		ProviderNPI:  req.ProviderNPI,
		ProviderOrg:  req.ProviderOrg,
		TaxID:        req.TaxID,
		ServiceStart: req.ServiceStart,
		ServiceEnd:   req.ServiceEnd,
		Credential:   cred,
	}

	return finish(ctx, s, cap, req, call(a, rc), start)
}

func finish[T any](ctx context.Context, s *Service, cap payer.Capability, req Request, resp payer.Response[T], start time.Time) payer.Response[T] {
	status := "success"
	if resp.Error != nil {
		status = string(resp.Error.Code)
	}
	s.metrics.ObserveCall(req.PayerCode, string(cap), status, time.Since(start).Seconds())

	if s.audit != nil {
		rc := payer.RequestContext{PayerCode: req.PayerCode, MemberID: req.MemberID}
		if err := audit.LogResponse(ctx, s.audit, req.OrgID, cap, rc, resp); err != nil {
			s.logger.Error("audit log failed", "payer", req.PayerCode, "capability", cap, "error", err)
		}
	}

	if resp.Error != nil {
		s.logger.Warn("payer call failed",
			"payer", req.PayerCode,
			"capability", cap,
			"code", resp.Error.Code,
			"request_id", resp.RequestID,
		)
	} else {
		s.logger.Info("payer call completed",
			"payer", req.PayerCode,
			"capability", cap,
			"response_time_ms", resp.ResponseTimeMs,
			"request_id", resp.RequestID,
		)
	}
	return resp
}
