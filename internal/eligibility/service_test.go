package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/clearwell-health/therabill/internal/payer"
)

// fakeAdapter counts capability calls and returns canned envelopes.
type fakeAdapter struct {
	payer.Unimplemented
	code             string
	caps             map[payer.Capability]bool
	eligibilityCalls int
	health           payer.HealthStatus
}

func newFakeAdapter(code string, caps ...payer.Capability) *fakeAdapter {
	m := make(map[payer.Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return &fakeAdapter{
		Unimplemented: payer.Unimplemented{PayerCode: code},
		code:          code,
		caps:          m,
		health:        payer.HealthStatus{Status: payer.HealthHealthy},
	}
}

func (f *fakeAdapter) Name() string { return f.code }

func (f *fakeAdapter) Authenticate(context.Context, payer.Credential) (payer.AuthResult, error) {
	return payer.AuthResult{Token: "t"}, nil
}

func (f *fakeAdapter) HealthCheck(context.Context) payer.HealthStatus { return f.health }

func (f *fakeAdapter) SupportsCapability(c payer.Capability) bool { return f.caps[c] }

func (f *fakeAdapter) CheckEligibility(ctx context.Context, rc payer.RequestContext) payer.Response[payer.NormalizedEligibility] {
	f.eligibilityCalls++
	return payer.SuccessResponse(payer.NormalizedEligibility{
		MemberID:   rc.MemberID,
		PayerCode:  f.code,
		IsEligible: true,
		Status:     payer.CoverageActive,
	}, []byte(`{}`), 10*time.Millisecond, "")
}

type fakeCreds struct {
	cred payer.Credential
	err  error
}

func (f fakeCreds) Resolve(context.Context, string, string) (payer.Credential, error) {
	return f.cred, f.err
}

func newTestService(t *testing.T, adapter payer.Adapter, creds CredentialSource, opts ...Option) *Service {
	t.Helper()
	registry := payer.NewRegistry()
	if err := registry.Register(adapter); err != nil {
		t.Fatalf("register adapter: %v", err)
	}
	return NewService(registry, creds, nil, opts...)
}

func testCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, ttl)
}

func TestCheckEligibility(t *testing.T) {
	adapter := newFakeAdapter("medicare", payer.CapabilityEligibility)
	svc := newTestService(t, adapter, fakeCreds{cred: payer.Credential{Type: payer.CredentialOAuthClient}})

	resp := svc.CheckEligibility(context.Background(), Request{
		OrgID:     "org-1",
		PayerCode: "medicare",
		MemberID:  "M1",
	})

	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp.Error)
	}
	if !resp.Data.IsEligible {
		t.Error("expected eligible")
	}
	if adapter.eligibilityCalls != 1 {
		t.Errorf("adapter called %d times, want 1", adapter.eligibilityCalls)
	}
}

func TestCheckEligibility_CacheHit(t *testing.T) {
	adapter := newFakeAdapter("medicare", payer.CapabilityEligibility)
	svc := newTestService(t, adapter,
		fakeCreds{cred: payer.Credential{Type: payer.CredentialOAuthClient}},
		WithCache(testCache(t, time.Minute)),
	)

	req := Request{OrgID: "org-1", PayerCode: "medicare", MemberID: "M1"}

	first := svc.CheckEligibility(context.Background(), req)
	if !first.Success {
		t.Fatalf("first call failed: %+v", first.Error)
	}
	second := svc.CheckEligibility(context.Background(), req)
	if !second.Success {
		t.Fatalf("second call failed: %+v", second.Error)
	}

	if adapter.eligibilityCalls != 1 {
		t.Errorf("adapter called %d times, want 1 (second call served from cache)", adapter.eligibilityCalls)
	}
	if second.RequestID != first.RequestID {
		t.Errorf("cached response changed request id: %s vs %s", second.RequestID, first.RequestID)
	}
}

func TestCheckEligibility_CacheScopedPerMember(t *testing.T) {
	adapter := newFakeAdapter("medicare", payer.CapabilityEligibility)
	svc := newTestService(t, adapter,
		fakeCreds{cred: payer.Credential{Type: payer.CredentialOAuthClient}},
		WithCache(testCache(t, time.Minute)),
	)

	svc.CheckEligibility(context.Background(), Request{OrgID: "org-1", PayerCode: "medicare", MemberID: "M1"})
	svc.CheckEligibility(context.Background(), Request{OrgID: "org-1", PayerCode: "medicare", MemberID: "M2"})

	if adapter.eligibilityCalls != 2 {
		t.Errorf("adapter called %d times, want 2 (cache must not cross members)", adapter.eligibilityCalls)
	}
}

func TestInvalidateCache(t *testing.T) {
	adapter := newFakeAdapter("medicare", payer.CapabilityEligibility)
	svc := newTestService(t, adapter,
		fakeCreds{cred: payer.Credential{Type: payer.CredentialOAuthClient}},
		WithCache(testCache(t, time.Minute)),
	)

	req := Request{OrgID: "org-1", PayerCode: "medicare", MemberID: "M1"}
	svc.CheckEligibility(context.Background(), req)

	if err := svc.InvalidateCache(context.Background(), "org-1", "medicare", "M1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	svc.CheckEligibility(context.Background(), req)
	if adapter.eligibilityCalls != 2 {
		t.Errorf("adapter called %d times, want 2 after invalidation", adapter.eligibilityCalls)
	}
}

func TestDispatch_UnknownPayer(t *testing.T) {
	adapter := newFakeAdapter("medicare", payer.CapabilityEligibility)
	svc := newTestService(t, adapter, fakeCreds{cred: payer.Credential{Type: payer.CredentialOAuthClient}})

	resp := svc.CheckEligibility(context.Background(), Request{OrgID: "org-1", PayerCode: "tricare", MemberID: "M1"})
	if resp.Success {
		t.Fatal("expected failure envelope for unknown payer")
	}
	if resp.Error.Code != payer.ErrCodeNotImplemented {
		t.Errorf("error code = %s, want NOT_IMPLEMENTED", resp.Error.Code)
	}
}

func TestDispatch_UnsupportedCapability(t *testing.T) {
	adapter := newFakeAdapter("medicare", payer.CapabilityEligibility)
	svc := newTestService(t, adapter, fakeCreds{cred: payer.Credential{Type: payer.CredentialOAuthClient}})

	resp := svc.CheckPriorAuth(context.Background(), Request{OrgID: "org-1", PayerCode: "medicare", MemberID: "M1"})
	if resp.Success {
		t.Fatal("expected failure envelope")
	}
	if resp.Error.Code != payer.ErrCodeNotImplemented {
		t.Errorf("error code = %s, want NOT_IMPLEMENTED", resp.Error.Code)
	}
}

func TestDispatch_MissingCredential(t *testing.T) {
	adapter := newFakeAdapter("medicare", payer.CapabilityEligibility)
	svc := newTestService(t, adapter, fakeCreds{err: errors.New("not found")})

	resp := svc.CheckEligibility(context.Background(), Request{OrgID: "org-1", PayerCode: "medicare", MemberID: "M1"})
	if resp.Success {
		t.Fatal("expected failure envelope")
	}
	if resp.Error.Code != payer.ErrCodeAuthFailed {
		t.Errorf("error code = %s, want AUTH_FAILED", resp.Error.Code)
	}
	if adapter.eligibilityCalls != 0 {
		t.Errorf("adapter called %d times, want 0 (no credential, no call)", adapter.eligibilityCalls)
	}
}

func TestListPayers(t *testing.T) {
	adapter := newFakeAdapter("medicare", payer.CapabilityEligibility, payer.CapabilityClaimsHistory)
	svc := newTestService(t, adapter, fakeCreds{})

	infos := svc.ListPayers()
	if len(infos) != 1 {
		t.Fatalf("expected 1 payer, got %d", len(infos))
	}
	if infos[0].Code != "medicare" {
		t.Errorf("code = %s, want medicare", infos[0].Code)
	}
	if len(infos[0].Capabilities) != 2 {
		t.Errorf("capabilities = %v, want eligibility + claims_history", infos[0].Capabilities)
	}
}

func TestHealthCheck(t *testing.T) {
	adapter := newFakeAdapter("medicare", payer.CapabilityEligibility)
	svc := newTestService(t, adapter, fakeCreds{})

	status, err := svc.HealthCheck(context.Background(), "medicare")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if status.Status != payer.HealthHealthy {
		t.Errorf("status = %s, want healthy", status.Status)
	}

	if _, err := svc.HealthCheck(context.Background(), "tricare"); err == nil {
		t.Error("expected error for unknown payer")
	}
}

func TestCacheExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)

	adapter := newFakeAdapter("medicare", payer.CapabilityEligibility)
	svc := newTestService(t, adapter,
		fakeCreds{cred: payer.Credential{Type: payer.CredentialOAuthClient}},
		WithCache(cache),
	)

	req := Request{OrgID: "org-1", PayerCode: "medicare", MemberID: "M1"}
	svc.CheckEligibility(context.Background(), req)

	mr.FastForward(2 * time.Minute)

	svc.CheckEligibility(context.Background(), req)
	if adapter.eligibilityCalls != 2 {
		t.Errorf("adapter called %d times, want 2 after TTL expiry", adapter.eligibilityCalls)
	}
}
