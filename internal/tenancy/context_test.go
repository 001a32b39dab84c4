package tenancy

import (
	"context"
	"testing"
)

func TestOrgIDRoundTrip(t *testing.T) {
	ctx := WithOrgID(context.Background(), "org-1")
	got, ok := OrgIDFromContext(ctx)
	if !ok || got != "org-1" {
		t.Fatalf("OrgIDFromContext = %q, %v; want org-1, true", got, ok)
	}
}

func TestOrgIDMissing(t *testing.T) {
	if _, ok := OrgIDFromContext(context.Background()); ok {
		t.Fatal("expected missing org id")
	}
}

func TestOrgIDEmpty(t *testing.T) {
	ctx := WithOrgID(context.Background(), "")
	if _, ok := OrgIDFromContext(ctx); ok {
		t.Fatal("empty org id must not resolve")
	}
}
