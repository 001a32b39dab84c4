package payer

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSuccessResponse_PopulatesDataOnly(t *testing.T) {
	elig := NormalizedEligibility{MemberID: "M123", IsEligible: true, Status: CoverageActive}
	resp := SuccessResponse(elig, json.RawMessage(`{"resourceType":"Coverage"}`), 120*time.Millisecond, "req-1")

	if !resp.Success {
		t.Fatal("expected success envelope")
	}
	if resp.Data == nil {
		t.Fatal("expected data to be populated")
	}
	if resp.Error != nil {
		t.Fatal("success envelope must not carry an error")
	}
	if resp.RequestID != "req-1" {
		t.Errorf("expected request id req-1, got %s", resp.RequestID)
	}
	if resp.ResponseTimeMs != 120 {
		t.Errorf("expected 120ms, got %d", resp.ResponseTimeMs)
	}
	if len(resp.RawResponse) == 0 {
		t.Error("raw response must be retained on success")
	}
}

func TestErrorResponse_PopulatesErrorOnly(t *testing.T) {
	resp := ErrorResponse[NormalizedEligibility](ErrCodeMemberNotFound, "no member record", "", 45*time.Millisecond, "req-2")

	if resp.Success {
		t.Fatal("expected failure envelope")
	}
	if resp.Data != nil {
		t.Fatal("failure envelope must not carry data")
	}
	if resp.Error == nil {
		t.Fatal("expected error to be populated")
	}
	if resp.Error.Code != ErrCodeMemberNotFound {
		t.Errorf("expected MEMBER_NOT_FOUND, got %s", resp.Error.Code)
	}
	if len(resp.RawResponse) != 0 {
		t.Error("raw response must not be retained on failure")
	}
}

func TestResponseBuilders_GenerateRequestID(t *testing.T) {
	success := SuccessResponse(NormalizedBenefits{}, nil, 0, "")
	if success.RequestID == "" {
		t.Error("success builder must generate a request id when none supplied")
	}

	failure := ErrorResponse[NormalizedBenefits](ErrCodeUnknown, "boom", "", 0, "")
	if failure.RequestID == "" {
		t.Error("error builder must generate a request id when none supplied")
	}
	if success.RequestID == failure.RequestID {
		t.Error("generated request ids must be unique")
	}
}
