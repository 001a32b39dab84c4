package medicarefhir

import (
	"testing"
	"time"

	"github.com/clearwell-health/therabill/internal/payer"
)

func TestNormalizeEligibility(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		coverage     Coverage
		wantEligible bool
		wantStatus   payer.CoverageStatus
		wantEffect   string
		wantTerm     string
	}{
		{
			name:         "open-ended coverage is active",
			coverage:     Coverage{Period: Period{Start: "2024-01-01"}},
			wantEligible: true,
			wantStatus:   payer.CoverageActive,
			wantEffect:   "2024-01-01",
			wantTerm:     "",
		},
		{
			name:         "future termination is active",
			coverage:     Coverage{Period: Period{Start: "2024-01-01", End: "2025-01-01"}},
			wantEligible: true,
			wantStatus:   payer.CoverageActive,
			wantEffect:   "2024-01-01",
			wantTerm:     "2025-01-01",
		},
		{
			name:         "past termination is inactive",
			coverage:     Coverage{Period: Period{Start: "2022-01-01", End: "2023-01-01"}},
			wantEligible: false,
			wantStatus:   payer.CoverageInactive,
			wantEffect:   "2022-01-01",
			wantTerm:     "2023-01-01",
		},
		{
			name:         "unparseable termination is inactive",
			coverage:     Coverage{Period: Period{Start: "2024-01-01", End: "not-a-date"}},
			wantEligible: false,
			wantStatus:   payer.CoverageInactive,
			wantEffect:   "2024-01-01",
			wantTerm:     "not-a-date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			norm := normalizeEligibility("M123", tt.coverage, now)

			if norm.IsEligible != tt.wantEligible {
				t.Errorf("IsEligible = %v, want %v", norm.IsEligible, tt.wantEligible)
			}
			if norm.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", norm.Status, tt.wantStatus)
			}
			if norm.EffectiveDate != tt.wantEffect {
				t.Errorf("EffectiveDate = %s, want %s", norm.EffectiveDate, tt.wantEffect)
			}
			if norm.TerminationDate != tt.wantTerm {
				t.Errorf("TerminationDate = %s, want %s", norm.TerminationDate, tt.wantTerm)
			}
			if norm.MemberID != "M123" {
				t.Errorf("MemberID = %s, want M123", norm.MemberID)
			}
			if norm.PayerCode != "medicare" {
				t.Errorf("PayerCode = %s, want medicare", norm.PayerCode)
			}
		})
	}
}

func TestNormalizeEligibility_CoverageType(t *testing.T) {
	cov := Coverage{
		Period: Period{Start: "2024-01-01"},
		Type: CodeableConcept{
			Coding: []Coding{{System: "http://terminology.hl7.org/CodeSystem/v3-ActCode", Code: "EHCPOL"}},
			Text:   "Medicare Part B",
		},
	}

	norm := normalizeEligibility("M1", cov, time.Now())
	if norm.CoverageType != "EHCPOL" {
		t.Errorf("CoverageType = %s, want EHCPOL", norm.CoverageType)
	}
	if norm.PlanName != "Medicare Part B" {
		t.Errorf("PlanName = %s, want Medicare Part B", norm.PlanName)
	}
}

func TestNormalizeClaims(t *testing.T) {
	eobs := []ExplanationOfBenefit{
		{
			ID:             "eob-1",
			Status:         "active",
			BillablePeriod: Period{Start: "2024-02-10"},
			Total: []EOBTotal{
				{Category: CodeableConcept{Coding: []Coding{{Code: "submitted"}}}, Amount: Money{Value: 150}},
				{Category: CodeableConcept{Coding: []Coding{{Code: "eligible"}}}, Amount: Money{Value: 120}},
				{Category: CodeableConcept{Coding: []Coding{{Code: "benefit"}}}, Amount: Money{Value: 96}},
			},
		},
		{
			ID:             "eob-2",
			BillablePeriod: Period{Start: "2024-03-05"},
			Total: []EOBTotal{
				{Category: CodeableConcept{Coding: []Coding{{Code: "submitted"}}}, Amount: Money{Value: 200}},
				{Category: CodeableConcept{Coding: []Coding{{Code: "benefit"}}}, Amount: Money{Value: 80}},
			},
		},
	}

	history := normalizeClaims(eobs)

	if len(history.Claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(history.Claims))
	}

	first := history.Claims[0]
	if first.BilledAmount != 150 || first.AllowedAmount != 120 || first.PaidAmount != 96 {
		t.Errorf("first claim amounts = %v/%v/%v, want 150/120/96", first.BilledAmount, first.AllowedAmount, first.PaidAmount)
	}
	if first.PatientResponsibility != 24 {
		t.Errorf("patient responsibility = %v, want 24 (allowed - paid)", first.PatientResponsibility)
	}
	if first.ServiceDate != "2024-02-10" {
		t.Errorf("service date = %s, want 2024-02-10", first.ServiceDate)
	}

	// Second claim has no eligible total: responsibility clamps to zero
	// instead of going negative.
	second := history.Claims[1]
	if second.PatientResponsibility != 0 {
		t.Errorf("patient responsibility = %v, want 0", second.PatientResponsibility)
	}

	if history.TotalBilled != 350 {
		t.Errorf("TotalBilled = %v, want 350", history.TotalBilled)
	}
	if history.TotalPaid != 176 {
		t.Errorf("TotalPaid = %v, want 176", history.TotalPaid)
	}
}

func TestDecodeEntries_SkipsForeignResources(t *testing.T) {
	bundle := Bundle{
		Entry: []BundleEntry{
			{Resource: []byte(`{"resourceType":"Patient","id":"p1"}`)},
			{Resource: []byte(`{"resourceType":"OperationOutcome","id":"oops"}`)},
			{Resource: []byte(`{"resourceType":"Patient","id":"p2"}`)},
			{Resource: []byte(`not even json`)},
		},
	}

	patients := decodeEntries[Patient](bundle, "Patient")
	if len(patients) != 2 {
		t.Fatalf("expected 2 patients, got %d", len(patients))
	}
	if patients[0].ID != "p1" || patients[1].ID != "p2" {
		t.Errorf("unexpected patient ids: %s, %s", patients[0].ID, patients[1].ID)
	}
}

func TestParseFHIRDate(t *testing.T) {
	if _, err := parseFHIRDate("2024-01-01"); err != nil {
		t.Errorf("date-only value should parse: %v", err)
	}
	if _, err := parseFHIRDate("2024-01-01T12:30:00Z"); err != nil {
		t.Errorf("datetime value should parse: %v", err)
	}
	if _, err := parseFHIRDate("january"); err == nil {
		t.Error("expected error for garbage date")
	}
}
