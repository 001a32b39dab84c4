package medicarefhir

import (
	"encoding/json"
	"time"

	"github.com/clearwell-health/therabill/internal/payer"
)

// Typed FHIR R4 models for the Medicare Blue Button style API. Payloads are
// decoded into these at the network boundary so normalization never walks
// untyped JSON.

// Bundle is a FHIR search result container. Entries stay raw until the
// caller knows which resource type to decode.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        int           `json:"total"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleEntry struct {
	Resource json.RawMessage `json:"resource"`
}

// Patient carries the subset of the FHIR Patient resource we need.
type Patient struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
}

type Period struct {
	Start string `json:"start,omitempty"` // FHIR date, YYYY-MM-DD
	End   string `json:"end,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Coverage is the FHIR Coverage resource backing eligibility.
type Coverage struct {
	ResourceType string          `json:"resourceType"`
	ID           string          `json:"id"`
	Status       string          `json:"status,omitempty"`
	Period       Period          `json:"period"`
	Type         CodeableConcept `json:"type"`
	Class        []CoverageClass `json:"class,omitempty"`
}

type CoverageClass struct {
	Type  CodeableConcept `json:"type"`
	Value string          `json:"value,omitempty"`
	Name  string          `json:"name,omitempty"`
}

type Money struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency,omitempty"`
}

// EOBTotal is one adjudication total on an ExplanationOfBenefit, keyed by
// category code ("submitted", "eligible", "benefit").
type EOBTotal struct {
	Category CodeableConcept `json:"category"`
	Amount   Money           `json:"amount"`
}

// ExplanationOfBenefit carries the subset of the FHIR EOB resource needed
// for claims history.
type ExplanationOfBenefit struct {
	ResourceType   string     `json:"resourceType"`
	ID             string     `json:"id"`
	Status         string     `json:"status,omitempty"`
	BillablePeriod Period     `json:"billablePeriod"`
	Total          []EOBTotal `json:"total"`
}

// EOB total category codes.
const (
	totalCategorySubmitted = "submitted"
	totalCategoryEligible  = "eligible"
	totalCategoryBenefit   = "benefit"
)

// normalizeEligibility maps a FHIR Coverage resource to the canonical
// eligibility shape. Coverage is considered active iff there is no
// termination date or the termination date is in the future.
func normalizeEligibility(memberID string, cov Coverage, now time.Time) payer.NormalizedEligibility {
	norm := payer.NormalizedEligibility{
		MemberID:        memberID,
		PayerCode:       payerCode,
		EffectiveDate:   cov.Period.Start,
		TerminationDate: cov.Period.End,
	}

	eligible := true
	if cov.Period.End != "" {
		end, err := parseFHIRDate(cov.Period.End)
		if err != nil || !end.After(now) {
			eligible = false
		}
	}
	norm.IsEligible = eligible
	if eligible {
		norm.Status = payer.CoverageActive
	} else {
		norm.Status = payer.CoverageInactive
	}

	if len(cov.Type.Coding) > 0 {
		norm.CoverageType = cov.Type.Coding[0].Code
	}
	if cov.Type.Text != "" {
		norm.PlanName = cov.Type.Text
	} else if len(cov.Class) > 0 && cov.Class[0].Name != "" {
		norm.PlanName = cov.Class[0].Name
	}

	return norm
}

// normalizeClaims maps an ExplanationOfBenefit bundle to the canonical
// claims history. Per claim: submitted -> billed, eligible -> allowed,
// benefit -> paid, and patient responsibility = allowed - paid.
func normalizeClaims(eobs []ExplanationOfBenefit) payer.NormalizedClaimsHistory {
	history := payer.NormalizedClaimsHistory{Claims: make([]payer.ClaimRecord, 0, len(eobs))}

	for _, eob := range eobs {
		claim := payer.ClaimRecord{
			ClaimID:     eob.ID,
			ServiceDate: eob.BillablePeriod.Start,
			Status:      eob.Status,
		}
		for _, total := range eob.Total {
			if len(total.Category.Coding) == 0 {
				continue
			}
			switch total.Category.Coding[0].Code {
			case totalCategorySubmitted:
				claim.BilledAmount = total.Amount.Value
			case totalCategoryEligible:
				claim.AllowedAmount = total.Amount.Value
			case totalCategoryBenefit:
				claim.PaidAmount = total.Amount.Value
			}
		}
		claim.PatientResponsibility = claim.AllowedAmount - claim.PaidAmount
		if claim.PatientResponsibility < 0 {
			claim.PatientResponsibility = 0
		}

		history.Claims = append(history.Claims, claim)
		history.TotalBilled += claim.BilledAmount
		history.TotalPaid += claim.PaidAmount
	}

	return history
}

// decodeEntries decodes every bundle entry whose resourceType matches into
// typed values, skipping anything else the payer mixed into the bundle.
func decodeEntries[T any](bundle Bundle, resourceType string) []T {
	out := make([]T, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		var probe struct {
			ResourceType string `json:"resourceType"`
		}
		if err := json.Unmarshal(entry.Resource, &probe); err != nil || probe.ResourceType != resourceType {
			continue
		}
		var resource T
		if err := json.Unmarshal(entry.Resource, &resource); err != nil {
			continue
		}
		out = append(out, resource)
	}
	return out
}

// parseFHIRDate accepts both date-only and full datetime FHIR values.
func parseFHIRDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
