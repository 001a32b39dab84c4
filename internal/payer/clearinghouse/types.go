package clearinghouse

import (
	"github.com/clearwell-health/therabill/internal/payer"
)

// Wire types for the clearinghouse eligibility API (EDI 270/271 delivered
// as JSON). Amount and quantity fields arrive inconsistently typed — some
// payers send numbers, others quoted strings — so they are held as `any`
// and run through the tolerant parsers.

type eligibilityRequest struct {
	ControlNumber           string            `json:"controlNumber"`
	TradingPartnerServiceID string            `json:"tradingPartnerServiceId"`
	Provider                providerInfo      `json:"provider"`
	Subscriber              subscriberInfo    `json:"subscriber"`
	Encounter               *encounterRequest `json:"encounter,omitempty"`
}

type providerInfo struct {
	OrganizationName string `json:"organizationName,omitempty"`
	NPI              string `json:"npi"`
	TaxID            string `json:"taxId,omitempty"`
}

type subscriberInfo struct {
	MemberID    string `json:"memberId"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"` // YYYYMMDD
}

type encounterRequest struct {
	ServiceTypeCodes []string `json:"serviceTypeCodes,omitempty"`
}

type eligibilityResponse struct {
	ControlNumber       string               `json:"controlNumber"`
	PlanInformation     *planInformation     `json:"planInformation,omitempty"`
	PlanDateInformation *planDateInformation `json:"planDateInformation,omitempty"`
	BenefitsInformation []benefitInformation `json:"benefitsInformation"`
	Errors              []responseError      `json:"errors,omitempty"`
}

type planInformation struct {
	GroupNumber     string `json:"groupNumber,omitempty"`
	GroupDescription string `json:"groupDescription,omitempty"`
}

type planDateInformation struct {
	PlanBegin string `json:"planBegin,omitempty"` // YYYYMMDD
	PlanEnd   string `json:"planEnd,omitempty"`
}

type benefitInformation struct {
	Code                   string   `json:"code"`
	Name                   string   `json:"name,omitempty"`
	CoverageLevelCode      string   `json:"coverageLevelCode,omitempty"`
	ServiceTypeCodes       []string `json:"serviceTypeCodes,omitempty"`
	InsuranceTypeCode      string   `json:"insuranceTypeCode,omitempty"`
	TimeQualifierCode      string   `json:"timeQualifierCode,omitempty"`
	QuantityQualifier      string   `json:"quantityQualifier,omitempty"`
	BenefitAmount          any      `json:"benefitAmount,omitempty"`
	BenefitPercent         any      `json:"benefitPercent,omitempty"`
	BenefitQuantity        any      `json:"benefitQuantity,omitempty"`
	InPlanNetworkIndicator string   `json:"inPlanNetworkIndicator,omitempty"`
	AuthOrCertIndicator    string   `json:"authOrCertIndicator,omitempty"`
}

// Benefit information codes from the 271 EB segment.
const (
	benefitCodeActive      = "1"  // Active Coverage
	benefitCodeInactive    = "6"  // Inactive
	benefitCodeCoinsurance = "A"  // coinsurance percentage
	benefitCodeCopay       = "B"  // co-payment amount
	benefitCodeDeductible  = "C"  // deductible amount
	benefitCodeLimitations = "F"  // limitations (visit limits with VS qualifier)
	benefitCodeOutOfPocket = "G"  // out-of-pocket maximum
	benefitCodePriorAuth   = "CB" // coverage basis / prior auth required
)

const quantityQualifierVisits = "VS"

type responseError struct {
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (b benefitInformation) inNetwork() bool {
	return b.InPlanNetworkIndicator == "Y"
}

// parseStatus derives the normalized coverage status from benefit entries:
// code 1 / "Active Coverage" wins over 6 / "Inactive"; neither means the
// payer response was inconclusive.
func parseStatus(resp eligibilityResponse) payer.CoverageStatus {
	status := payer.CoverageUnknown
	for _, b := range resp.BenefitsInformation {
		switch {
		case b.Code == benefitCodeActive || b.Name == "Active Coverage":
			return payer.CoverageActive
		case b.Code == benefitCodeInactive || b.Name == "Inactive":
			status = payer.CoverageInactive
		}
	}
	return status
}

// parseBenefits folds in-network benefit entries into the normalized
// benefits summary. Out-of-network entries are ignored: the practice bills
// in-network, and mixing the two produces nonsense copays.
func parseBenefits(resp eligibilityResponse) payer.NormalizedBenefits {
	var out payer.NormalizedBenefits
	for _, b := range resp.BenefitsInformation {
		switch b.Code {
		case benefitCodePriorAuth:
			// Prior-auth flag applies plan-wide regardless of network.
			out.PriorAuthRequired = true
			continue
		case benefitCodeActive, benefitCodeInactive:
			continue
		}
		if !b.inNetwork() {
			continue
		}
		switch b.Code {
		case benefitCodeCopay:
			out.Copay = payer.ParseAmount(b.BenefitAmount)
		case benefitCodeCoinsurance:
			out.CoinsurancePercent = coinsurancePercent(b.BenefitPercent)
		case benefitCodeDeductible:
			out.Deductible = payer.ParseAmount(b.BenefitAmount)
		case benefitCodeOutOfPocket:
			out.OutOfPocketMax = payer.ParseAmount(b.BenefitAmount)
		case benefitCodeLimitations:
			if b.QuantityQualifier == quantityQualifierVisits {
				out.VisitLimit = int(payer.ParseAmount(b.BenefitQuantity))
			}
		}
	}
	return out
}

// coinsurancePercent normalizes EDI coinsurance values: payers send either
// a ratio ("0.2") or a whole percentage ("20").
func coinsurancePercent(v any) float64 {
	f := payer.ParseAmount(v)
	if f > 0 && f <= 1 {
		return f * 100
	}
	return f
}

// parseEligibility maps a 271-style response to the normalized eligibility
// shape.
func parseEligibility(memberID, payerCode string, resp eligibilityResponse) payer.NormalizedEligibility {
	norm := payer.NormalizedEligibility{
		MemberID:  memberID,
		PayerCode: payerCode,
		Status:    parseStatus(resp),
	}
	norm.IsEligible = norm.Status == payer.CoverageActive

	if resp.PlanInformation != nil {
		norm.PlanName = resp.PlanInformation.GroupDescription
	}
	if resp.PlanDateInformation != nil {
		norm.EffectiveDate = formatEDIDate(resp.PlanDateInformation.PlanBegin)
		norm.TerminationDate = formatEDIDate(resp.PlanDateInformation.PlanEnd)
	}
	return norm
}

// formatEDIDate converts YYYYMMDD to YYYY-MM-DD, passing through anything
// already formatted or unparseable.
func formatEDIDate(s string) string {
	if len(s) != 8 {
		return s
	}
	return s[0:4] + "-" + s[4:6] + "-" + s[6:8]
}
