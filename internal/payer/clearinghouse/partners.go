package clearinghouse

import (
	"fmt"
	"strings"
)

// PartnerTable maps internal payer codes to clearinghouse trading partner
// service ids. The mapping is explicit and validated at configuration load
// so a misconfigured payer surfaces as a clear error instead of a runtime
// "not found" after a wasted network call.
type PartnerTable struct {
	ids map[string]string
}

// NewPartnerTable validates and builds a partner table.
func NewPartnerTable(mapping map[string]string) (*PartnerTable, error) {
	if len(mapping) == 0 {
		return nil, fmt.Errorf("clearinghouse: partner table is empty")
	}
	ids := make(map[string]string, len(mapping))
	for code, id := range mapping {
		code = strings.ToLower(strings.TrimSpace(code))
		id = strings.TrimSpace(id)
		if code == "" {
			return nil, fmt.Errorf("clearinghouse: partner table contains an empty payer code")
		}
		if id == "" {
			return nil, fmt.Errorf("clearinghouse: payer %q has an empty trading partner id", code)
		}
		if _, dup := ids[code]; dup {
			return nil, fmt.Errorf("clearinghouse: payer %q mapped twice", code)
		}
		ids[code] = id
	}
	return &PartnerTable{ids: ids}, nil
}

// DefaultPartnerTable returns the built-in commercial payer mapping.
func DefaultPartnerTable() *PartnerTable {
	table, err := NewPartnerTable(map[string]string{
		"bcbs":   "G84980",
		"anthem": "040",
		"aetna":  "60054",
		"cigna":  "62308",
		"uhc":    "87726",
	})
	if err != nil {
		panic(err) // built-in table is static; failure here is a programming error
	}
	return table
}

// Resolve returns the trading partner service id for a payer code.
func (t *PartnerTable) Resolve(payerCode string) (string, error) {
	id, ok := t.ids[strings.ToLower(strings.TrimSpace(payerCode))]
	if !ok {
		return "", fmt.Errorf("clearinghouse: no trading partner id configured for payer %q", payerCode)
	}
	return id, nil
}

// Codes returns every payer code the table can route.
func (t *PartnerTable) Codes() []string {
	codes := make([]string, 0, len(t.ids))
	for code := range t.ids {
		codes = append(codes, code)
	}
	return codes
}
