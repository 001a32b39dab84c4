package payer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseAmount tolerantly converts payer-supplied monetary values. Payer
// payloads are inconsistently typed: the same field may arrive as a JSON
// number, a quoted string with currency noise, or null. NaN and
// unparseable input collapse to 0.
func ParseAmount(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0
		}
		return val
	case float32:
		return ParseAmount(float64(val))
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		return ParseAmount(val.String())
	case string:
		s := strings.TrimSpace(val)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

// ParseBool tolerantly converts payer-supplied flags. Accepts "true",
// "yes", "1", and "y" case-insensitively; everything else is false.
func ParseBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "1", "y":
			return true
		}
		return false
	case float64:
		return val == 1
	case int:
		return val == 1
	default:
		return false
	}
}
