package payer

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{name: "plain number", in: 25.5, want: 25.5},
		{name: "integer", in: 40, want: 40},
		{name: "numeric string", in: "25", want: 25},
		{name: "decimal string", in: "19.99", want: 19.99},
		{name: "currency string", in: "$1,250.00", want: 1250},
		{name: "json number", in: json.Number("12.75"), want: 12.75},
		{name: "nil", in: nil, want: 0},
		{name: "empty string", in: "", want: 0},
		{name: "garbage string", in: "n/a", want: 0},
		{name: "NaN collapses to zero", in: math.NaN(), want: 0},
		{name: "infinity collapses to zero", in: math.Inf(1), want: 0},
		{name: "unsupported type", in: []string{"25"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAmount(tt.in); got != tt.want {
				t.Errorf("ParseAmount(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{name: "bool true", in: true, want: true},
		{name: "bool false", in: false, want: false},
		{name: "string true", in: "true", want: true},
		{name: "string TRUE", in: "TRUE", want: true},
		{name: "string yes", in: "yes", want: true},
		{name: "string Y", in: "Y", want: true},
		{name: "string 1", in: "1", want: true},
		{name: "string no", in: "no", want: false},
		{name: "string 0", in: "0", want: false},
		{name: "number 1", in: float64(1), want: true},
		{name: "number 0", in: float64(0), want: false},
		{name: "nil", in: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseBool(tt.in); got != tt.want {
				t.Errorf("ParseBool(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
