package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"250000", 25000000, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.004", 0, false},
		{"1e3", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %d", tc.in, got)
		}
	}
}

func TestMoneyDecimalBridge(t *testing.T) {
	m := Money{Cents: 860664}
	if got := m.Decimal().String(); got != "8606.64" {
		t.Fatalf("Decimal() = %s", got)
	}
	if got := MoneyFromDecimal(decimal.RequireFromString("8606.645")); got.Cents != 860665 {
		t.Fatalf("MoneyFromDecimal rounds half-up, got %d", got.Cents)
	}
	if got := m.String(); got != "8606.64" {
		t.Fatalf("String() = %s", got)
	}
	if got := (Money{Cents: 5}).String(); got != "0.05" {
		t.Fatalf("String() = %s", got)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Money{Cents: 100050})
	if err != nil || string(b) != `"1000.50"` {
		t.Fatalf("marshal = %s, %v", b, err)
	}
	var m Money
	for in, want := range map[string]int64{`"12.34"`: 1234, `12.5`: 1250, `null`: 0} {
		if err := json.Unmarshal([]byte(in), &m); err != nil || m.Cents != want {
			t.Fatalf("unmarshal %s = %d, %v", in, m.Cents, err)
		}
	}
	if err := json.Unmarshal([]byte(`"twelve"`), &m); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParsePercent(t *testing.T) {
	for in, want := range map[string]string{"6.5": "6.5", "6,5": "6.5", " 4 %": "4", "0": "0"} {
		got, err := ParsePercent(in)
		if err != nil || !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("%q = %s, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "-1", "x", "5000"} {
		if _, err := ParsePercent(in); err == nil {
			t.Fatalf("%q expected error", in)
		}
	}
}
