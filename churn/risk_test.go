package churn

import (
	"encoding/json"
	"testing"
)

func TestClassifyRiskBoundaries(t *testing.T) {
	cases := []struct {
		p    float64
		want RiskTier
	}{
		{0, RiskLow},
		{0.2999, RiskLow},
		{0.3, RiskMedium},
		{0.5999, RiskMedium},
		{0.6, RiskHigh},
		{1.0, RiskHigh},
	}
	for _, c := range cases {
		if got := ClassifyRisk(c.p); got != c.want {
			t.Fatalf("ClassifyRisk(%v) = %v, want %v", c.p, got, c.want)
		}
	}
}

func TestRiskTierDisplay(t *testing.T) {
	if got := RiskMedium.Label(); got != "Medium Risk of Churn" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := RiskHigh.CSSClass(); got != "high-risk" {
		t.Fatalf("unexpected css class %q", got)
	}
	payload, err := json.Marshal(map[string]RiskTier{"risk": RiskLow})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"risk":"Low"}` {
		t.Fatalf("unexpected json %s", payload)
	}
}
