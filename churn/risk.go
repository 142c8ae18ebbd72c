package churn

import "encoding/json"

// RiskTier buckets a churn probability for display.
type RiskTier int

const (
	RiskLow RiskTier = iota
	RiskMedium
	RiskHigh
)

const (
	mediumRiskFrom = 0.3
	highRiskFrom   = 0.6
)

// ClassifyRisk maps [0,0.3) to Low, [0.3,0.6) to Medium and [0.6,1] to High.
func ClassifyRisk(probability float64) RiskTier {
	switch {
	case probability < mediumRiskFrom:
		return RiskLow
	case probability < highRiskFrom:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func (t RiskTier) String() string {
	switch t {
	case RiskLow:
		return "Low"
	case RiskMedium:
		return "Medium"
	default:
		return "High"
	}
}

// Label is the sentence shown on the result card.
func (t RiskTier) Label() string {
	return t.String() + " Risk of Churn"
}

// CSSClass names the result box style.
func (t RiskTier) CSSClass() string {
	switch t {
	case RiskLow:
		return "low-risk"
	case RiskMedium:
		return "medium-risk"
	default:
		return "high-risk"
	}
}

func (t RiskTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}
