// Package churn turns a single customer record into a churn probability
// using a trained model and the feature column list it was fitted on.
package churn

import (
	"fmt"
	"strconv"

	"churnai/pipeline"
)

// Record field names. They double as the numeric feature column names and as
// the prefixes of the categorical indicator columns.
const (
	FieldTenure          = "tenure"
	FieldMonthlyCharges  = "MonthlyCharges"
	FieldTotalCharges    = "TotalCharges"
	FieldContract        = "Contract"
	FieldInternetService = "InternetService"
	FieldPaymentMethod   = "PaymentMethod"
)

// Known categories, in the order the form offers them.
var (
	Contracts        = []string{"Month-to-month", "One year", "Two year"}
	InternetServices = []string{"DSL", "Fiber optic", "No"}
	PaymentMethods   = []string{
		"Electronic check",
		"Mailed check",
		"Bank transfer (automatic)",
		"Credit card (automatic)",
	}
)

// Record is one customer as entered in the form.
type Record struct {
	Tenure          int     `json:"tenure"`
	MonthlyCharges  float64 `json:"MonthlyCharges"`
	TotalCharges    float64 `json:"TotalCharges"`
	Contract        string  `json:"Contract"`
	InternetService string  `json:"InternetService"`
	PaymentMethod   string  `json:"PaymentMethod"`
}

// Expand returns the record as named feature values: numeric fields under
// their own name and one indicator per categorical field.
func (r Record) Expand() map[string]float64 {
	return map[string]float64{
		FieldTenure:         float64(r.Tenure),
		FieldMonthlyCharges: r.MonthlyCharges,
		FieldTotalCharges:   r.TotalCharges,
		pipeline.IndicatorName(FieldContract, r.Contract):               1,
		pipeline.IndicatorName(FieldInternetService, r.InternetService): 1,
		pipeline.IndicatorName(FieldPaymentMethod, r.PaymentMethod):     1,
	}
}

// Key is a canonical string form of the record, used as a cache key.
func (r Record) Key() string {
	return strconv.Itoa(r.Tenure) + "|" +
		strconv.FormatFloat(r.MonthlyCharges, 'g', -1, 64) + "|" +
		strconv.FormatFloat(r.TotalCharges, 'g', -1, 64) + "|" +
		strconv.Quote(r.Contract) + "|" +
		strconv.Quote(r.InternetService) + "|" +
		strconv.Quote(r.PaymentMethod)
}

func (r Record) String() string {
	return fmt.Sprintf("tenure=%d monthly=%.2f total=%.2f contract=%q internet=%q payment=%q",
		r.Tenure, r.MonthlyCharges, r.TotalCharges, r.Contract, r.InternetService, r.PaymentMethod)
}
