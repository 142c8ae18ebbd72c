package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `customerID,gender,SeniorCitizen,tenure,Contract,MonthlyCharges,TotalCharges,InternetService,Churn
A,Female,0,1,Month-to-month,29.85,29.85,DSL,No
B,Male,0,34,One year,56.95,1889.5,DSL,No
C,Male,1,2,Month-to-month,53.85, ,Fiber optic,Yes
D,Female,0,45,Two year,42.30,1840.75,No,No
E,Female,0,8,Month-to-month,99.65,820.5,Fiber optic,
`

func loadSample(t *testing.T) *Table {
	t.Helper()
	table, err := DecodeCSV(strings.NewReader(sampleCSV), "")
	require.NoError(t, err)
	schema := TelcoSchema()
	cleaned, stats, err := NewDataCleaner(schema).Clean(table)
	require.NoError(t, err)
	assert.Equal(t, CleaningStats{TotalRows: 5, Kept: 4, DroppedTarget: 1, FilledBlanks: 1}, stats)
	return cleaned
}

func TestEncodeColumnLayout(t *testing.T) {
	dataset, err := Encode(loadSample(t), TelcoSchema())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"gender", "SeniorCitizen", "tenure", "MonthlyCharges", "TotalCharges",
		"InternetService_Fiber optic", "InternetService_No",
		"Contract_One year", "Contract_Two year",
	}, dataset.Columns)
	assert.Equal(t, []string{"DSL", "Fiber optic", "No"}, dataset.Categories["InternetService"])
	assert.Equal(t, []int{0, 0, 1, 0}, dataset.Labels)
	assert.Equal(t, 1, dataset.Positives())
}

func TestEncodeValues(t *testing.T) {
	dataset, err := Encode(loadSample(t), TelcoSchema())
	require.NoError(t, err)

	// customer C: Male, senior, 2 months, month-to-month, blank total, fiber
	assert.Equal(t, []float64{1, 1, 2, 53.85, 0, 1, 0, 0, 0}, dataset.Features[2])
	// customer D: two year contract, no internet
	assert.Equal(t, []float64{0, 0, 45, 42.30, 1840.75, 0, 1, 0, 1}, dataset.Features[3])
	for _, row := range dataset.Features {
		assert.Len(t, row, len(dataset.Columns))
	}
}

func TestEncodeRejectsNonNumericPassthrough(t *testing.T) {
	table, err := DecodeCSV(strings.NewReader("PhoneType,Churn\nmobile,Yes\nlandline,No\n"), "")
	require.NoError(t, err)
	_, err = Encode(table, TelcoSchema())
	assert.ErrorContains(t, err, `column "PhoneType" is not numeric`)
}

func TestEncodeRequiresTarget(t *testing.T) {
	table, err := DecodeCSV(strings.NewReader("tenure\n1\n"), "")
	require.NoError(t, err)
	_, err = Encode(table, TelcoSchema())
	assert.Error(t, err)

	_, _, err = NewDataCleaner(TelcoSchema()).Clean(table)
	assert.Error(t, err)
}

func TestIndicatorName(t *testing.T) {
	assert.Equal(t, "PaymentMethod_Bank transfer (automatic)", IndicatorName("PaymentMethod", "Bank transfer (automatic)"))
}
