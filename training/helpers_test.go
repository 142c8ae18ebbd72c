package training

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

var telcoHeader = []string{
	"customerID", "gender", "SeniorCitizen", "Partner", "Dependents", "tenure",
	"PhoneService", "MultipleLines", "InternetService", "OnlineSecurity", "OnlineBackup",
	"DeviceProtection", "TechSupport", "StreamingTV", "StreamingMovies", "Contract",
	"PaperlessBilling", "PaymentMethod", "MonthlyCharges", "TotalCharges", "Churn",
}

func pick(rng *rand.Rand, values ...string) string {
	return values[rng.Intn(len(values))]
}

// writeTelcoCSV writes n synthetic customers in which short month-to-month
// fiber contracts paid by electronic check churn most.
func writeTelcoCSV(t *testing.T, n int, seed int64) string {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	path := filepath.Join(t.TempDir(), "telco.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write(telcoHeader))
	for i := 0; i < n; i++ {
		tenure := rng.Intn(73)
		if i == 0 {
			tenure = 0
		}
		internet := pick(rng, "DSL", "Fiber optic", "No")
		addon := func() string {
			if internet == "No" {
				return "No internet service"
			}
			return pick(rng, "Yes", "No")
		}
		contract := pick(rng, "Month-to-month", "Month-to-month", "One year", "Two year")
		payment := pick(rng, "Electronic check", "Mailed check", "Bank transfer (automatic)", "Credit card (automatic)")
		monthly := 20 + rng.Float64()*100
		total := strconv.FormatFloat(float64(tenure)*monthly, 'f', 2, 64)
		if tenure == 0 {
			total = " "
		}

		score := rng.Float64()
		if contract == "Month-to-month" {
			score += 1.2
		}
		if internet == "Fiber optic" {
			score += 0.6
		}
		if payment == "Electronic check" {
			score += 0.4
		}
		if tenure < 12 {
			score += 0.6
		}
		churn := "No"
		if score > 2 {
			churn = "Yes"
		}

		require.NoError(t, w.Write([]string{
			fmt.Sprintf("%04d-TEST", i),
			pick(rng, "Female", "Male"),
			strconv.Itoa(rng.Intn(2)),
			pick(rng, "Yes", "No"),
			pick(rng, "Yes", "No"),
			strconv.Itoa(tenure),
			pick(rng, "Yes", "No"),
			pick(rng, "Yes", "No", "No phone service"),
			internet,
			addon(), addon(), addon(), addon(), addon(), addon(),
			contract,
			pick(rng, "Yes", "No"),
			payment,
			strconv.FormatFloat(monthly, 'f', 2, 64),
			total,
			churn,
		}))
	}
	// a row with an unusable target is dropped during cleaning
	require.NoError(t, w.Write([]string{
		"9999-BAD", "Male", "0", "No", "No", "5", "Yes", "No", "DSL", "No", "No", "No", "No", "No", "No",
		"Month-to-month", "Yes", "Mailed check", "50.00", "250.00", "",
	}))
	w.Flush()
	require.NoError(t, w.Error())
	return path
}
