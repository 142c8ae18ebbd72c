package monitoring

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnai/churn"
)

func TestMetricsRecordPrediction(t *testing.T) {
	m := NewMetrics()
	m.RecordPrediction(churn.Prediction{Probability: 0.1, Risk: churn.RiskLow}, false)
	m.RecordPrediction(churn.Prediction{Probability: 0.7, Risk: churn.RiskHigh}, true)
	m.RecordPrediction(churn.Prediction{Probability: 0.8, Risk: churn.RiskHigh}, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues("Low")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predictions.WithLabelValues("High")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Probability))
}

func TestMetricsReloadAndTraining(t *testing.T) {
	m := NewMetrics()
	m.RecordReload(nil)
	m.RecordReload(errors.New("missing"))
	m.RecordTraining(map[string]float64{"random_forest": 0.84, "logistic_regression": 0.81}, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reloads.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reloads.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrainingRuns.WithLabelValues("success")))
	assert.InDelta(t, 0.84, testutil.ToFloat64(m.TrainingROCAUC.WithLabelValues("random_forest")), 1e-12)
}

func TestMetricsHandlerExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveHTTP("POST", "/api/predict", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `churn_http_requests_total{method="POST",route="/api/predict",status="200"} 1`), text)
	assert.True(t, strings.Contains(text, "go_goroutines"))
}
