package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"churnai/churn"
	"churnai/db"
	"churnai/monitoring"
)

type handlers struct {
	service *churn.Service
	store   *db.Store
	hub     *monitoring.WebSocketHub
	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func newHandlers(deps Deps) *handlers {
	return &handlers{
		service: deps.Service,
		store:   deps.Store,
		hub:     deps.Hub,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		now:     time.Now,
	}
}

// registerAPI 注册JSON API
func (h *handlers) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/model", h.handleModel)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/predictions", h.handlePredictions)
	mux.HandleFunc("GET /api/training/log", h.handleTrainingLog)
}

// PredictResponse /api/predict响应
type PredictResponse struct {
	PredictionID string         `json:"prediction_id"`
	Label        int            `json:"label"`
	Churn        bool           `json:"churn"`
	Probability  float64        `json:"churn_probability"`
	Risk         churn.RiskTier `json:"risk"`
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{"status": "ok", "model_loaded": true}
	code := http.StatusOK
	if h.service.Predictor() == nil {
		status["status"] = "no_model"
		status["model_loaded"] = false
		code = http.StatusServiceUnavailable
	}
	if h.hub != nil {
		status["feed_clients"] = h.hub.ClientCount()
	}
	respondJSONStatus(w, code, status)
}

func (h *handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	p := h.service.Predictor()
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, churn.ErrNoPredictor.Error())
		return
	}
	respondJSON(w, struct {
		churn.ModelInfo
		FeatureColumns []string `json:"feature_columns"`
	}{p.Info(), p.Columns()})
}

func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	record, err := req.Record()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, prediction, err := h.predict(r, record)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, PredictResponse{
		PredictionID: id,
		Label:        prediction.Label,
		Churn:        prediction.Churn,
		Probability:  prediction.Probability,
		Risk:         prediction.Risk,
	})
}

func (h *handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 20, 500)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction history is disabled")
		return
	}
	rows, err := h.store.RecentPredictions(limit)
	if err != nil {
		h.logger.Error("load prediction history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load predictions")
		return
	}
	respondJSON(w, map[string]interface{}{"predictions": rows, "count": len(rows)})
}

func (h *handlers) handleTrainingLog(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, 50, 1000)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "training log is disabled")
		return
	}
	logs, err := h.store.LoadTrainingLog(limit)
	if err != nil {
		h.logger.Error("load training log", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load training log")
		return
	}
	respondJSON(w, map[string]interface{}{"runs": logs, "count": len(logs)})
}

// predict 预测并记录指标、历史与推送
func (h *handlers) predict(r *http.Request, record churn.Record) (string, churn.Prediction, error) {
	prediction, cached, err := h.service.Predict(record)
	if err != nil {
		return "", churn.Prediction{}, err
	}
	id := uuid.NewString()
	modelType := ""
	if p := h.service.Predictor(); p != nil {
		modelType = p.Info().ModelType
	}

	h.logger.Debug("prediction",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("prediction_id", id),
		zap.Stringer("record", record),
		zap.Float64("churn_probability", prediction.Probability),
		zap.Stringer("risk", prediction.Risk),
		zap.Bool("cached", cached))

	if h.metrics != nil {
		h.metrics.RecordPrediction(prediction, cached)
	}
	if h.store != nil {
		row := db.PredictionRow{
			ID:         id,
			Record:     record,
			Prediction: prediction,
			ModelType:  modelType,
			CreatedAt:  h.now(),
		}
		if err := h.store.SavePrediction(row); err != nil {
			h.logger.Warn("prediction not saved", zap.String("prediction_id", id), zap.Error(err))
		}
	}
	if h.hub != nil {
		if err := h.hub.Publish(monitoring.PredictionEvent, monitoring.PredictionMessage{
			PredictionID: id,
			Record:       record,
			Prediction:   prediction,
			ModelType:    modelType,
		}); err != nil {
			h.logger.Warn("prediction not published", zap.Error(err))
		}
	}
	return id, prediction, nil
}

func statusFor(err error) int {
	if errors.Is(err, churn.ErrNoPredictor) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func queryLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > max {
		limit = max
	}
	return limit, nil
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondJSONStatus(w, http.StatusOK, data)
}

func respondJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	respondJSONStatus(w, code, map[string]string{"error": message})
}
