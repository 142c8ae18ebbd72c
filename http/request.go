package http

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"churnai/churn"
)

// 表单允许的取值范围
const (
	MaxTenure = 72
)

var (
	maxMonthlyCharges = decimal.NewFromInt(200)
	maxTotalCharges   = decimal.NewFromInt(10000)
)

// PredictRequest /api/predict请求体
type PredictRequest struct {
	Tenure          *int             `json:"tenure"`
	MonthlyCharges  *decimal.Decimal `json:"MonthlyCharges"`
	TotalCharges    *decimal.Decimal `json:"TotalCharges"`
	Contract        string           `json:"Contract"`
	InternetService string           `json:"InternetService"`
	PaymentMethod   string           `json:"PaymentMethod"`
}

// ValidationError 输入不合法
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Record 校验并转换为churn.Record; 金额四舍五入到分
func (req PredictRequest) Record() (churn.Record, error) {
	if req.Tenure == nil {
		return churn.Record{}, &ValidationError{Field: churn.FieldTenure, Message: "is required"}
	}
	if req.MonthlyCharges == nil {
		return churn.Record{}, &ValidationError{Field: churn.FieldMonthlyCharges, Message: "is required"}
	}
	if req.TotalCharges == nil {
		return churn.Record{}, &ValidationError{Field: churn.FieldTotalCharges, Message: "is required"}
	}
	if *req.Tenure < 0 || *req.Tenure > MaxTenure {
		return churn.Record{}, &ValidationError{Field: churn.FieldTenure, Message: fmt.Sprintf("must be between 0 and %d", MaxTenure)}
	}
	monthly, err := money(churn.FieldMonthlyCharges, *req.MonthlyCharges, maxMonthlyCharges)
	if err != nil {
		return churn.Record{}, err
	}
	total, err := money(churn.FieldTotalCharges, *req.TotalCharges, maxTotalCharges)
	if err != nil {
		return churn.Record{}, err
	}
	for field, value := range map[string]string{
		churn.FieldContract:        req.Contract,
		churn.FieldInternetService: req.InternetService,
		churn.FieldPaymentMethod:   req.PaymentMethod,
	} {
		if strings.TrimSpace(value) == "" {
			return churn.Record{}, &ValidationError{Field: field, Message: "is required"}
		}
	}
	return churn.Record{
		Tenure:          *req.Tenure,
		MonthlyCharges:  monthly,
		TotalCharges:    total,
		Contract:        strings.TrimSpace(req.Contract),
		InternetService: strings.TrimSpace(req.InternetService),
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
	}, nil
}

func money(field string, value, max decimal.Decimal) (float64, error) {
	if value.IsNegative() || value.GreaterThan(max) {
		return 0, &ValidationError{Field: field, Message: "must be between 0 and " + max.String()}
	}
	return value.Round(2).InexactFloat64(), nil
}

// requestFromForm 解析表单字段; 数值字段不能为空
func requestFromForm(get func(string) string) (PredictRequest, error) {
	var req PredictRequest
	tenure, err := strconv.Atoi(strings.TrimSpace(get(churn.FieldTenure)))
	if err != nil {
		return req, &ValidationError{Field: churn.FieldTenure, Message: "must be a whole number"}
	}
	monthly, err := decimal.NewFromString(strings.TrimSpace(get(churn.FieldMonthlyCharges)))
	if err != nil {
		return req, &ValidationError{Field: churn.FieldMonthlyCharges, Message: "must be a number"}
	}
	total, err := decimal.NewFromString(strings.TrimSpace(get(churn.FieldTotalCharges)))
	if err != nil {
		return req, &ValidationError{Field: churn.FieldTotalCharges, Message: "must be a number"}
	}
	req.Tenure = &tenure
	req.MonthlyCharges = &monthly
	req.TotalCharges = &total
	req.Contract = get(churn.FieldContract)
	req.InternetService = get(churn.FieldInternetService)
	req.PaymentMethod = get(churn.FieldPaymentMethod)
	return req, nil
}
