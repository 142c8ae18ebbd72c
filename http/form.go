package http

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"churnai/churn"
)

//go:embed templates/*.html static/*.css
var assets embed.FS

var pageTemplate = template.Must(template.ParseFS(assets, "templates/index.html"))

// formValues 表单回显的值
type formValues struct {
	Tenure          string
	MonthlyCharges  string
	TotalCharges    string
	Contract        string
	InternetService string
	PaymentMethod   string
}

func defaultForm() formValues {
	return formValues{
		Tenure:          "12",
		MonthlyCharges:  "70",
		TotalCharges:    "1000",
		Contract:        churn.Contracts[0],
		InternetService: churn.InternetServices[0],
		PaymentMethod:   churn.PaymentMethods[0],
	}
}

type resultView struct {
	Label       string
	CSSClass    string
	Probability string
}

type pageData struct {
	Form             formValues
	Contracts        []string
	InternetServices []string
	PaymentMethods   []string
	Result           *resultView
	Error            string
}

func (h *handlers) registerForm(mux *http.ServeMux) {
	static, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /predict", h.handleFormPredict)
}

func (h *handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, newPage(defaultForm()))
}

func (h *handlers) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, withError(newPage(defaultForm()), "invalid form submission"))
		return
	}
	values := formValues{
		Tenure:          r.PostForm.Get(churn.FieldTenure),
		MonthlyCharges:  r.PostForm.Get(churn.FieldMonthlyCharges),
		TotalCharges:    r.PostForm.Get(churn.FieldTotalCharges),
		Contract:        r.PostForm.Get(churn.FieldContract),
		InternetService: r.PostForm.Get(churn.FieldInternetService),
		PaymentMethod:   r.PostForm.Get(churn.FieldPaymentMethod),
	}
	page := newPage(values)

	req, err := requestFromForm(r.PostForm.Get)
	if err != nil {
		h.render(w, http.StatusBadRequest, withError(page, err.Error()))
		return
	}
	record, err := req.Record()
	if err != nil {
		h.render(w, http.StatusBadRequest, withError(page, err.Error()))
		return
	}

	_, prediction, err := h.predict(r, record)
	if err != nil {
		message := "prediction failed"
		if errors.Is(err, churn.ErrNoPredictor) {
			message = "the model is not loaded yet"
		}
		h.render(w, statusFor(err), withError(page, message))
		return
	}
	page.Result = &resultView{
		Label:       prediction.Risk.Label(),
		CSSClass:    prediction.Risk.CSSClass(),
		Probability: formatPercent(prediction.Probability),
	}
	h.render(w, http.StatusOK, page)
}

func (h *handlers) render(w http.ResponseWriter, code int, page pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		h.logger.Error("render page", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

func newPage(values formValues) pageData {
	return pageData{
		Form:             values,
		Contracts:        churn.Contracts,
		InternetServices: churn.InternetServices,
		PaymentMethods:   churn.PaymentMethods,
	}
}

func withError(page pageData, message string) pageData {
	page.Error = message
	return page
}

// formatPercent 两位小数百分比, 如 72.35%
func formatPercent(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}
