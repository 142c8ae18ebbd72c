package ml

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Confusion counts binary outcomes with PositiveClass as the positive label.
type Confusion struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

func (c Confusion) Total() int { return c.TN + c.FP + c.FN + c.TP }

func (c Confusion) Accuracy() float64 {
	if c.Total() == 0 {
		return 0
	}
	return float64(c.TP+c.TN) / float64(c.Total())
}

// Precision is zero when nothing was predicted positive.
func (c Confusion) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// Recall is zero when there are no positive rows.
func (c Confusion) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// Matrix returns the counts laid out as [[TN FP] [FN TP]].
func (c Confusion) Matrix() [2][2]int {
	return [2][2]int{{c.TN, c.FP}, {c.FN, c.TP}}
}

// Evaluation summarizes a model on a held-out set.
type Evaluation struct {
	Threshold float64   `json:"threshold"`
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	ROCAUC    float64   `json:"roc_auc"`
	Confusion Confusion `json:"confusion"`
}

// Metrics flattens the evaluation for persistence.
func (e Evaluation) Metrics() map[string]float64 {
	return map[string]float64{
		"accuracy":  e.Accuracy,
		"precision": e.Precision,
		"recall":    e.Recall,
		"roc_auc":   e.ROCAUC,
		"threshold": e.Threshold,
	}
}

// Scores returns the positive-class probability for every row.
func Scores(model MLModel, features [][]float64) ([]float64, error) {
	idx := ClassIndex(model, PositiveClass)
	if idx < 0 {
		return nil, errors.New("model has no positive class")
	}
	scores := make([]float64, len(features))
	for i, row := range features {
		proba, err := model.PredictProba(row)
		if err != nil {
			return nil, err
		}
		scores[i] = proba[idx]
	}
	return scores, nil
}

// ConfusionAt labels a row positive when its score is strictly above threshold.
func ConfusionAt(scores []float64, labels []int, threshold float64) Confusion {
	var c Confusion
	for i, score := range scores {
		predicted := score > threshold
		actual := labels[i] == PositiveClass
		switch {
		case predicted && actual:
			c.TP++
		case predicted && !actual:
			c.FP++
		case !predicted && actual:
			c.FN++
		default:
			c.TN++
		}
	}
	return c
}

// ROCAUC returns the area under the ROC curve of scores against labels.
func ROCAUC(scores []float64, labels []int) (float64, error) {
	if len(scores) != len(labels) {
		return 0, errors.New("scores and labels size mismatch")
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	y := make([]float64, len(scores))
	classes := make([]bool, len(scores))
	var positives int
	for i, idx := range order {
		y[i] = scores[idx]
		classes[i] = labels[idx] == PositiveClass
		if classes[i] {
			positives++
		}
	}
	if positives == 0 || positives == len(labels) {
		return 0, ErrSingleClass
	}
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// Evaluate scores model on features and computes the threshold metrics
// together with ROC-AUC.
func Evaluate(model MLModel, features [][]float64, labels []int, threshold float64) (Evaluation, error) {
	scores, err := Scores(model, features)
	if err != nil {
		return Evaluation{}, err
	}
	auc, err := ROCAUC(scores, labels)
	if err != nil {
		return Evaluation{}, err
	}
	c := ConfusionAt(scores, labels, threshold)
	return Evaluation{
		Threshold: threshold,
		Accuracy:  c.Accuracy(),
		Precision: c.Precision(),
		Recall:    c.Recall(),
		ROCAUC:    auc,
		Confusion: c,
	}, nil
}
