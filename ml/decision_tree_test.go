package ml

import "testing"

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2},
		{0.2, 0.1},
		{0.9, 0.8},
		{0.8, 0.9},
	}
	labels := []int{0, 0, 1, 1}

	model := NewDecisionTree(2)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, proba, err := Predict(model, []float64{0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected label 0, got %d", label)
	}
	if proba[0] != 1 {
		t.Fatalf("expected pure leaf, got %v", proba)
	}
	label, _, err = Predict(model, []float64{0.85, 0.85})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 1 {
		t.Fatalf("expected label 1, got %d", label)
	}
}

func TestDecisionTreeNestedChildIndices(t *testing.T) {
	// label is 1 only inside the band 0.3 < x <= 0.7, which needs two levels
	var features [][]float64
	var labels []int
	for i := 0; i < 20; i++ {
		x := float64(i) / 20
		features = append(features, []float64{x})
		if x > 0.3 && x <= 0.7 {
			labels = append(labels, 1)
		} else {
			labels = append(labels, 0)
		}
	}

	model := NewDecisionTree(4)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, row := range features {
		label, _, err := Predict(model, row)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if label != labels[i] {
			t.Fatalf("row %v: expected %d, got %d", row, labels[i], label)
		}
	}
}

func TestDecisionTreeUntrained(t *testing.T) {
	model := &DecisionTree{}
	if _, err := model.PredictProba([]float64{1}); err != ErrNotTrained {
		t.Fatalf("expected ErrNotTrained, got %v", err)
	}
}

func TestDecisionTreeStopsOnBackwardChild(t *testing.T) {
	model := &DecisionTree{Features: 1, Nodes: []TreeNode{
		{FeatureIdx: 0, Threshold: 1, LeftChild: 1, RightChild: 2},
		{FeatureIdx: 0, Threshold: 1, LeftChild: 1, RightChild: 2},
		{IsLeaf: true, Probability: []float64{1, 0}},
	}}
	if _, err := model.PredictProba([]float64{0}); err != errInvalidTree {
		t.Fatalf("expected errInvalidTree, got %v", err)
	}
	if _, err := model.PredictProba([]float64{2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecisionTreeRejectsSingleClass(t *testing.T) {
	model := NewDecisionTree(3)
	err := model.Train([][]float64{{1}, {2}}, []int{0, 0})
	if err != ErrSingleClass {
		t.Fatalf("expected ErrSingleClass, got %v", err)
	}
}
