package ml

import (
	randomforest "github.com/malaschitz/randomForest"
)

const defaultForestTrees = 100

// RandomForest wraps a bagged forest of gini trees. Probabilities are the
// share of trees voting for each class.
type RandomForest struct {
	Trees      int                  `json:"trees"`
	Features   int                  `json:"features"`
	Importance []float64            `json:"importance,omitempty"`
	Forest     *randomforest.Forest `json:"forest"`
}

func NewRandomForest(trees int) *RandomForest {
	return &RandomForest{Trees: trees}
}

func (rf *RandomForest) Type() string { return TypeRandomForest }

func (rf *RandomForest) Classes() []int { return []int{NegativeClass, PositiveClass} }

func (rf *RandomForest) NumFeatures() int { return rf.Features }

func (rf *RandomForest) FeatureImportance() []float64 {
	return append([]float64(nil), rf.Importance...)
}

func (rf *RandomForest) validate() error {
	switch f := rf.Forest; {
	case f == nil:
		return invalidf("forest payload missing")
	case f.NTrees <= 0 || f.NTrees > len(f.Trees):
		return invalidf("forest votes over %d of %d trees", f.NTrees, len(f.Trees))
	case f.Classes != 2:
		return invalidf("forest has %d classes", f.Classes)
	}
	return nil
}

func (rf *RandomForest) Train(features [][]float64, labels []int) error {
	width, err := validateTrainingSet(features, labels)
	if err != nil {
		return err
	}
	if rf.Trees <= 0 {
		rf.Trees = defaultForestTrees
	}

	forest := &randomforest.Forest{}
	forest.Data = randomforest.ForestData{X: features, Class: labels}
	forest.Train(rf.Trees)
	rf.Importance = append([]float64(nil), forest.FeatureImportance...)

	// the training rows are not part of the persisted model
	forest.Data = randomforest.ForestData{}
	rf.Forest = forest
	rf.Features = width
	return nil
}

func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if rf.Forest == nil {
		return nil, ErrNotTrained
	}
	if err := checkWidth(features, rf.Features); err != nil {
		return nil, err
	}
	votes := rf.Forest.Vote(features)
	proba := make([]float64, 2)
	copy(proba, votes)
	if sum := proba[0] + proba[1]; sum > 0 {
		proba[0] /= sum
		proba[1] /= sum
	}
	return proba, nil
}
