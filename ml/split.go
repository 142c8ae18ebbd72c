package ml

import (
	"errors"
	"math"
	"math/rand"
)

// StratifiedSplit shuffles row indices with seed and holds out testRatio of
// each class for testing.
func StratifiedSplit(labels []int, testRatio float64, seed int64) (train, test []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	for _, rows := range rowsByClass(labels) {
		rnd.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		n := int(math.Round(float64(len(rows)) * testRatio))
		test = append(test, rows[:n]...)
		train = append(train, rows[n:]...)
	}
	rnd.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rnd.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test
}

// StratifiedKFold assigns the rows of each class round-robin to k folds in
// their original order and returns the row indices of every fold.
func StratifiedKFold(labels []int, k int) ([][]int, error) {
	if k < 2 {
		return nil, errors.New("k must be at least 2")
	}
	folds := make([][]int, k)
	for _, rows := range rowsByClass(labels) {
		if len(rows) < k {
			return nil, errors.New("fewer rows than folds in a class")
		}
		for i, r := range rows {
			folds[i%k] = append(folds[i%k], r)
		}
	}
	return folds, nil
}

// CrossValidate trains a fresh model per fold and returns the ROC-AUC of each
// held-out fold.
func CrossValidate(newModel func() (MLModel, error), features [][]float64, labels []int, k int) ([]float64, error) {
	folds, err := StratifiedKFold(labels, k)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, 0, k)
	for i, fold := range folds {
		held := make(map[int]bool, len(fold))
		for _, r := range fold {
			held[r] = true
		}
		train := make([]int, 0, len(labels)-len(fold))
		for r := range labels {
			if !held[r] {
				train = append(train, r)
			}
		}

		model, err := newModel()
		if err != nil {
			return nil, err
		}
		trainX, trainY := Subset(features, labels, train)
		if err := model.Train(trainX, trainY); err != nil {
			return nil, err
		}
		testX, testY := Subset(features, labels, folds[i])
		eval, err := Evaluate(model, testX, testY, 0.5)
		if err != nil {
			return nil, err
		}
		scores = append(scores, eval.ROCAUC)
	}
	return scores, nil
}

// Subset selects rows by index. The feature rows are shared, not copied.
func Subset(features [][]float64, labels []int, rows []int) ([][]float64, []int) {
	x := make([][]float64, len(rows))
	y := make([]int, len(rows))
	for i, r := range rows {
		x[i] = features[r]
		y[i] = labels[r]
	}
	return x, y
}

func rowsByClass(labels []int) [][]int {
	var negatives, positives []int
	for i, label := range labels {
		if label == PositiveClass {
			positives = append(positives, i)
		} else {
			negatives = append(negatives, i)
		}
	}
	return [][]int{negatives, positives}
}
