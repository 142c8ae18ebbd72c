package ml

import "math/rand"

// separableData returns rows labelled 1 when x0+x1 > 1, plus a noise column.
func separableData(n int, seed int64) ([][]float64, []int) {
	rnd := rand.New(rand.NewSource(seed))
	features := make([][]float64, n)
	labels := make([]int, n)
	for i := range features {
		x0, x1 := rnd.Float64(), rnd.Float64()
		features[i] = []float64{x0 * 100, x1, rnd.Float64()}
		if x0+x1 > 1 {
			labels[i] = 1
		}
	}
	return features, labels
}
