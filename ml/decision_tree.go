package ml

import (
	"sort"
)

const (
	defaultTreeDepth      = 6
	defaultMinSplit       = 2
	maxThresholdsPerSplit = 16
)

// DecisionTree is a binary CART classifier using gini impurity. Leaves carry
// the class frequencies of the training rows that reached them.
type DecisionTree struct {
	MaxDepth        int        `json:"max_depth"`
	MinSamplesSplit int        `json:"min_samples_split"`
	Features        int        `json:"features"`
	Nodes           []TreeNode `json:"nodes"`
	Importance      []float64  `json:"importance,omitempty"`
}

type TreeNode struct {
	FeatureIdx  int       `json:"feature_idx"`
	Threshold   float64   `json:"threshold"`
	LeftChild   int       `json:"left_child"`
	RightChild  int       `json:"right_child"`
	Probability []float64 `json:"probability"`
	Samples     int       `json:"samples"`
	IsLeaf      bool      `json:"is_leaf"`
}

func NewDecisionTree(maxDepth int) *DecisionTree {
	return &DecisionTree{MaxDepth: maxDepth}
}

func (dt *DecisionTree) Type() string { return TypeDecisionTree }

func (dt *DecisionTree) Classes() []int { return []int{NegativeClass, PositiveClass} }

func (dt *DecisionTree) NumFeatures() int { return dt.Features }

// FeatureImportance returns the normalized total gini decrease per feature.
func (dt *DecisionTree) FeatureImportance() []float64 {
	return append([]float64(nil), dt.Importance...)
}

// validate checks the layout grow produces: children sit after their parent,
// so every path from the root ends at a leaf.
func (dt *DecisionTree) validate() error {
	if len(dt.Nodes) == 0 {
		return invalidf("tree has no nodes")
	}
	for i, node := range dt.Nodes {
		if node.IsLeaf {
			if len(node.Probability) != 2 || !finite(node.Probability...) {
				return invalidf("leaf %d has probability %v", i, node.Probability)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= dt.Features {
			return invalidf("node %d splits on feature %d of %d", i, node.FeatureIdx, dt.Features)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(dt.Nodes) {
				return invalidf("node %d has child %d", i, child)
			}
		}
	}
	return nil
}

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	width, err := validateTrainingSet(features, labels)
	if err != nil {
		return err
	}
	if dt.MaxDepth <= 0 {
		dt.MaxDepth = defaultTreeDepth
	}
	if dt.MinSamplesSplit < 2 {
		dt.MinSamplesSplit = defaultMinSplit
	}

	dt.Features = width
	dt.Nodes = nil
	importance := make([]float64, width)
	rows := make([]int, len(features))
	for i := range rows {
		rows[i] = i
	}
	dt.grow(features, labels, rows, 0, importance)

	var total float64
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}
	dt.Importance = importance
	return nil
}

func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, ErrNotTrained
	}
	if err := checkWidth(features, dt.Features); err != nil {
		return nil, err
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return append([]float64(nil), node.Probability...), nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errInvalidTree
		}
		next := node.RightChild
		if features[node.FeatureIdx] <= node.Threshold {
			next = node.LeftChild
		}
		// children always follow their parent
		if next <= idx || next >= len(dt.Nodes) {
			return nil, errInvalidTree
		}
		idx = next
	}
}

// grow appends the subtree for rows and returns the index of its root.
// Child indices are absolute positions in dt.Nodes.
func (dt *DecisionTree) grow(features [][]float64, labels []int, rows []int, depth int, importance []float64) int {
	positives := countPositive(labels, rows)
	p := float64(positives) / float64(len(rows))
	at := len(dt.Nodes)
	dt.Nodes = append(dt.Nodes, TreeNode{
		FeatureIdx:  -1,
		LeftChild:   -1,
		RightChild:  -1,
		Probability: []float64{1 - p, p},
		Samples:     len(rows),
	})

	if depth >= dt.MaxDepth || len(rows) < dt.MinSamplesSplit || positives == 0 || positives == len(rows) {
		dt.Nodes[at].IsLeaf = true
		return at
	}

	feature, threshold, gain, ok := findBestSplit(features, labels, rows, positives)
	if !ok {
		dt.Nodes[at].IsLeaf = true
		return at
	}
	left, right := splitRows(features, rows, feature, threshold)
	importance[feature] += gain * float64(len(rows))

	dt.Nodes[at].FeatureIdx = feature
	dt.Nodes[at].Threshold = threshold
	leftIdx := dt.grow(features, labels, left, depth+1, importance)
	rightIdx := dt.grow(features, labels, right, depth+1, importance)
	dt.Nodes[at].LeftChild = leftIdx
	dt.Nodes[at].RightChild = rightIdx
	return at
}

func findBestSplit(features [][]float64, labels []int, rows []int, positives int) (int, float64, float64, bool) {
	n := float64(len(rows))
	parent := gini(positives, len(rows))
	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 1e-12

	values := make([]float64, len(rows))
	for featureIdx := 0; featureIdx < len(features[rows[0]]); featureIdx++ {
		for i, r := range rows {
			values[i] = features[r][featureIdx]
		}
		for _, threshold := range candidateThresholds(values) {
			var leftN, leftPos int
			for _, r := range rows {
				if features[r][featureIdx] <= threshold {
					leftN++
					if labels[r] == PositiveClass {
						leftPos++
					}
				}
			}
			rightN := len(rows) - leftN
			if leftN == 0 || rightN == 0 {
				continue
			}
			weighted := float64(leftN)/n*gini(leftPos, leftN) + float64(rightN)/n*gini(positives-leftPos, rightN)
			if gain := parent - weighted; gain > bestGain {
				bestGain = gain
				bestFeature = featureIdx
				bestThreshold = threshold
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, 0, false
	}
	return bestFeature, bestThreshold, bestGain, true
}

// candidateThresholds returns midpoints between distinct values, thinned to
// evenly spaced quantiles when a feature has many distinct values.
func candidateThresholds(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	unique := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}
	if len(unique) < 2 {
		return nil
	}
	if len(unique)-1 <= maxThresholdsPerSplit {
		out := make([]float64, 0, len(unique)-1)
		for i := 1; i < len(unique); i++ {
			out = append(out, (unique[i-1]+unique[i])/2)
		}
		return out
	}
	out := make([]float64, 0, maxThresholdsPerSplit)
	for q := 1; q <= maxThresholdsPerSplit; q++ {
		i := q * len(unique) / (maxThresholdsPerSplit + 1)
		out = append(out, (unique[i-1]+unique[i])/2)
	}
	return out
}

func splitRows(features [][]float64, rows []int, featureIdx int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, r := range rows {
		if features[r][featureIdx] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

func countPositive(labels []int, rows []int) int {
	var n int
	for _, r := range rows {
		if labels[r] == PositiveClass {
			n++
		}
	}
	return n
}

func gini(positives, total int) float64 {
	if total == 0 {
		return 0
	}
	p := float64(positives) / float64(total)
	return 1 - p*p - (1-p)*(1-p)
}
