package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// DefaultSeed fixes the feature visiting order so repeated fits build the same tree.
const DefaultSeed int64 = 42

// DecisionTree is a binary CART classifier stored as a flat node slice.
// Node 0 is the root.
type DecisionTree struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Seed            int64
	Nodes           []TreeNode
}

type TreeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	ClassCounts [2]int  `json:"class_counts"`
	IsLeaf      bool    `json:"is_leaf"`
}

// NewDecisionTree returns a tree with the given depth limit (0 = unlimited).
func NewDecisionTree(maxDepth int, seed int64) *DecisionTree {
	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            seed,
	}
}

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	for _, row := range features {
		if len(row) != width {
			return errors.New("inconsistent feature width")
		}
	}
	for _, label := range labels {
		if label != 0 && label != 1 {
			return errors.New("labels must be 0 or 1")
		}
	}
	if dt.MinSamplesSplit < 2 {
		dt.MinSamplesSplit = 2
	}
	if dt.MinSamplesLeaf < 1 {
		dt.MinSamplesLeaf = 1
	}

	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	rnd := rand.New(rand.NewSource(dt.Seed))
	dt.Nodes = nil
	dt.grow(features, labels, idx, 0, rnd)
	return nil
}

// PredictProba returns [P(label 0), P(label 1)] from the reached leaf.
func (dt *DecisionTree) PredictProba(features []float64) ([2]float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return [2]float64{}, err
	}
	counts := leaf.ClassCounts
	total := float64(counts[0] + counts[1])
	if total == 0 {
		return [2]float64{}, errors.New("invalid tree state")
	}
	p1 := float64(counts[1]) / total
	return [2]float64{1 - p1, p1}, nil
}

// Predict returns the label and the probability of that label.
// Label 1 wins ties.
func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	proba, err := dt.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	if proba[1] >= proba[0] {
		return 1, proba[1], nil
	}
	return 0, proba[0], nil
}

func (dt *DecisionTree) leaf(features []float64) (TreeNode, error) {
	if len(dt.Nodes) == 0 {
		return TreeNode{}, ErrNotFitted
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(dt.Nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
}

// Depth is the length of the longest root-to-leaf path.
func (dt *DecisionTree) Depth() int {
	if len(dt.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return 0
		}
		return 1 + max(walk(node.LeftChild), walk(node.RightChild))
	}
	return walk(0)
}

// LeafCount returns the number of leaves.
func (dt *DecisionTree) LeafCount() int {
	n := 0
	for _, node := range dt.Nodes {
		if node.IsLeaf {
			n++
		}
	}
	return n
}

// Importances returns the normalized Gini importance of each of the width input columns.
func (dt *DecisionTree) Importances(width int) []float64 {
	importances := make([]float64, width)
	total := 0.0
	for _, node := range dt.Nodes {
		if node.IsLeaf || node.FeatureIdx >= width {
			continue
		}
		left := dt.Nodes[node.LeftChild].ClassCounts
		right := dt.Nodes[node.RightChild].ClassCounts
		gain := weightedImpurity(node.ClassCounts) - weightedImpurity(left) - weightedImpurity(right)
		importances[node.FeatureIdx] += gain
		total += gain
	}
	if total > 0 {
		for i := range importances {
			importances[i] /= total
		}
	}
	return importances
}

func (dt *DecisionTree) grow(features [][]float64, labels []int, idx []int, depth int, rnd *rand.Rand) int {
	counts := countLabels(labels, idx)
	index := len(dt.Nodes)
	dt.Nodes = append(dt.Nodes, TreeNode{
		FeatureIdx:  -1,
		LeftChild:   -1,
		RightChild:  -1,
		ClassCounts: counts,
		IsLeaf:      true,
	})

	if counts[0] == 0 || counts[1] == 0 ||
		len(idx) < dt.MinSamplesSplit ||
		len(idx) < 2*dt.MinSamplesLeaf ||
		(dt.MaxDepth > 0 && depth >= dt.MaxDepth) {
		return index
	}

	feature, threshold, ok := dt.findBestSplit(features, labels, idx, rnd)
	if !ok {
		return index
	}
	leftIdx, rightIdx := splitIndices(features, idx, feature, threshold)
	if len(leftIdx) == 0 || len(rightIdx) == 0 {
		return index
	}

	left := dt.grow(features, labels, leftIdx, depth+1, rnd)
	right := dt.grow(features, labels, rightIdx, depth+1, rnd)
	dt.Nodes[index].FeatureIdx = feature
	dt.Nodes[index].Threshold = threshold
	dt.Nodes[index].LeftChild = left
	dt.Nodes[index].RightChild = right
	dt.Nodes[index].IsLeaf = false
	return index
}

// findBestSplit scans every feature in a seeded random order and keeps the
// first split with the lowest weighted Gini impurity.
func (dt *DecisionTree) findBestSplit(features [][]float64, labels []int, idx []int, rnd *rand.Rand) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.Inf(1)
	total := countLabels(labels, idx)
	n := len(idx)

	sorted := make([]int, n)
	for _, featureIdx := range rnd.Perm(featureCount) {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool {
			return features[sorted[a]][featureIdx] < features[sorted[b]][featureIdx]
		})
		if features[sorted[0]][featureIdx] == features[sorted[n-1]][featureIdx] {
			continue
		}

		var left [2]int
		for k := 1; k < n; k++ {
			left[labels[sorted[k-1]]]++
			lo := features[sorted[k-1]][featureIdx]
			hi := features[sorted[k]][featureIdx]
			if lo == hi {
				continue
			}
			if k < dt.MinSamplesLeaf || n-k < dt.MinSamplesLeaf {
				continue
			}
			right := [2]int{total[0] - left[0], total[1] - left[1]}
			impurity := weightedImpurity(left) + weightedImpurity(right)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = midpoint(lo, hi)
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitIndices(features [][]float64, idx []int, featureIdx int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if features[i][featureIdx] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func countLabels(labels []int, idx []int) [2]int {
	var counts [2]int
	for _, i := range idx {
		counts[labels[i]]++
	}
	return counts
}

// weightedImpurity is n * gini, so sums over children compare directly.
func weightedImpurity(counts [2]int) float64 {
	n := float64(counts[0] + counts[1])
	if n == 0 {
		return 0
	}
	return n * gini(counts)
}

func gini(counts [2]int) float64 {
	n := float64(counts[0] + counts[1])
	if n == 0 {
		return 0
	}
	p0 := float64(counts[0]) / n
	p1 := float64(counts[1]) / n
	return 1 - p0*p0 - p1*p1
}

func midpoint(lo, hi float64) float64 {
	mid := lo + (hi-lo)/2
	if mid >= hi || math.IsInf(mid, 0) {
		return lo
	}
	return mid
}
