package ml

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Default boosting parameters used for trained models.
const (
	DefaultEstimators   = 120
	DefaultMaxDepth     = 5
	DefaultLearningRate = 0.1
	DefaultLambda       = 1.0
)

// Node is a regression tree node. Leaf nodes only carry Value.
type Node struct {
	Leaf      bool
	Value     float64
	Feature   int
	Threshold float64
	Left      *Node
	Right     *Node
}

func (n *Node) predict(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] < n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// GradientBoostedRegressor fits an additive ensemble of depth limited
// regression trees on squared error residuals. Leaf weights are shrunk by
// Lambda as sum(residual) / (count + Lambda).
type GradientBoostedRegressor struct {
	NEstimators  int
	MaxDepth     int
	LearningRate float64
	Lambda       float64

	BaseScore float64
	Trees     []*Node
}

// NewGradientBoostedRegressor returns a regressor with the default parameters.
func NewGradientBoostedRegressor() *GradientBoostedRegressor {
	return &GradientBoostedRegressor{
		NEstimators:  DefaultEstimators,
		MaxDepth:     DefaultMaxDepth,
		LearningRate: DefaultLearningRate,
		Lambda:       DefaultLambda,
	}
}

func (g *GradientBoostedRegressor) Fit(X mat.Matrix, y []float64) error {
	n, c, err := checkXY(X, y)
	if err != nil {
		return err
	}
	if g.NEstimators < 1 || g.MaxDepth < 1 || g.LearningRate <= 0 || g.Lambda < 0 {
		return errors.New("invalid boosting parameters")
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, c)
		mat.Row(rows[i], i, X)
	}

	g.BaseScore = floats.Sum(y) / float64(n)
	g.Trees = make([]*Node, 0, g.NEstimators)

	pred := make([]float64, n)
	floats.AddConst(g.BaseScore, pred)
	resid := make([]float64, n)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	b := &treeBuilder{rows: rows, resid: resid, lambda: g.Lambda, maxDepth: g.MaxDepth}
	for m := 0; m < g.NEstimators; m++ {
		floats.SubTo(resid, y, pred)
		tree := b.build(idx, 0)
		g.Trees = append(g.Trees, tree)
		for i, r := range rows {
			pred[i] += g.LearningRate * tree.predict(r)
		}
	}
	for _, p := range pred {
		if !finite(p) {
			return fmt.Errorf("%w: boosting diverged", ErrNonFinite)
		}
	}
	return nil
}

// Validate checks that every tree can be walked with rows of numFeatures
// values: split nodes need both children and an in-range feature index.
func (g *GradientBoostedRegressor) Validate(numFeatures int) error {
	if !finite(g.BaseScore) || !finite(g.LearningRate) {
		return fmt.Errorf("%w: boosting parameters", ErrNonFinite)
	}
	for i, t := range g.Trees {
		if err := t.validate(numFeatures, 0); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (n *Node) validate(numFeatures, depth int) error {
	if n == nil {
		return ErrMalformedTree
	}
	if n.Leaf {
		if !finite(n.Value) {
			return fmt.Errorf("%w: leaf value at depth %d", ErrNonFinite, depth)
		}
		return nil
	}
	if n.Feature < 0 || n.Feature >= numFeatures {
		return fmt.Errorf("%w: split on feature %d of %d at depth %d", ErrMalformedTree, n.Feature, numFeatures, depth)
	}
	if n.Left == nil || n.Right == nil {
		return fmt.Errorf("%w: split node without both children at depth %d", ErrMalformedTree, depth)
	}
	if err := n.Left.validate(numFeatures, depth+1); err != nil {
		return err
	}
	return n.Right.validate(numFeatures, depth+1)
}

func (g *GradientBoostedRegressor) Predict(x []float64) float64 {
	out := g.BaseScore
	for _, t := range g.Trees {
		out += g.LearningRate * t.predict(x)
	}
	return out
}

type treeBuilder struct {
	rows     [][]float64
	resid    []float64
	lambda   float64
	maxDepth int
}

func (b *treeBuilder) leaf(idx []int) *Node {
	var sum float64
	for _, i := range idx {
		sum += b.resid[i]
	}
	return &Node{Leaf: true, Value: sum / (float64(len(idx)) + b.lambda)}
}

func (b *treeBuilder) score(sum float64, count int) float64 {
	return sum * sum / (float64(count) + b.lambda)
}

func (b *treeBuilder) build(idx []int, depth int) *Node {
	if depth >= b.maxDepth || len(idx) < 2 {
		return b.leaf(idx)
	}

	var total float64
	for _, i := range idx {
		total += b.resid[i]
	}
	parent := b.score(total, len(idx))

	bestGain := 1e-12
	bestFeature := -1
	var bestThreshold float64

	sorted := make([]int, len(idx))
	for f := range b.rows[idx[0]] {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.rows[sorted[a]][f] < b.rows[sorted[c]][f]
		})
		var left float64
		for k := 0; k < len(sorted)-1; k++ {
			left += b.resid[sorted[k]]
			lo, hi := b.rows[sorted[k]][f], b.rows[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl := k + 1
			gain := b.score(left, nl) + b.score(total-left, len(sorted)-nl) - parent
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}
	if bestFeature < 0 {
		return b.leaf(idx)
	}

	var l, r []int
	for _, i := range idx {
		if b.rows[i][bestFeature] < bestThreshold {
			l = append(l, i)
		} else {
			r = append(r, i)
		}
	}
	return &Node{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      b.build(l, depth+1),
		Right:     b.build(r, depth+1),
	}
}
