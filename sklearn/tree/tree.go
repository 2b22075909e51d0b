// Package tree implements CART regression trees grown by variance reduction.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropyield/core/model"
	"github.com/YuminosukeSato/cropyield/metrics"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
)

// Node is a tree node. Internal nodes route x[Feature] <= Threshold to Left.
// Leaves have nil children and predict Value, the mean target of the training
// samples that reached them.
type Node struct {
	Feature   int
	Threshold float64
	Value     float64
	Samples   int
	Impurity  float64 // mean squared deviation of the node's targets
	Left      *Node
	Right     *Node
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return n.Left == nil }

// Data is a column-major training set. It is read-only once built and may be
// shared by many trees.
type Data struct {
	Columns [][]float64 // Columns[j][i] is feature j of sample i
	Target  []float64
}

// NewData validates (X, y) and copies it into column-major form. y must be n×1.
func NewData(op string, X, y mat.Matrix) (*Data, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError(op, "empty training set", errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yr != r {
		return nil, errors.NewDimensionError(op, r, yr, 0)
	}
	if yc != 1 {
		return nil, errors.NewDimensionError(op, 1, yc, 1)
	}
	if err := errors.CheckMatrix(op, X, r, c); err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix(op, y, r, 1); err != nil {
		return nil, err
	}
	d := &Data{Columns: make([][]float64, c), Target: model.Column(y, 0)}
	for j := 0; j < c; j++ {
		d.Columns[j] = model.Column(X, j)
	}
	return d, nil
}

// NSamples returns the number of rows.
func (d *Data) NSamples() int { return len(d.Target) }

// NFeatures returns the number of columns.
func (d *Data) NFeatures() int { return len(d.Columns) }

// DecisionTreeRegressor is a single regression tree.
type DecisionTreeRegressor struct {
	State *model.StateManager
	Root  *Node

	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // features tried per split; 0 means all
	RandomState     uint64

	NFeatures   int
	Importances []float64 // normalized SSE reduction per feature
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits tree depth; 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) { t.MaxDepth = depth }
}

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesLeaf = n }
}

// WithMaxFeatures sets how many randomly chosen features each split considers.
func WithMaxFeatures(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MaxFeatures = n }
}

// WithRandomState seeds feature sampling for Fit.
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTreeRegressor) { t.RandomState = seed }
}

// NewDecisionTreeRegressor returns an unfitted tree. Defaults: unlimited depth,
// MinSamplesSplit 2, MinSamplesLeaf 1, all features per split.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		State:           model.NewStateManager(),
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *DecisionTreeRegressor) validate() error {
	switch {
	case t.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", t.MaxDepth)
	case t.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", t.MinSamplesSplit)
	case t.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", t.MinSamplesLeaf)
	case t.MaxFeatures < 0:
		return errors.NewValidationError("max_features", "must be >= 0", t.MaxFeatures)
	}
	return nil
}

// Fit grows the tree on all rows of (X, y).
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	d, err := NewData("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	sample := make([]int, d.NSamples())
	for i := range sample {
		sample[i] = i
	}
	return t.FitSample(d, sample, rand.New(rand.NewPCG(t.RandomState, 0)))
}

// FitSample grows the tree on the rows of d listed in sample (repeats allowed,
// as in a bootstrap draw). rng drives feature subsampling.
func (t *DecisionTreeRegressor) FitSample(d *Data, sample []int, rng *rand.Rand) error {
	if err := t.validate(); err != nil {
		return err
	}
	if err := t.State.RequireUnfitted("DecisionTreeRegressor.Fit"); err != nil {
		return err
	}
	if len(sample) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty training set", errors.ErrEmptyData)
	}

	p := d.NFeatures()
	k := t.MaxFeatures
	if k == 0 || k > p {
		k = p
	}
	b := &builder{
		d:           d,
		rng:         rng,
		maxFeatures: k,
		maxDepth:    t.MaxDepth,
		minSplit:    max(t.MinSamplesSplit, 2*t.MinSamplesLeaf),
		minLeaf:     t.MinSamplesLeaf,
		features:    make([]int, p),
		importances: make([]float64, p),
	}
	for j := range b.features {
		b.features[j] = j
	}
	idx := append([]int(nil), sample...)
	root := b.build(idx, 0)

	total := 0.0
	for _, v := range b.importances {
		total += v
	}
	for j := range b.importances {
		b.importances[j] = errors.SafeDivide(b.importances[j], total)
	}

	t.Root = root
	t.NFeatures = p
	t.Importances = b.importances
	return t.State.MarkFitted("DecisionTreeRegressor.Fit", p, len(sample))
}

// PredictRow returns the leaf value reached by x. x must have NFeatures values.
func (t *DecisionTreeRegressor) PredictRow(x []float64) float64 {
	n := t.Root
	for !n.IsLeaf() {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// Predict returns an n×1 matrix of predictions.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if c != t.NFeatures {
		return nil, errors.NewDimensionError("DecisionTreeRegressor.Predict", t.NFeatures, c, 1)
	}
	out := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out[i] = t.PredictRow(row)
	}
	return model.NewMatrix(r, 1, out), nil
}

// Score returns R² of the predictions on X against y.
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *DecisionTreeRegressor) Depth() int {
	if t.Root == nil {
		return 0
	}
	var walk func(*Node) int
	walk = func(n *Node) int {
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(t.Root)
}

// NLeaves returns the number of leaves.
func (t *DecisionTreeRegressor) NLeaves() int {
	if t.Root == nil {
		return 0
	}
	var walk func(*Node) int
	walk = func(n *Node) int {
		if n.IsLeaf() {
			return 1
		}
		return walk(n.Left) + walk(n.Right)
	}
	return walk(t.Root)
}

// GetParams returns the tree's hyperparameters.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         t.MaxDepth,
		"min_samples_split": t.MinSamplesSplit,
		"min_samples_leaf":  t.MinSamplesLeaf,
		"max_features":      t.MaxFeatures,
		"random_state":      t.RandomState,
	}
}

func (t *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, min_samples_leaf=%d, leaves=%d)", t.MaxDepth, t.MinSamplesLeaf, t.NLeaves())
}

type builder struct {
	d           *Data
	rng         *rand.Rand
	maxFeatures int
	maxDepth    int
	minSplit    int
	minLeaf     int
	features    []int
	importances []float64
}

type split struct {
	feature   int
	threshold float64
	sse       float64
	ok        bool
}

func (b *builder) build(idx []int, depth int) *Node {
	y := b.d.Target
	n := len(idx)
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += y[i]
		sumSq += y[i] * y[i]
	}
	sse := math.Max(sumSq-sum*sum/float64(n), 0)
	node := &Node{Feature: -1, Value: sum / float64(n), Samples: n, Impurity: sse / float64(n)}

	if (b.maxDepth > 0 && depth >= b.maxDepth) || n < b.minSplit || sse == 0 {
		return node
	}
	best := b.bestSplit(idx, sum, sumSq)
	if !best.ok || sse-best.sse <= 1e-12*math.Max(1, sse) {
		return node
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	col := b.d.Columns[best.feature]
	for _, i := range idx {
		if col[i] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importances[best.feature] += sse - best.sse

	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = b.build(left, depth+1)
	node.Right = b.build(right, depth+1)
	return node
}

// bestSplit visits features in a random order and returns the split
// minimizing the children's summed SSE. It stops after maxFeatures features,
// or later if none of those could be split (constant within the node, or
// every cut violating minLeaf).
func (b *builder) bestSplit(idx []int, sum, sumSq float64) split {
	b.rng.Shuffle(len(b.features), func(i, j int) {
		b.features[i], b.features[j] = b.features[j], b.features[i]
	})

	y := b.d.Target
	n := len(idx)
	order := make([]int, n)
	best := split{sse: math.Inf(1)}
	visited := 0
	for _, f := range b.features {
		if visited >= b.maxFeatures && best.ok {
			break
		}
		visited++
		col := b.d.Columns[f]
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool {
			va, vc := col[order[a]], col[order[c]]
			if va != vc {
				return va < vc
			}
			return order[a] < order[c]
		})

		leftSum, leftSq := 0.0, 0.0
		for k := 0; k < n-1; k++ {
			v := y[order[k]]
			leftSum += v
			leftSq += v * v
			nl := k + 1
			nr := n - nl
			cur, next := col[order[k]], col[order[k+1]]
			if cur == next || nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			rightSum := sum - leftSum
			total := math.Max(leftSq-leftSum*leftSum/float64(nl), 0) +
				math.Max((sumSq-leftSq)-rightSum*rightSum/float64(nr), 0)
			if total < best.sse {
				threshold := cur + (next-cur)/2
				if threshold >= next {
					threshold = cur
				}
				best = split{feature: f, threshold: threshold, sse: total, ok: true}
			}
		}
	}
	return best
}
