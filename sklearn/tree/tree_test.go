package tree

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cropyield/core/model"
	"github.com/YuminosukeSato/cropyield/pkg/errors"
)

var (
	_ model.Regressor       = (*DecisionTreeRegressor)(nil)
	_ model.ParameterGetter = (*DecisionTreeRegressor)(nil)
)

// TestDecisionTreeRegressor_StepFunction fits a piecewise-constant target exactly
func TestDecisionTreeRegressor_StepFunction(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	y := mat.NewDense(8, 1, []float64{10, 10, 10, 10, 30, 30, 30, 30})

	dt := NewDecisionTreeRegressor(WithMaxDepth(3))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	if dt.Root.Feature != 0 || dt.Root.Threshold != 4.5 {
		t.Errorf("root split = (%d, %v), want (0, 4.5)", dt.Root.Feature, dt.Root.Threshold)
	}
	if dt.NLeaves() != 2 {
		t.Errorf("pure children should not split further, got %d leaves", dt.NLeaves())
	}

	pred, err := dt.Predict(mat.NewDense(3, 1, []float64{0, 4.4, 100}))
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i, want := range []float64{10, 10, 30} {
		if got := pred.At(i, 0); got != want {
			t.Errorf("prediction %d = %v, want %v", i, got, want)
		}
	}

	score, err := dt.Score(X, y)
	if err != nil || score != 1 {
		t.Errorf("Score() = %v, %v; want 1", score, err)
	}
}

// TestDecisionTreeRegressor_PicksInformativeFeature checks the SSE criterion
func TestDecisionTreeRegressor_PicksInformativeFeature(t *testing.T) {
	n := 40
	data := make([]float64, 0, n*2)
	target := make([]float64, n)
	for i := 0; i < n; i++ {
		noise := float64((i * 7) % 5)
		signal := float64(i)
		data = append(data, noise, signal)
		target[i] = 2 * signal
	}
	dt := NewDecisionTreeRegressor(WithMaxDepth(1))
	if err := dt.Fit(mat.NewDense(n, 2, data), mat.NewDense(n, 1, target)); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if dt.Root.Feature != 1 {
		t.Errorf("root feature = %d, want 1", dt.Root.Feature)
	}
	if dt.Importances[1] != 1 || dt.Importances[0] != 0 {
		t.Errorf("Importances = %v, want [0 1]", dt.Importances)
	}
}

// TestDecisionTreeRegressor_MaxDepth limits the longest path
func TestDecisionTreeRegressor_MaxDepth(t *testing.T) {
	n := 64
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, math.Sin(float64(i)))
	}
	for _, depth := range []int{1, 2, 4} {
		dt := NewDecisionTreeRegressor(WithMaxDepth(depth))
		if err := dt.Fit(X, y); err != nil {
			t.Fatalf("Fit() error = %v", err)
		}
		if dt.Depth() > depth {
			t.Errorf("Depth() = %d exceeds max depth %d", dt.Depth(), depth)
		}
	}
}

// TestDecisionTreeRegressor_MinSamplesLeaf checks every leaf is large enough
func TestDecisionTreeRegressor_MinSamplesLeaf(t *testing.T) {
	n := 50
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i*i%17))
	}
	dt := NewDecisionTreeRegressor(WithMinSamplesLeaf(5))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	var walk func(*Node)
	walk = func(node *Node) {
		if node.IsLeaf() {
			if node.Samples < 5 {
				t.Errorf("leaf with %d samples, want >= 5", node.Samples)
			}
			return
		}
		walk(node.Left)
		walk(node.Right)
	}
	walk(dt.Root)
}

// TestDecisionTreeRegressor_LeafMean checks leaf values are target means
func TestDecisionTreeRegressor_LeafMean(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 6})
	dt := NewDecisionTreeRegressor()
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if !dt.Root.IsLeaf() {
		t.Fatal("a constant feature cannot be split")
	}
	if dt.Root.Value != 3 {
		t.Errorf("leaf value = %v, want 3", dt.Root.Value)
	}
}

// TestDecisionTreeRegressor_FitSampleWithRepeats grows on a bootstrap-like sample
func TestDecisionTreeRegressor_FitSampleWithRepeats(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{0, 0, 8, 8})
	d, err := NewData("test", X, y)
	if err != nil {
		t.Fatalf("NewData() error = %v", err)
	}
	dt := NewDecisionTreeRegressor(WithMaxDepth(0))
	if err := dt.FitSample(d, []int{0, 0, 0, 3}, rand.New(rand.NewPCG(1, 2))); err != nil {
		t.Fatalf("FitSample() error = %v", err)
	}
	if dt.Root.Samples != 4 {
		t.Errorf("root samples = %d, want 4", dt.Root.Samples)
	}
	if got := dt.PredictRow([]float64{3.5}); got != 8 {
		t.Errorf("PredictRow(3.5) = %v, want 8", got)
	}
}

// TestDecisionTreeRegressor_Errors covers the typed failures
func TestDecisionTreeRegressor_Errors(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	if _, err := dt.Predict(mat.NewDense(1, 1, nil)); err == nil {
		t.Error("Predict before Fit should fail")
	} else {
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFittedError, got %v", err)
		}
	}

	tests := []struct {
		name string
		tree *DecisionTreeRegressor
		X, y mat.Matrix
	}{
		{"row mismatch", NewDecisionTreeRegressor(), mat.NewDense(3, 1, nil), mat.NewDense(2, 1, nil)},
		{"multi-output", NewDecisionTreeRegressor(), mat.NewDense(2, 1, nil), mat.NewDense(2, 2, nil)},
		{"nan input", NewDecisionTreeRegressor(), mat.NewDense(2, 1, []float64{1, math.NaN()}), mat.NewDense(2, 1, nil)},
		{"bad min leaf", NewDecisionTreeRegressor(WithMinSamplesLeaf(0)), mat.NewDense(2, 1, nil), mat.NewDense(2, 1, nil)},
		{"bad depth", NewDecisionTreeRegressor(WithMaxDepth(-1)), mat.NewDense(2, 1, nil), mat.NewDense(2, 1, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tree.Fit(tt.X, tt.y); err == nil {
				t.Error("Fit() should fail")
			}
			if tt.tree.State.IsFitted() {
				t.Error("failed Fit must leave the tree unfitted")
			}
		})
	}

	fitted := NewDecisionTreeRegressor()
	if err := fitted.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4}), mat.NewDense(2, 1, []float64{1, 2})); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if _, err := fitted.Predict(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("Predict with the wrong width should fail")
	}
	empty, err := fitted.Predict(emptyRows{})
	if err != nil {
		t.Fatalf("Predict(0 rows) error = %v", err)
	}
	if r, c := empty.Dims(); r != 0 || c != 1 {
		t.Errorf("Predict(0 rows) dims = %d×%d, want 0×1", r, c)
	}
}

type emptyRows struct{}

func (emptyRows) Dims() (int, int)    { return 0, 2 }
func (emptyRows) At(int, int) float64 { panic("empty") }
func (e emptyRows) T() mat.Matrix     { return mat.Transpose{Matrix: e} }
