package loss

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	nfperrors "github.com/tongwu2020/mister-ed/pkg/errors"
)

// stubTerm returns fixed scores and counts gradient resets.
type stubTerm struct {
	scores []float64
	resets int
}

func (s *stubTerm) Evaluate(_ *mat.Dense, _ []int, _ *Options) (*mat.VecDense, error) {
	return mat.NewVecDense(len(s.scores), append([]float64(nil), s.scores...)), nil
}

func (s *stubTerm) ResetGradients() { s.resets++ }

func vec(vs ...float64) *mat.VecDense {
	return mat.NewVecDense(len(vs), vs)
}

func TestNewRegularizedLossKeySetValidation(t *testing.T) {
	term := &stubTerm{scores: []float64{1}}

	tests := []struct {
		name    string
		terms   map[string]Term
		weights map[string]*Weight
		wantErr bool
	}{
		{
			name:    "matching keys",
			terms:   map[string]Term{"a": term},
			weights: map[string]*Weight{"a": ScalarWeight(1)},
		},
		{
			name:    "empty",
			terms:   map[string]Term{},
			weights: map[string]*Weight{},
			wantErr: true,
		},
		{
			name:    "missing weight",
			terms:   map[string]Term{"a": term, "b": term},
			weights: map[string]*Weight{"a": ScalarWeight(1)},
			wantErr: true,
		},
		{
			name:    "mismatched name",
			terms:   map[string]Term{"a": term},
			weights: map[string]*Weight{"b": ScalarWeight(1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegularizedLoss(tt.terms, tt.weights)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRegularizedLoss() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEvaluateLinearity(t *testing.T) {
	// Scaling one weight by k scales that term's contribution by k and
	// leaves the other term untouched.
	t1 := &stubTerm{scores: []float64{1, 2}}
	t2 := &stubTerm{scores: []float64{10, 20}}
	X := mat.NewDense(2, 1, nil)

	combinedAt := func(w1 float64) []float64 {
		rl, err := NewRegularizedLoss(
			map[string]Term{"one": t1, "two": t2},
			map[string]*Weight{"one": ScalarWeight(w1), "two": ScalarWeight(0.5)},
		)
		if err != nil {
			t.Fatal(err)
		}
		out, err := rl.Evaluate(X, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		return []float64{out.AtVec(0), out.AtVec(1)}
	}

	base := combinedAt(2.0)
	scaled := combinedAt(6.0) // w1 scaled by k=3

	for i := range base {
		t2Part := 0.5 * t2.scores[i]
		t1Base := base[i] - t2Part
		t1Scaled := scaled[i] - t2Part
		if math.Abs(t1Scaled-3*t1Base) > 1e-12 {
			t.Errorf("example %d: term-one contribution %v, want %v", i, t1Scaled, 3*t1Base)
		}
	}
}

func TestEvaluateWeightShapes(t *testing.T) {
	term := &stubTerm{scores: []float64{1, 2, 3}}
	X := mat.NewDense(3, 1, nil)

	tests := []struct {
		name    string
		weight  *Weight
		want    []float64
		wantErr bool
	}{
		{name: "scalar", weight: ScalarWeight(2), want: []float64{2, 4, 6}},
		{name: "single element broadcast", weight: PerExampleWeight(vec(3)), want: []float64{3, 6, 9}},
		{name: "matching vector", weight: PerExampleWeight(vec(1, 0, 2)), want: []float64{1, 0, 6}},
		{name: "wrong length", weight: PerExampleWeight(vec(1, 2)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, err := NewRegularizedLoss(
				map[string]Term{"t": term},
				map[string]*Weight{"t": tt.weight},
			)
			if err != nil {
				t.Fatal(err)
			}
			out, err := rl.Evaluate(X, nil, nil)
			if tt.wantErr {
				var shapeErr *nfperrors.ShapeMismatchError
				if !nfperrors.As(err, &shapeErr) {
					t.Fatalf("Evaluate() error = %v, want ShapeMismatchError", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			for i, w := range tt.want {
				if math.Abs(out.AtVec(i)-w) > 1e-12 {
					t.Errorf("out[%d] = %v, want %v", i, out.AtVec(i), w)
				}
			}
		})
	}
}

func TestCleanupBatchClearsPerExampleWeights(t *testing.T) {
	term := &stubTerm{scores: []float64{1, 2}}
	rl, err := NewRegularizedLoss(
		map[string]Term{"t": term},
		map[string]*Weight{"t": PerExampleWeight(vec(1, 1))},
	)
	if err != nil {
		t.Fatal(err)
	}
	X := mat.NewDense(2, 1, nil)

	if _, err := rl.Evaluate(X, nil, nil); err != nil {
		t.Fatal(err)
	}

	rl.CleanupBatch()
	if rl.Weight("t").IsSet() {
		t.Error("per-example weight still set after CleanupBatch")
	}
	if _, err := rl.Evaluate(X, nil, nil); err == nil {
		t.Error("Evaluate succeeded with a cleared per-example weight")
	}

	// Re-setting the weight restores evaluation.
	rl.Weight("t").SetPerExample(vec(2, 2))
	if _, err := rl.Evaluate(X, nil, nil); err != nil {
		t.Errorf("Evaluate after SetPerExample: %v", err)
	}
}

func TestCleanupBatchKeepsScalarWeights(t *testing.T) {
	term := &stubTerm{scores: []float64{1}}
	rl, err := NewRegularizedLoss(
		map[string]Term{"t": term},
		map[string]*Weight{"t": ScalarWeight(4)},
	)
	if err != nil {
		t.Fatal(err)
	}

	rl.CleanupBatch()
	out, err := rl.Evaluate(mat.NewDense(1, 1, nil), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.AtVec(0); got != 4 {
		t.Errorf("out = %v, want 4", got)
	}
}

func TestSetupAndCleanupDispatchByTermKind(t *testing.T) {
	plain := &stubTerm{scores: []float64{1, 1}}
	ref := NewL2Regularization()
	rl, err := NewRegularizedLoss(
		map[string]Term{"plain": plain, "ref": ref},
		map[string]*Weight{"plain": ScalarWeight(1), "ref": ScalarWeight(1)},
	)
	if err != nil {
		t.Fatal(err)
	}

	X := mat.NewDense(2, 2, []float64{0, 0, 1, 1})
	rl.SetupBatch(X)
	if plain.resets != 1 {
		t.Errorf("plain term resets = %d after SetupBatch, want 1", plain.resets)
	}
	if _, err := ref.Evaluate(X, nil, nil); err != nil {
		t.Errorf("reference term not set up: %v", err)
	}

	rl.CleanupBatch()
	if plain.resets != 2 {
		t.Errorf("plain term resets = %d after CleanupBatch, want 2", plain.resets)
	}
	var stale *nfperrors.StaleReferenceError
	if _, err := ref.Evaluate(X, nil, nil); !nfperrors.As(err, &stale) {
		t.Errorf("reference term still set after CleanupBatch: %v", err)
	}

	rl.ResetGradients()
	if plain.resets != 3 {
		t.Errorf("plain term resets = %d after ResetGradients, want 3", plain.resets)
	}
}
