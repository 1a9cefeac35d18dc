package loss

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// Weight is either a scalar constant or a per-example vector. Per-example
// weights are batch-specific: CleanupBatch clears them to unset so they
// cannot leak into the next batch.
type Weight struct {
	scalar     float64
	perExample *mat.VecDense
	isScalar   bool
	set        bool
}

// ScalarWeight creates a constant weight.
func ScalarWeight(v float64) *Weight {
	return &Weight{scalar: v, isScalar: true, set: true}
}

// PerExampleWeight creates a weight vector. A length-1 vector broadcasts;
// otherwise the length must match the term's output.
func PerExampleWeight(v *mat.VecDense) *Weight {
	return &Weight{perExample: v, set: true}
}

// IsSet reports whether the weight currently holds a value.
func (w *Weight) IsSet() bool { return w.set }

// SetPerExample installs a fresh per-example vector, typically in a
// per-batch setup step after a previous CleanupBatch unset it.
func (w *Weight) SetPerExample(v *mat.VecDense) {
	w.perExample = v
	w.isScalar = false
	w.set = true
}

// apply returns scores scaled by the weight.
func (w *Weight) apply(name string, scores *mat.VecDense) (*mat.VecDense, error) {
	if !w.set {
		return nil, errors.NewConfigurationError("RegularizedLoss.Evaluate",
			"weight was cleared by CleanupBatch and not re-set", name)
	}

	n := scores.Len()
	out := mat.NewVecDense(n, nil)
	switch {
	case w.isScalar:
		for i := 0; i < n; i++ {
			out.SetVec(i, scores.AtVec(i)*w.scalar)
		}
	case w.perExample.Len() == 1:
		s := w.perExample.AtVec(0)
		for i := 0; i < n; i++ {
			out.SetVec(i, scores.AtVec(i)*s)
		}
	case w.perExample.Len() == n:
		for i := 0; i < n; i++ {
			out.SetVec(i, scores.AtVec(i)*w.perExample.AtVec(i))
		}
	default:
		return nil, errors.NewShapeMismatchError("RegularizedLoss.Evaluate",
			[]int{n}, []int{w.perExample.Len()})
	}
	return out, nil
}

// RegularizedLoss combines named terms with weights into one per-example
// objective. The term and weight key sets must be identical.
type RegularizedLoss struct {
	names   []string
	terms   map[string]Term
	weights map[string]*Weight
}

// NewRegularizedLoss validates the key sets and returns the composed loss.
func NewRegularizedLoss(terms map[string]Term, weights map[string]*Weight) (*RegularizedLoss, error) {
	if len(terms) == 0 {
		return nil, errors.NewConfigurationError("NewRegularizedLoss", "term set must not be empty", nil)
	}
	if len(terms) != len(weights) {
		return nil, errors.NewConfigurationError("NewRegularizedLoss",
			"term and weight key sets differ", []int{len(terms), len(weights)})
	}

	names := make([]string, 0, len(terms))
	for name := range terms {
		if _, ok := weights[name]; !ok {
			return nil, errors.NewConfigurationError("NewRegularizedLoss",
				"term has no matching weight", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return &RegularizedLoss{names: names, terms: terms, weights: weights}, nil
}

// Weight returns the weight registered under name, or nil.
func (rl *RegularizedLoss) Weight(name string) *Weight {
	return rl.weights[name]
}

// Evaluate computes the weighted sum of every term's per-example score.
func (rl *RegularizedLoss) Evaluate(examples *mat.Dense, labels []int, opts *Options) (*mat.VecDense, error) {
	var combined *mat.VecDense
	for _, name := range rl.names {
		scores, err := rl.terms[name].Evaluate(examples, labels, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating term %q", name)
		}
		weighted, err := rl.weights[name].apply(name, scores)
		if err != nil {
			return nil, err
		}

		if combined == nil {
			combined = weighted
			continue
		}
		if combined.Len() != weighted.Len() {
			return nil, errors.NewShapeMismatchError("RegularizedLoss.Evaluate",
				[]int{combined.Len()}, []int{weighted.Len()})
		}
		combined.AddVec(combined, weighted)
	}
	return combined, nil
}

// SetupBatch prepares all terms for a new minibatch: reference terms receive
// the fixed image, every other term has its gradients reset.
func (rl *RegularizedLoss) SetupBatch(fixedImage *mat.Dense) {
	for _, name := range rl.names {
		if ref, ok := rl.terms[name].(ReferenceTerm); ok {
			ref.SetupBatch(fixedImage)
		} else {
			rl.terms[name].ResetGradients()
		}
	}
}

// CleanupBatch releases all batch-scoped state: reference terms clear their
// fixed image, gradients are reset, and every non-scalar weight is cleared
// to unset.
func (rl *RegularizedLoss) CleanupBatch() {
	for _, name := range rl.names {
		if ref, ok := rl.terms[name].(ReferenceTerm); ok {
			ref.CleanupBatch()
		} else {
			rl.terms[name].ResetGradients()
		}
	}
	for _, w := range rl.weights {
		if !w.isScalar {
			w.perExample = nil
			w.set = false
		}
	}
}

// ResetGradients resets every term. A network shared between terms may be
// reset more than once here; that is harmless.
func (rl *RegularizedLoss) ResetGradients() {
	for _, name := range rl.names {
		rl.terms[name].ResetGradients()
	}
}
