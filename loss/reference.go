package loss

import (
	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/core/model"
	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// ReferenceRegularizer is the embedded base of terms that measure against
// the fixed, unperturbed images of the current batch. The fixed image is
// batch-scoped state: SetupBatch installs it (and resets gradients),
// CleanupBatch clears it (and resets gradients again). Evaluating with no
// fixed image installed is a StaleReferenceError.
type ReferenceRegularizer struct {
	PartialLoss
	name       string
	fixedImage *mat.Dense
}

// NewReferenceRegularizer creates the base with the term name used in
// stale-reference errors.
func NewReferenceRegularizer(name string) ReferenceRegularizer {
	return ReferenceRegularizer{name: name}
}

// SetupBatch implements ReferenceTerm. fixedImage rows are the ground images
// of the minibatch, in [0, 1] range.
func (r *ReferenceRegularizer) SetupBatch(fixedImage *mat.Dense) {
	r.fixedImage = fixedImage
	r.ResetGradients()
}

// CleanupBatch implements ReferenceTerm.
func (r *ReferenceRegularizer) CleanupBatch() {
	r.fixedImage = nil
	r.ResetGradients()
}

// FixedImage returns the installed reference batch, or a StaleReferenceError
// when none is installed.
func (r *ReferenceRegularizer) FixedImage() (*mat.Dense, error) {
	if r.fixedImage == nil {
		return nil, errors.NewStaleReferenceError(r.name)
	}
	return r.fixedImage, nil
}

// L2Regularization returns the squared L2 distance per example between the
// evaluated examples and the fixed image.
type L2Regularization struct {
	ReferenceRegularizer
}

// NewL2Regularization creates the term.
func NewL2Regularization() *L2Regularization {
	return &L2Regularization{ReferenceRegularizer: NewReferenceRegularizer("L2Regularization")}
}

// Evaluate implements Term. Labels are unused.
func (t *L2Regularization) Evaluate(examples *mat.Dense, _ []int, _ *Options) (*mat.VecDense, error) {
	fix, err := t.FixedImage()
	if err != nil {
		return nil, err
	}

	rows, cols := examples.Dims()
	fixRows, fixCols := fix.Dims()
	if rows != fixRows || cols != fixCols {
		return nil, errors.NewShapeMismatchError("L2Regularization.Evaluate", []int{fixRows, fixCols}, []int{rows, cols})
	}

	out := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		a := examples.RawRowView(i)
		b := fix.RawRowView(i)
		sum := 0.0
		for j := range a {
			d := a[j] - b[j]
			sum += d * d
		}
		out.SetVec(i, sum)
	}
	return out, nil
}

// DistanceNetwork is an externally supplied differentiable perceptual
// similarity network. Inputs are in [-1, 1] range; the result is one
// distance per example row.
type DistanceNetwork interface {
	model.Network

	Distance(a, b *mat.Dense) (*mat.VecDense, error)
}

// PerceptualRegularization forwards the evaluated examples and the fixed
// image through a learned distance network. Both batches are rescaled from
// [0, 1] to the [-1, 1] range the network expects.
type PerceptualRegularization struct {
	ReferenceRegularizer
	dist DistanceNetwork
}

// NewPerceptualRegularization creates the term around an external distance
// network.
func NewPerceptualRegularization(dist DistanceNetwork) (*PerceptualRegularization, error) {
	if dist == nil {
		return nil, errors.NewConfigurationError("NewPerceptualRegularization", "distance network must not be nil", nil)
	}
	t := &PerceptualRegularization{
		ReferenceRegularizer: NewReferenceRegularizer("PerceptualRegularization"),
		dist:                 dist,
	}
	t.AddNet(dist)
	return t, nil
}

// Evaluate implements Term. Labels are unused.
func (t *PerceptualRegularization) Evaluate(examples *mat.Dense, _ []int, _ *Options) (*mat.VecDense, error) {
	fix, err := t.FixedImage()
	if err != nil {
		return nil, err
	}

	rows, cols := examples.Dims()
	fixRows, fixCols := fix.Dims()
	if rows != fixRows || cols != fixCols {
		return nil, errors.NewShapeMismatchError("PerceptualRegularization.Evaluate", []int{fixRows, fixCols}, []int{rows, cols})
	}

	return t.dist.Distance(rescale(examples), rescale(fix))
}

// rescale maps [0, 1] images to [-1, 1].
func rescale(X *mat.Dense) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		src := X.RawRowView(i)
		dst := out.RawRowView(i)
		for j, v := range src {
			dst[j] = 2*v - 1
		}
	}
	return out
}
