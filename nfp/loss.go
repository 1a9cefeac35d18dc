package nfp

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/core/model"
	"github.com/tongwu2020/mister-ed/fingerprint"
	"github.com/tongwu2020/mister-ed/loss"
	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// stabilizer is added to every normalized logit difference so that a target
// code of exactly zero never produces a degenerate optimum.
const stabilizer = 1e-5

// FingerprintLoss measures how far a classifier's response to the secret
// perturbation directions deviates from the target codes of each example's
// label. For every direction the evaluated examples and the fixed (clean)
// reference are forwarded through the classifier, logits are L2-normalized
// per row, and the per-class mean squared deviation of the normalized
// difference from the label's code is accumulated over directions.
//
// The fixed image installed by SetupBatch is the clean reference batch;
// Evaluate perturbs it by each direction internally, so callers pass the
// same examples to both.
type FingerprintLoss struct {
	loss.ReferenceRegularizer
	classifier model.Classifier
	normalizer model.Normalizer
	fp         *fingerprint.Fingerprint
}

// NewFingerprintLoss creates the term. normalizer may be nil.
func NewFingerprintLoss(classifier model.Classifier, normalizer model.Normalizer, fp *fingerprint.Fingerprint) (*FingerprintLoss, error) {
	if classifier == nil {
		return nil, errors.NewConfigurationError("NewFingerprintLoss", "classifier must not be nil", nil)
	}
	if fp == nil {
		return nil, errors.NewConfigurationError("NewFingerprintLoss", "fingerprint must not be nil", nil)
	}
	if classifier.NumClasses() != fp.NumClasses {
		return nil, errors.NewDimensionError("NewFingerprintLoss", fp.NumClasses, classifier.NumClasses(), 0)
	}
	t := &FingerprintLoss{
		ReferenceRegularizer: loss.NewReferenceRegularizer("FingerprintLoss"),
		classifier:           classifier,
		normalizer:           normalizer,
		fp:                   fp,
	}
	t.AddNet(classifier)
	return t, nil
}

// Evaluate implements loss.Term. The result is, per example, the sum over
// directions of the class-mean squared deviation from the label's code.
func (t *FingerprintLoss) Evaluate(examples *mat.Dense, labels []int, _ *loss.Options) (*mat.VecDense, error) {
	fix, err := t.FixedImage()
	if err != nil {
		return nil, err
	}

	rows, cols := examples.Dims()
	fixRows, fixCols := fix.Dims()
	if rows != fixRows || cols != fixCols {
		return nil, errors.NewShapeMismatchError("FingerprintLoss.Evaluate", []int{fixRows, fixCols}, []int{rows, cols})
	}
	if cols != t.fp.InputDim {
		return nil, errors.NewDimensionError("FingerprintLoss.Evaluate", t.fp.InputDim, cols, 1)
	}
	if len(labels) != rows {
		return nil, errors.NewDimensionError("FingerprintLoss.Evaluate", rows, len(labels), 0)
	}
	for _, y := range labels {
		if y < 0 || y >= t.fp.NumClasses {
			return nil, errors.NewConfigurationError("FingerprintLoss.Evaluate", "label out of class range", y)
		}
	}

	base, err := t.normalizedLogits(fix)
	if err != nil {
		return nil, err
	}

	numClasses := t.fp.NumClasses
	out := mat.NewVecDense(rows, nil)
	perturbed := mat.NewDense(rows, cols, nil)
	for i, dir := range t.fp.Directions {
		dv := dir.RawVector().Data
		for n := 0; n < rows; n++ {
			src := fix.RawRowView(n)
			dst := perturbed.RawRowView(n)
			for j, v := range src {
				dst[j] = v + dv[j]
			}
		}
		resp, err := t.normalizedLogits(perturbed)
		if err != nil {
			return nil, err
		}
		for n := 0; n < rows; n++ {
			code := t.fp.CodeRow(labels[n], i)
			br := base.RawRowView(n)
			rr := resp.RawRowView(n)
			sum := 0.0
			for c := 0; c < numClasses; c++ {
				d := rr[c] - br[c] + stabilizer - code[c]
				sum += d * d
			}
			out.SetVec(n, out.AtVec(n)+sum/float64(numClasses))
		}
	}
	return out, nil
}

// normalizedLogits forwards X through the (optional) normalizer and the
// classifier and L2-normalizes each logit row in place.
func (t *FingerprintLoss) normalizedLogits(X *mat.Dense) (*mat.Dense, error) {
	in := X
	if t.normalizer != nil {
		normed, err := t.normalizer.Normalize(X)
		if err != nil {
			return nil, err
		}
		in = normed
	}
	logits := t.classifier.Forward(in)
	rows, _ := logits.Dims()
	for n := 0; n < rows; n++ {
		normalizeRow(logits.RawRowView(n))
	}
	return logits, nil
}

// normalizeRow scales the row to unit L2 norm in place. A zero row is left
// untouched.
func normalizeRow(row []float64) {
	sum := 0.0
	for _, v := range row {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range row {
		row[i] *= inv
	}
}
