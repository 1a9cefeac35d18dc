package loss

import (
	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/core/model"
	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// MarginLoss is the Carlini-Wagner f6 margin between the target class logit
// and the highest competing logit.
//
// Targeted mode returns max(maxOther - target, -kappa) per example; the
// untargeted mode returns max(target - maxOther, -kappa). When the top
// logit already belongs to the target class, maxOther is the second-highest
// logit.
type MarginLoss struct {
	PartialLoss
	classifier model.Classifier
	normalizer model.Normalizer
	kappa      float64
}

// NewMarginLoss creates the term. kappa must be non-negative; normalizer may
// be nil.
func NewMarginLoss(classifier model.Classifier, normalizer model.Normalizer, kappa float64) (*MarginLoss, error) {
	if kappa < 0 {
		return nil, errors.NewConfigurationError("NewMarginLoss", "kappa must be non-negative", kappa)
	}
	t := &MarginLoss{classifier: classifier, normalizer: normalizer, kappa: kappa}
	t.AddNet(classifier)
	return t, nil
}

// Evaluate implements Term. A nil opts means untargeted.
func (t *MarginLoss) Evaluate(examples *mat.Dense, labels []int, opts *Options) (*mat.VecDense, error) {
	rows, _ := examples.Dims()
	if len(labels) != rows {
		return nil, errors.NewDimensionError("MarginLoss.Evaluate", rows, len(labels), 0)
	}

	in := examples
	if t.normalizer != nil {
		normed, err := t.normalizer.Normalize(examples)
		if err != nil {
			return nil, err
		}
		in = normed
	}

	logits := t.classifier.Forward(in)
	numClasses := t.classifier.NumClasses()
	targeted := opts != nil && opts.Targeted

	out := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		label := labels[i]
		if label < 0 || label >= numClasses {
			return nil, errors.NewConfigurationError("MarginLoss.Evaluate", "label out of class range", label)
		}
		row := logits.RawRowView(i)

		topIdx, topVal, secondVal := top2(row)
		target := row[label]
		maxOther := topVal
		if topIdx == label {
			maxOther = secondVal
		}

		var f float64
		if targeted {
			f = maxOther - target
		} else {
			f = target - maxOther
		}
		if f < -t.kappa {
			f = -t.kappa
		}
		out.SetVec(i, f)
	}
	return out, nil
}

// top2 returns the index and value of the largest entry and the value of the
// second largest. len(row) must be at least 2.
func top2(row []float64) (topIdx int, topVal, secondVal float64) {
	if row[0] >= row[1] {
		topIdx, topVal, secondVal = 0, row[0], row[1]
	} else {
		topIdx, topVal, secondVal = 1, row[1], row[0]
	}
	for j := 2; j < len(row); j++ {
		v := row[j]
		if v > topVal {
			topIdx, secondVal, topVal = j, topVal, v
		} else if v > secondVal {
			secondVal = v
		}
	}
	return topIdx, topVal, secondVal
}
