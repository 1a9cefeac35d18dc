package loss

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/core/model"
	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// CrossEntropyLoss runs the classifier on (optionally normalized) examples
// and returns the per-example negative log-likelihood of the true label.
type CrossEntropyLoss struct {
	PartialLoss
	classifier model.Classifier
	normalizer model.Normalizer
}

// NewCrossEntropyLoss creates the term. normalizer may be nil.
func NewCrossEntropyLoss(classifier model.Classifier, normalizer model.Normalizer) *CrossEntropyLoss {
	t := &CrossEntropyLoss{classifier: classifier, normalizer: normalizer}
	t.AddNet(classifier)
	return t
}

// Evaluate implements Term.
func (t *CrossEntropyLoss) Evaluate(examples *mat.Dense, labels []int, _ *Options) (*mat.VecDense, error) {
	rows, _ := examples.Dims()
	if len(labels) != rows {
		return nil, errors.NewDimensionError("CrossEntropyLoss.Evaluate", rows, len(labels), 0)
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

	out := mat.NewVecDense(rows, nil)
	logProbs := make([]float64, numClasses)
	for i := 0; i < rows; i++ {
		if labels[i] < 0 || labels[i] >= numClasses {
			return nil, errors.NewConfigurationError("CrossEntropyLoss.Evaluate", "label out of class range", labels[i])
		}
		LogSoftmaxRow(logProbs, logits.RawRowView(i))
		out.SetVec(i, -logProbs[labels[i]])
	}
	return out, nil
}

// LogSoftmaxRow writes log(softmax(src)) into dst using the max-shift trick
// for numerical stability.
func LogSoftmaxRow(dst, src []float64) {
	maxVal := src[0]
	for _, v := range src[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	sum := 0.0
	for _, v := range src {
		sum += math.Exp(v - maxVal)
	}
	logSum := maxVal + math.Log(sum)
	for i, v := range src {
		dst[i] = v - logSum
	}
}

// SoftmaxRow writes softmax(src) into dst.
func SoftmaxRow(dst, src []float64) {
	maxVal := src[0]
	for _, v := range src[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	sum := 0.0
	for i, v := range src {
		dst[i] = math.Exp(v - maxVal)
		sum += dst[i]
	}
	for i := range dst {
		dst[i] /= sum
	}
}
