// Package metrics provides the evaluation metrics reported during training
// and detection.
package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// Accuracy computes the fraction of rows in logits whose argmax equals the
// corresponding label.
func Accuracy(labels []int, logits *mat.Dense) (float64, error) {
	rows, cols := logits.Dims()
	if rows == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "metrics.Accuracy")
	}
	if len(labels) != rows {
		return 0, errors.NewDimensionError("metrics.Accuracy", rows, len(labels), 0)
	}

	correct := 0
	for i := 0; i < rows; i++ {
		best := 0
		bestVal := logits.At(i, 0)
		for j := 1; j < cols; j++ {
			if v := logits.At(i, j); v > bestVal {
				best, bestVal = j, v
			}
		}
		if best == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(rows), nil
}

// DetectionRate computes the fraction of flagged examples in a detection
// mask.
func DetectionRate(flags []bool) (float64, error) {
	if len(flags) == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "metrics.DetectionRate")
	}
	flagged := 0
	for _, f := range flags {
		if f {
			flagged++
		}
	}
	return float64(flagged) / float64(len(flags)), nil
}
