// Package nfp implements neural-fingerprint training and detection: the
// trainer teaches a classifier to produce secret class-specific response
// patterns under fixed perturbation directions, and the detector flags
// inputs whose response deviates from the pattern expected for their class.
package nfp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/core/parallel"
	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// Batch is one minibatch of flattened inputs with their true labels.
type Batch struct {
	X      *mat.Dense
	Labels []int
}

// Validate checks internal consistency of the batch.
func (b *Batch) Validate() error {
	rows, _ := b.X.Dims()
	if rows == 0 {
		return errors.Wrap(errors.ErrEmptyData, "nfp: empty batch")
	}
	if len(b.Labels) != rows {
		return errors.NewDimensionError("nfp.Batch", rows, len(b.Labels), 0)
	}
	return nil
}

// rows below this count are augmented sequentially
const augmentParallelThreshold = 512

// BuildAugmentedBatch concatenates the original inputs with one perturbed
// copy per direction. With B input rows and D directions the result has
// B*(D+1) rows: rows [0, B) are the originals and the perturbed copy for
// direction i of example n lives at row (i+1)*B + n.
func BuildAugmentedBatch(X *mat.Dense, directions []*mat.VecDense) (*mat.Dense, error) {
	rows, cols := X.Dims()
	for _, d := range directions {
		if d.Len() != cols {
			return nil, errors.NewDimensionError("nfp.BuildAugmentedBatch", cols, d.Len(), 1)
		}
	}

	out := mat.NewDense(rows*(len(directions)+1), cols, nil)
	parallel.ParallelizeWithThreshold(rows, augmentParallelThreshold, func(start, end int) {
		for n := start; n < end; n++ {
			src := X.RawRowView(n)
			copy(out.RawRowView(n), src)
			for i, d := range directions {
				dst := out.RawRowView((i+1)*rows + n)
				dv := d.RawVector().Data
				for j, v := range src {
					dst[j] = v + dv[j]
				}
			}
		}
	})
	return out, nil
}
