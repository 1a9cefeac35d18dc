// Package preprocessing provides input normalization applied before the
// classifier's forward pass.
package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// DifferentiableNormalize maps each feature x to (x - mean)/std using
// per-channel statistics. Inputs are flattened images laid out channel by
// channel, so a row of width F with C channels has F/C consecutive features
// per channel. The mapping is affine, hence differentiable, and
// deterministic: training and detection see the same transform.
type DifferentiableNormalize struct {
	Mean     []float64
	Std      []float64
	Channels int
}

// NewDifferentiableNormalize validates the channel statistics. Mean and std
// must both have one entry per channel and every std must be non-zero.
func NewDifferentiableNormalize(mean, std []float64, channels int) (*DifferentiableNormalize, error) {
	if channels <= 0 {
		return nil, errors.NewConfigurationError("NewDifferentiableNormalize", "channels must be positive", channels)
	}
	if len(mean) != channels || len(std) != channels {
		return nil, errors.NewConfigurationError("NewDifferentiableNormalize",
			"mean and std must have one entry per channel", []int{len(mean), len(std)})
	}
	for _, s := range std {
		if s == 0 {
			return nil, errors.NewConfigurationError("NewDifferentiableNormalize", "std entries must be non-zero", std)
		}
	}
	return &DifferentiableNormalize{
		Mean:     append([]float64(nil), mean...),
		Std:      append([]float64(nil), std...),
		Channels: channels,
	}, nil
}

// Normalize returns a normalized copy of X. The feature count must divide
// evenly into the configured channel count.
func (n *DifferentiableNormalize) Normalize(X *mat.Dense) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols%n.Channels != 0 {
		return nil, errors.NewDimensionError("DifferentiableNormalize.Normalize", n.Channels, cols, 1)
	}
	chanWidth := cols / n.Channels

	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		src := X.RawRowView(i)
		dst := out.RawRowView(i)
		for j, v := range src {
			ch := j / chanWidth
			dst[j] = (v - n.Mean[ch]) / n.Std[ch]
		}
	}
	return out, nil
}
