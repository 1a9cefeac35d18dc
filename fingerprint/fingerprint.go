// Package fingerprint generates and persists the secret defense signature:
// a fixed set of small perturbation directions together with the target
// response codes each class is trained to produce under them.
//
// A Fingerprint is created once per training run and never mutated
// afterwards. The trainer and the detector must use the same instance;
// detection against a mismatched fingerprint is meaningless.
package fingerprint

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/core/tensor"
	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// Profile selects the dataset-specific fingerprint constants.
type Profile string

// Supported dataset profiles.
const (
	// MNISTLike draws directions from [0, eps] and uses the
	// -0.2357/0.7 code constants without extra scaling.
	MNISTLike Profile = "mnist-like"

	// CIFARLike draws directions from [-eps, eps] and uses the
	// -0.254/0.6 code constants scaled by 1.5.
	CIFARLike Profile = "cifar-like"
)

// profile constants: the "off" value fills the code array, the "on" value
// overwrites each class's own column, and the whole array is multiplied by
// the code scale afterwards.
func (p Profile) codeConstants() (off, on, scale float64) {
	switch p {
	case MNISTLike:
		return -0.2357, 0.7, 1.0
	default:
		return -0.254, 0.6, 1.5
	}
}

// Valid reports whether p names a known profile.
func (p Profile) Valid() bool {
	return p == MNISTLike || p == CIFARLike
}

// Separation returns the fixed positive gap between a class's own-column
// code and every other column: scale*(on - off). For CIFARLike this is
// 1.281.
func (p Profile) Separation() float64 {
	off, on, scale := p.codeConstants()
	return scale * (on - off)
}

// RegularizationScale returns the default weight of the
// fingerprint-consistency loss relative to the classification loss, used
// when the trainer is given no explicit override: 1 + 50/D for CIFARLike,
// 1.0 for MNISTLike.
func (p Profile) RegularizationScale(numDirections int) float64 {
	if p == CIFARLike {
		return 1.0 + 50.0/float64(numDirections)
	}
	return 1.0
}

// Config parameterizes fingerprint generation.
type Config struct {
	Profile       Profile
	NumDirections int
	NumClasses    int
	InputDim      int
	Epsilon       float64
}

// Validate checks the generation parameters.
func (c Config) Validate() error {
	if !c.Profile.Valid() {
		return errors.NewConfigurationError("fingerprint.Generate", "unknown dataset profile", string(c.Profile))
	}
	if c.NumDirections <= 0 {
		return errors.NewConfigurationError("fingerprint.Generate", "numDirections must be positive", c.NumDirections)
	}
	if c.NumClasses <= 1 {
		return errors.NewConfigurationError("fingerprint.Generate", "numClasses must exceed 1", c.NumClasses)
	}
	if c.InputDim <= 0 {
		return errors.NewConfigurationError("fingerprint.Generate", "inputDim must be positive", c.InputDim)
	}
	if c.Epsilon <= 0 {
		return errors.NewConfigurationError("fingerprint.Generate", "epsilon must be positive", c.Epsilon)
	}
	return nil
}

// Fingerprint holds the perturbation directions and per-class target codes.
// Immutable after Generate or Load.
type Fingerprint struct {
	Profile       Profile
	Epsilon       float64
	NumDirections int
	NumClasses    int
	InputDim      int

	// Directions has one perturbation per entry, each shaped like one
	// flattened input.
	Directions []*mat.VecDense

	// TargetCodes has shape [numClasses, numDirections, numClasses]:
	// TargetCodes[c][j] is the response code class c is trained to produce
	// under direction j.
	TargetCodes *tensor.NDArray
}

// Generate creates a fingerprint. All randomness comes from rng; seed it for
// reproducibility.
func Generate(cfg Config, rng *rand.Rand) (*Fingerprint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	directions := make([]*mat.VecDense, cfg.NumDirections)
	for i := range directions {
		data := make([]float64, cfg.InputDim)
		for j := range data {
			u := rng.Float64()
			if cfg.Profile == CIFARLike {
				data[j] = (u - 0.5) * 2 * cfg.Epsilon
			} else {
				data[j] = u * cfg.Epsilon
			}
		}
		directions[i] = mat.NewVecDense(cfg.InputDim, data)
	}

	off, on, scale := cfg.Profile.codeConstants()
	codes, err := tensor.Full(off, cfg.NumClasses, cfg.NumDirections, cfg.NumClasses)
	if err != nil {
		return nil, err
	}
	for j := 0; j < cfg.NumDirections; j++ {
		for c := 0; c < cfg.NumClasses; c++ {
			codes.Set(on, c, j, c)
		}
	}
	codes.Scale(scale)

	return &Fingerprint{
		Profile:       cfg.Profile,
		Epsilon:       cfg.Epsilon,
		NumDirections: cfg.NumDirections,
		NumClasses:    cfg.NumClasses,
		InputDim:      cfg.InputDim,
		Directions:    directions,
		TargetCodes:   codes,
	}, nil
}

// CodeRow returns the target code for class label under direction j as a
// slice of length NumClasses. The slice aliases the code array; callers must
// not modify it.
func (f *Fingerprint) CodeRow(label, j int) []float64 {
	base := (label*f.NumDirections + j) * f.NumClasses
	return f.TargetCodes.Data[base : base+f.NumClasses]
}

// Equal reports whether two fingerprints are identical, including exact
// floating-point values.
func (f *Fingerprint) Equal(g *Fingerprint) bool {
	if g == nil || f.Profile != g.Profile || f.Epsilon != g.Epsilon ||
		f.NumDirections != g.NumDirections || f.NumClasses != g.NumClasses ||
		f.InputDim != g.InputDim || len(f.Directions) != len(g.Directions) {
		return false
	}
	for i, d := range f.Directions {
		e := g.Directions[i]
		if d.Len() != e.Len() {
			return false
		}
		for j := 0; j < d.Len(); j++ {
			if d.AtVec(j) != e.AtVec(j) {
				return false
			}
		}
	}
	return f.TargetCodes.Equal(g.TargetCodes)
}
