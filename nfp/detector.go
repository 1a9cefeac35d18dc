package nfp

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/core/model"
	"github.com/tongwu2020/mister-ed/fingerprint"
	"github.com/tongwu2020/mister-ed/loss"
	"github.com/tongwu2020/mister-ed/metrics"
	"github.com/tongwu2020/mister-ed/pkg/errors"
	"github.com/tongwu2020/mister-ed/pkg/log"
)

// Comparison selects which side of the threshold is flagged.
type Comparison int

const (
	// FlagAtMost flags an example when its fingerprint distance is at
	// most the threshold. This is the default.
	FlagAtMost Comparison = iota

	// FlagAbove flags an example when its fingerprint distance exceeds
	// the threshold, treating a large deviation from every candidate
	// code as the detection signal.
	FlagAbove
)

// DetectorConfig controls detection behavior.
type DetectorConfig struct {
	// Comparison selects the flagging direction. Default FlagAtMost.
	Comparison Comparison

	// CandidateLabels are the labels whose codes each example is matched
	// against; the per-example distance is the minimum over candidates.
	// Empty means all classes.
	CandidateLabels []int
}

// DetectionResult holds per-example outcomes of one Evaluate call.
type DetectionResult struct {
	// Distances is the minimum fingerprint distance over candidate
	// labels, one per example.
	Distances []float64

	// Flags marks the examples the detector fired on.
	Flags []bool

	// DetectionRate is the flagged fraction.
	DetectionRate float64
}

// Detector scores inputs by their fingerprint distance: the square root of
// the accumulated per-direction deviation between the model's response and
// a candidate label's target codes. Inputs whose minimum distance falls on
// the configured side of the threshold are flagged.
type Detector struct {
	fp          *fingerprint.Fingerprint
	regularized *loss.RegularizedLoss
	candidates  []int
	comparison  Comparison
	logger      log.Logger
}

// NewDetector wires the fingerprint term into a single-term regularized
// loss. normalizer may be nil.
func NewDetector(classifier model.Classifier, normalizer model.Normalizer, fp *fingerprint.Fingerprint, cfg DetectorConfig) (*Detector, error) {
	term, err := NewFingerprintLoss(classifier, normalizer, fp)
	if err != nil {
		return nil, err
	}
	regularized, err := loss.NewRegularizedLoss(
		map[string]loss.Term{"fingerprint": term},
		map[string]*loss.Weight{"fingerprint": loss.ScalarWeight(1)},
	)
	if err != nil {
		return nil, err
	}

	candidates := cfg.CandidateLabels
	if len(candidates) == 0 {
		candidates = make([]int, fp.NumClasses)
		for i := range candidates {
			candidates[i] = i
		}
	}
	for _, y := range candidates {
		if y < 0 || y >= fp.NumClasses {
			return nil, errors.NewConfigurationError("NewDetector", "candidate label out of class range", y)
		}
	}
	if cfg.Comparison != FlagAtMost && cfg.Comparison != FlagAbove {
		return nil, errors.NewConfigurationError("NewDetector", "unknown comparison", int(cfg.Comparison))
	}

	return &Detector{
		fp:          fp,
		regularized: regularized,
		candidates:  candidates,
		comparison:  cfg.Comparison,
		logger:      log.GetLoggerWithName("detector"),
	}, nil
}

// Evaluate scores every row of X against the candidate codes using the
// threshold tau. tau must be non-negative.
func (d *Detector) Evaluate(X *mat.Dense, tau float64) (*DetectionResult, error) {
	if tau < 0 || math.IsNaN(tau) {
		return nil, errors.NewConfigurationError("Detector.Evaluate", "threshold must be non-negative", tau)
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "nfp: empty detection batch")
	}
	if cols != d.fp.InputDim {
		return nil, errors.NewDimensionError("Detector.Evaluate", d.fp.InputDim, cols, 1)
	}

	d.regularized.SetupBatch(X)
	defer d.regularized.CleanupBatch()

	distances := make([]float64, rows)
	for i := range distances {
		distances[i] = math.Inf(1)
	}
	labels := make([]int, rows)
	for _, y := range d.candidates {
		for i := range labels {
			labels[i] = y
		}
		scores, err := d.regularized.Evaluate(X, labels, nil)
		if err != nil {
			return nil, err
		}
		for i := 0; i < rows; i++ {
			dist := math.Sqrt(scores.AtVec(i))
			if dist < distances[i] {
				distances[i] = dist
			}
		}
	}

	flags := make([]bool, rows)
	for i, dist := range distances {
		if d.comparison == FlagAtMost {
			flags[i] = dist <= tau
		} else {
			flags[i] = dist > tau
		}
	}
	rate, err := metrics.DetectionRate(flags)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("batch evaluated",
		log.SamplesKey, rows,
		log.ThresholdKey, tau,
		log.DetectionRateKey, rate,
	)
	return &DetectionResult{Distances: distances, Flags: flags, DetectionRate: rate}, nil
}
