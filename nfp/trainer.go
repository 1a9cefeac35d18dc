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

// TrainerConfig controls the joint training run. Zero values fall back to
// the documented defaults.
type TrainerConfig struct {
	// NumEpochs is the last epoch index; the run covers epochs
	// 0 through NumEpochs inclusive.
	NumEpochs int

	// ReportingInterval is the number of optimizer steps between held-out
	// evaluations. Default 100.
	ReportingInterval int

	// RegularizationScale overrides the profile-derived weight of the
	// fingerprint term when non-nil.
	RegularizationScale *float64

	// VerbosityEpoch is the number of epochs between checkpoints.
	// Default 1.
	VerbosityEpoch int

	// CheckpointRetention is how many epoch snapshots to keep. Default 3.
	CheckpointRetention int

	// RunLabel and ModelLabel name the checkpoint files. Defaults "nfp"
	// and "classifier".
	RunLabel   string
	ModelLabel string

	// UseAcceleratedDevice requests hardware acceleration when non-nil.
	// No accelerated backend is available in this build, so requesting
	// one is a configuration error; nil auto-detects.
	UseAcceleratedDevice *bool

	// Reporter receives loss and accuracy series. Optional.
	Reporter Reporter

	// Checkpointer persists end-of-epoch snapshots. Optional.
	Checkpointer Checkpointer
}

// Trainer jointly optimizes classification accuracy and fingerprint
// consistency: each step forwards an augmented batch (clean inputs plus one
// perturbed copy per direction), combines the cross-entropy loss on the
// clean block with the weighted fingerprint deviation, and applies one SGD
// update from analytically derived gradients.
type Trainer struct {
	classifier model.Trainable
	normalizer model.Normalizer
	fp         *fingerprint.Fingerprint
	opt        *model.SGD
	reporter   Reporter
	ckpt       Checkpointer
	logger     log.Logger
	cfg        TrainerConfig
	regScale   float64
}

// NewTrainer validates the wiring and returns a trainer. normalizer may be
// nil; opt may be nil, in which case a default-configured SGD is created.
func NewTrainer(classifier model.Trainable, normalizer model.Normalizer, fp *fingerprint.Fingerprint, opt *model.SGD, cfg TrainerConfig) (*Trainer, error) {
	if classifier == nil {
		return nil, errors.NewConfigurationError("NewTrainer", "classifier must not be nil", nil)
	}
	if fp == nil {
		return nil, errors.NewConfigurationError("NewTrainer", "fingerprint must not be nil", nil)
	}
	if classifier.NumClasses() != fp.NumClasses {
		return nil, errors.NewDimensionError("NewTrainer", fp.NumClasses, classifier.NumClasses(), 0)
	}
	if cfg.NumEpochs < 0 {
		return nil, errors.NewConfigurationError("NewTrainer", "number of epochs must be non-negative", cfg.NumEpochs)
	}
	if cfg.UseAcceleratedDevice != nil && *cfg.UseAcceleratedDevice {
		return nil, errors.NewConfigurationError("NewTrainer", "accelerated device requested but none is available", true)
	}
	if cfg.ReportingInterval == 0 {
		cfg.ReportingInterval = 100
	}
	if cfg.ReportingInterval < 0 {
		return nil, errors.NewConfigurationError("NewTrainer", "reporting interval must be positive", cfg.ReportingInterval)
	}
	if cfg.VerbosityEpoch == 0 {
		cfg.VerbosityEpoch = 1
	}
	if cfg.VerbosityEpoch < 0 {
		return nil, errors.NewConfigurationError("NewTrainer", "checkpoint epoch interval must be positive", cfg.VerbosityEpoch)
	}
	if cfg.CheckpointRetention == 0 {
		cfg.CheckpointRetention = 3
	}
	if cfg.CheckpointRetention < 0 {
		return nil, errors.NewConfigurationError("NewTrainer", "checkpoint retention must be positive", cfg.CheckpointRetention)
	}
	if cfg.RunLabel == "" {
		cfg.RunLabel = "nfp"
	}
	if cfg.ModelLabel == "" {
		cfg.ModelLabel = "classifier"
	}

	if opt == nil {
		created, err := model.NewSGD(classifier, model.SGDConfig{})
		if err != nil {
			return nil, err
		}
		opt = created
	}

	regScale := fp.Profile.RegularizationScale(fp.NumDirections)
	if cfg.RegularizationScale != nil {
		regScale = *cfg.RegularizationScale
	}

	reporter := cfg.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}

	return &Trainer{
		classifier: classifier,
		normalizer: normalizer,
		fp:         fp,
		opt:        opt,
		reporter:   reporter,
		ckpt:       cfg.Checkpointer,
		logger:     log.GetLoggerWithName("trainer"),
		cfg:        cfg,
		regScale:   regScale,
	}, nil
}

// RegularizationScale returns the effective fingerprint-term weight.
func (t *Trainer) RegularizationScale() float64 { return t.regScale }

// Train runs the configured number of epochs over train, evaluating on
// heldOut every reporting interval and checkpointing after each epoch.
func (t *Trainer) Train(train, heldOut []Batch) error {
	if len(train) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "nfp: no training batches")
	}
	for _, b := range train {
		if err := t.checkBatch(&b); err != nil {
			return err
		}
	}
	for _, b := range heldOut {
		if err := t.checkBatch(&b); err != nil {
			return err
		}
	}

	t.logger.Info("training started",
		log.DirectionsKey, t.fp.NumDirections,
		log.ClassesKey, t.fp.NumClasses,
		"regularization_scale", t.regScale,
		"epochs", t.cfg.NumEpochs,
	)

	step := 0
	for epoch := 0; epoch <= t.cfg.NumEpochs; epoch++ {
		for _, b := range train {
			step++
			vanilla, fpLoss, err := t.trainStep(&b, step)
			if err != nil {
				return err
			}
			combined := vanilla + t.regScale*fpLoss
			if math.IsNaN(combined) || math.IsInf(combined, 0) {
				return errors.NewNumericalInstabilityError("Trainer.Train", []float64{vanilla, fpLoss}, step)
			}

			t.reporter.Report(SeriesVanillaLoss, step, vanilla)
			t.reporter.Report(SeriesFingerprintLoss, step, fpLoss)
			t.reporter.Report(SeriesCombinedLoss, step, combined)

			if step%t.cfg.ReportingInterval == 0 && len(heldOut) > 0 {
				acc, err := t.heldOutAccuracy(heldOut)
				if err != nil {
					return err
				}
				t.reporter.Report(SeriesHeldOutAccuracy, step, acc)
				t.logger.Info("held-out evaluation",
					log.EpochKey, epoch,
					log.StepKey, step,
					log.AccuracyKey, acc,
					log.VanillaLossKey, vanilla,
					log.FingerprintLossKey, fpLoss,
				)
			}
		}

		if t.ckpt != nil && epoch%t.cfg.VerbosityEpoch == 0 {
			if err := t.ckpt.Save(t.cfg.RunLabel, t.cfg.ModelLabel, epoch, snapshotParams(t.classifier), t.cfg.CheckpointRetention); err != nil {
				return err
			}
		}
		t.logger.Debug("epoch complete", log.EpochKey, epoch, log.StepKey, step)
	}

	t.logger.Info("training finished", log.StepKey, step)
	return nil
}

// trainStep runs one optimizer update and returns the clean-block
// cross-entropy and the unweighted fingerprint loss, both batch means.
func (t *Trainer) trainStep(b *Batch, step int) (vanilla, fpLoss float64, err error) {
	t.opt.ZeroGrad()

	aug, err := BuildAugmentedBatch(b.X, t.fp.Directions)
	if err != nil {
		return 0, 0, err
	}
	in := aug
	if t.normalizer != nil {
		if in, err = t.normalizer.Normalize(aug); err != nil {
			return 0, 0, err
		}
	}

	logits := t.classifier.Forward(in)
	rows, _ := b.X.Dims()
	augRows, _ := aug.Dims()
	numClasses := t.fp.NumClasses

	grad := mat.NewDense(augRows, numClasses, nil)

	// clean block: cross-entropy value and softmax-minus-onehot gradient
	probs := make([]float64, numClasses)
	logProbs := make([]float64, numClasses)
	invB := 1.0 / float64(rows)
	for n := 0; n < rows; n++ {
		row := logits.RawRowView(n)
		loss.LogSoftmaxRow(logProbs, row)
		vanilla -= logProbs[b.Labels[n]] * invB
		loss.SoftmaxRow(probs, row)
		g := grad.RawRowView(n)
		for c := 0; c < numClasses; c++ {
			g[c] = probs[c] * invB
		}
		g[b.Labels[n]] -= invB
	}

	// unit-normalized logit rows and their norms
	unit := mat.NewDense(augRows, numClasses, nil)
	norms := make([]float64, augRows)
	for r := 0; r < augRows; r++ {
		src := logits.RawRowView(r)
		sum := 0.0
		for _, v := range src {
			sum += v * v
		}
		if sum == 0 {
			return 0, 0, errors.NewNumericalInstabilityError("Trainer.trainStep", logits.RawRowView(r), step)
		}
		norms[r] = math.Sqrt(sum)
		dst := unit.RawRowView(r)
		for c, v := range src {
			dst[c] = v / norms[r]
		}
	}

	// fingerprint deviation and its gradient in unit space
	gu := mat.NewDense(augRows, numClasses, nil)
	denom := float64(rows * numClasses)
	for i := 0; i < t.fp.NumDirections; i++ {
		for n := 0; n < rows; n++ {
			r0 := unit.RawRowView(n)
			ri := unit.RawRowView((i+1)*rows + n)
			g0 := gu.RawRowView(n)
			gi := gu.RawRowView((i+1)*rows + n)
			code := t.fp.CodeRow(b.Labels[n], i)
			for c := 0; c < numClasses; c++ {
				d := ri[c] - r0[c] + stabilizer - code[c]
				fpLoss += d * d / denom
				u := 2 * d / denom
				gi[c] += u
				g0[c] -= u
			}
		}
	}

	// push the unit-space gradient through the normalization Jacobian:
	// dL/dz = (u - (n.u) n) / |z|
	for r := 0; r < augRows; r++ {
		u := gu.RawRowView(r)
		nr := unit.RawRowView(r)
		dot := 0.0
		for c := 0; c < numClasses; c++ {
			dot += nr[c] * u[c]
		}
		g := grad.RawRowView(r)
		for c := 0; c < numClasses; c++ {
			g[c] += t.regScale * (u[c] - dot*nr[c]) / norms[r]
		}
	}

	t.classifier.Backward(grad)
	t.opt.Step()
	return vanilla, fpLoss, nil
}

// heldOutAccuracy computes clean-batch accuracy over all held-out batches.
func (t *Trainer) heldOutAccuracy(batches []Batch) (float64, error) {
	correct, total := 0.0, 0
	for _, b := range batches {
		in := b.X
		if t.normalizer != nil {
			normed, err := t.normalizer.Normalize(b.X)
			if err != nil {
				return 0, err
			}
			in = normed
		}
		logits := t.classifier.Forward(in)
		acc, err := metrics.Accuracy(b.Labels, logits)
		if err != nil {
			return 0, err
		}
		rows, _ := b.X.Dims()
		correct += acc * float64(rows)
		total += rows
	}
	return correct / float64(total), nil
}

func (t *Trainer) checkBatch(b *Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, cols := b.X.Dims()
	if cols != t.fp.InputDim {
		return errors.NewDimensionError("Trainer.Train", t.fp.InputDim, cols, 1)
	}
	for _, y := range b.Labels {
		if y < 0 || y >= t.fp.NumClasses {
			return errors.NewConfigurationError("Trainer.Train", "label out of class range", y)
		}
	}
	return nil
}

// snapshotParams deep-copies the classifier parameters for checkpointing.
func snapshotParams(net model.Trainable) [][]float64 {
	params := net.Params()
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = append([]float64(nil), p.Data...)
	}
	return out
}
