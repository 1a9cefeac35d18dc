package log

// Standard attribute keys used across the library. Using these keys keeps
// training and detection records filterable in structured log output.
const (
	// ComponentKey identifies which component emitted the record.
	// Examples: "nfp.trainer", "nfp.detector", "fingerprint".
	ComponentKey = "component"

	// OperationKey names the operation being performed.
	// Examples: "train", "detect", "generate", "checkpoint".
	OperationKey = "operation"

	// EpochKey records the current training epoch.
	EpochKey = "training.epoch"

	// StepKey records the current batch step within an epoch.
	StepKey = "training.step"

	// LossKey records the combined loss at a training step.
	LossKey = "metrics.loss"

	// VanillaLossKey records the classification part of the loss.
	VanillaLossKey = "metrics.vanilla_loss"

	// FingerprintLossKey records the fingerprint-consistency part of the loss.
	FingerprintLossKey = "metrics.fingerprint_loss"

	// AccuracyKey records held-out classification accuracy.
	AccuracyKey = "metrics.accuracy"

	// DetectionRateKey records the fraction of examples flagged adversarial.
	DetectionRateKey = "metrics.detection_rate"

	// ThresholdKey records the detection threshold tau in use.
	ThresholdKey = "detection.threshold"

	// SamplesKey records the number of examples in a batch.
	SamplesKey = "data.samples"

	// FeaturesKey records the number of features per example.
	FeaturesKey = "data.features"

	// DirectionsKey records the number of fingerprint directions.
	DirectionsKey = "fingerprint.directions"

	// ClassesKey records the number of classes.
	ClassesKey = "fingerprint.classes"

	// SeedKey records the random seed used for generation.
	SeedKey = "config.seed"
)
