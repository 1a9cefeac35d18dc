// Package mistered provides neural-fingerprint defenses against
// adversarial examples: generation of secret perturbation directions and
// target response codes, joint training of a classifier toward those codes,
// and threshold-based detection of inputs whose responses deviate from
// them.
//
// The top-level packages are:
//
//   - fingerprint: direction/code generation and portable persistence
//   - loss: composable loss terms and the regularized combination
//   - nfp: the joint trainer and the detector
//   - core/model: classifier interfaces, SGD, and checkpointing
//   - preprocessing, metrics: input normalization and evaluation metrics
//
// The nfp command wraps fingerprint generation and inspection for use from
// the shell.
package mistered
