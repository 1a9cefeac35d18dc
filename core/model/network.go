// Package model defines the network interfaces the loss framework and the
// fingerprint trainer operate on, a reference linear softmax classifier, an
// SGD optimizer, and a bounded-retention checkpoint store.
//
// The classifier architecture itself is an external collaborator: anything
// satisfying Trainable can be trained and defended. LinearClassifier is the
// concrete model shipped with the library so the trainer, the detector, and
// the test suite have a real differentiable network to run against.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Network is any sub-network that accumulates gradient state. Loss terms
// hold Network references and reset them between batches; networks are
// compared by interface identity when resets are deduplicated.
type Network interface {
	// ZeroGrad clears all accumulated gradient buffers.
	ZeroGrad()
}

// Classifier is a network with a standard forward pass returning per-class
// scores. X has one example per row; the result is one row of logits per
// example.
type Classifier interface {
	Network

	// Forward computes logits for a batch. Implementations may stash
	// activations needed by a later Backward call.
	Forward(X *mat.Dense) *mat.Dense

	// NumClasses returns the width of the logit rows Forward produces.
	NumClasses() int
}

// Param is one parameter tensor of a trainable network, flattened, paired
// with its gradient accumulator of the same length.
type Param struct {
	Data []float64
	Grad []float64
}

// Trainable is a classifier that supports backpropagation and exposes its
// parameters for optimizer updates and checkpointing.
type Trainable interface {
	Classifier

	// Backward accumulates parameter gradients given the gradient of the
	// loss with respect to the logits of the most recent Forward call.
	Backward(gradLogits *mat.Dense)

	// Params returns the parameter/gradient pairs. The slices alias the
	// live network state; optimizers mutate them in place.
	Params() []*Param
}

// Normalizer transforms raw inputs before they reach the classifier, e.g.
// per-channel mean/std normalization. It must be deterministic so that
// training and detection see the same mapping.
type Normalizer interface {
	Normalize(X *mat.Dense) (*mat.Dense, error)
}
