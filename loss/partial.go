// Package loss implements the composable weighted-loss framework used both
// by fingerprint training and by detection-time distance computation.
//
// A Term is one differentiable loss unit returning one score per example.
// RegularizedLoss combines named terms with scalar or per-example weights
// and manages the batch-scoped reference state of reference-type terms.
// The set of term variants is closed: classification loss, margin loss, and
// the reference regularizers.
package loss

import (
	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/core/model"
)

// Options carries per-evaluation settings shared by all terms.
type Options struct {
	// Targeted selects the targeted form of the margin loss.
	Targeted bool
}

// Term is one loss unit. Evaluate returns one score per example row.
type Term interface {
	Evaluate(examples *mat.Dense, labels []int, opts *Options) (*mat.VecDense, error)

	// ResetGradients clears accumulated gradient state on every distinct
	// network the term owns. Shared networks are reset once per call.
	ResetGradients()
}

// ReferenceTerm is a term that measures against a fixed, batch-scoped
// reference image. SetupBatch must be called before Evaluate on every new
// batch and CleanupBatch afterwards, on every exit path.
type ReferenceTerm interface {
	Term

	SetupBatch(fixedImage *mat.Dense)
	CleanupBatch()
}

// PartialLoss is the embedded base of every term. It tracks the term's
// networks and implements the deduplicated gradient reset.
type PartialLoss struct {
	nets []model.Network
}

// AddNet registers a network owned by the term.
func (p *PartialLoss) AddNet(n model.Network) {
	if n != nil {
		p.nets = append(p.nets, n)
	}
}

// ResetGradients implements Term. Each distinct network identity is reset
// exactly once even when registered several times.
func (p *PartialLoss) ResetGradients() {
	seen := make(map[model.Network]struct{}, len(p.nets))
	for _, n := range p.nets {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		n.ZeroGrad()
	}
}
