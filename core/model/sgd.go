package model

import (
	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// SGDConfig holds the optimizer hyperparameters. The zero value is not
// usable; NewSGD applies the defaults for unset fields.
type SGDConfig struct {
	LearningRate float64 // default 0.01
	Momentum     float64 // default 0.5
	WeightDecay  float64 // default 1e-6
}

// SGD is plain stochastic gradient descent with classical momentum and L2
// weight decay, bound to one trainable network.
type SGD struct {
	net      Trainable
	cfg      SGDConfig
	velocity [][]float64
}

// NewSGD creates an optimizer for net. Negative hyperparameters are a
// configuration error.
func NewSGD(net Trainable, cfg SGDConfig) (*SGD, error) {
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.01
	}
	if cfg.Momentum == 0 {
		cfg.Momentum = 0.5
	}
	if cfg.WeightDecay == 0 {
		cfg.WeightDecay = 1e-6
	}
	if cfg.LearningRate < 0 || cfg.Momentum < 0 || cfg.WeightDecay < 0 {
		return nil, errors.NewConfigurationError("NewSGD", "hyperparameters must be non-negative", cfg)
	}

	params := net.Params()
	velocity := make([][]float64, len(params))
	for i, p := range params {
		velocity[i] = make([]float64, len(p.Data))
	}
	return &SGD{net: net, cfg: cfg, velocity: velocity}, nil
}

// Step applies one update: v = momentum*v - lr*(g + wd*p); p += v.
// Parameters are mutated in place; only the optimizer's owner may call this.
func (s *SGD) Step() {
	for i, p := range s.net.Params() {
		v := s.velocity[i]
		for j := range p.Data {
			g := p.Grad[j] + s.cfg.WeightDecay*p.Data[j]
			v[j] = s.cfg.Momentum*v[j] - s.cfg.LearningRate*g
			p.Data[j] += v[j]
		}
	}
}

// ZeroGrad clears the network's gradient buffers ahead of the next
// forward/backward cycle.
func (s *SGD) ZeroGrad() {
	s.net.ZeroGrad()
}
