package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/core/parallel"
)

// rows below this count are processed sequentially
const forwardParallelThreshold = 256

// LinearClassifier is a softmax-regression classifier: logits = XWᵀ + b.
// It implements Trainable with analytic gradients, making it the reference
// model for the fingerprint trainer and the test suite.
type LinearClassifier struct {
	numFeatures int
	numClasses  int

	weights []float64 // numClasses x numFeatures, row-major
	bias    []float64 // numClasses
	gradW   []float64
	gradB   []float64
	lastIn  *mat.Dense // input of the most recent Forward, for Backward
}

// NewLinearClassifier creates a classifier with weights drawn uniformly from
// [-1/sqrt(numFeatures), 1/sqrt(numFeatures)] using the supplied random
// source and zero biases.
func NewLinearClassifier(numFeatures, numClasses int, rng *rand.Rand) *LinearClassifier {
	c := &LinearClassifier{
		numFeatures: numFeatures,
		numClasses:  numClasses,
		weights:     make([]float64, numClasses*numFeatures),
		bias:        make([]float64, numClasses),
		gradW:       make([]float64, numClasses*numFeatures),
		gradB:       make([]float64, numClasses),
	}
	bound := 1.0 / math.Sqrt(float64(numFeatures))
	for i := range c.weights {
		c.weights[i] = (rng.Float64()*2 - 1) * bound
	}
	return c
}

// NumFeatures returns the expected input width.
func (c *LinearClassifier) NumFeatures() int { return c.numFeatures }

// NumClasses implements Classifier.
func (c *LinearClassifier) NumClasses() int { return c.numClasses }

// Forward implements Classifier. The input batch is retained until the next
// Forward call so Backward can form parameter gradients.
func (c *LinearClassifier) Forward(X *mat.Dense) *mat.Dense {
	rows, cols := X.Dims()
	if cols != c.numFeatures {
		panic("model: input width does not match classifier features")
	}

	out := mat.NewDense(rows, c.numClasses, nil)
	parallel.ParallelizeWithThreshold(rows, forwardParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			x := X.RawRowView(i)
			for k := 0; k < c.numClasses; k++ {
				w := c.weights[k*c.numFeatures : (k+1)*c.numFeatures]
				sum := c.bias[k]
				for j, xj := range x {
					sum += w[j] * xj
				}
				out.Set(i, k, sum)
			}
		}
	})

	c.lastIn = X
	return out
}

// Backward implements Trainable. gradLogits must have the shape of the most
// recent Forward output; gradients accumulate until ZeroGrad.
func (c *LinearClassifier) Backward(gradLogits *mat.Dense) {
	if c.lastIn == nil {
		panic("model: Backward called before Forward")
	}
	rows, cols := gradLogits.Dims()
	inRows, _ := c.lastIn.Dims()
	if cols != c.numClasses || rows != inRows {
		panic("model: gradient shape does not match last forward pass")
	}

	for i := 0; i < rows; i++ {
		x := c.lastIn.RawRowView(i)
		g := gradLogits.RawRowView(i)
		for k := 0; k < c.numClasses; k++ {
			gk := g[k]
			if gk == 0 {
				continue
			}
			gw := c.gradW[k*c.numFeatures : (k+1)*c.numFeatures]
			for j, xj := range x {
				gw[j] += gk * xj
			}
			c.gradB[k] += gk
		}
	}
}

// ZeroGrad implements Network.
func (c *LinearClassifier) ZeroGrad() {
	for i := range c.gradW {
		c.gradW[i] = 0
	}
	for i := range c.gradB {
		c.gradB[i] = 0
	}
}

// Params implements Trainable.
func (c *LinearClassifier) Params() []*Param {
	return []*Param{
		{Data: c.weights, Grad: c.gradW},
		{Data: c.bias, Grad: c.gradB},
	}
}
