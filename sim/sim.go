// Package sim provides synthetic twin experiment helpers: linear observation
// operators for turning state ensembles into predicted observation ensembles
// and plots for inspecting the effect of an analysis update.
package sim

import (
	"fmt"

	"github.com/milosgajdos/go-assimilate/noise"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Linear observes state ensembles through a fixed linear operator with
// additive zero-mean Gaussian measurement noise.
type Linear struct {
	// c is the observation operator (m x n)
	c *mat.Dense
	// noise is the measurement noise model
	noise *noise.Gaussian
}

// NewLinear creates a linear observation model with operator c and
// measurement noise covariance r. Noise is drawn from src; a nil src falls
// back to a time-seeded source.
// It returns error if c is nil, r does not match c's row count or the noise
// model fails to be created.
func NewLinear(c *mat.Dense, r mat.Symmetric, src rand.Source) (*Linear, error) {
	if c == nil || r == nil {
		return nil, fmt.Errorf("observation operator and noise covariance must be supplied")
	}

	m, _ := c.Dims()
	if size, _ := r.Dims(); size != m {
		return nil, fmt.Errorf("noise covariance is %dx%d, operator has %d rows", size, size, m)
	}

	n, err := noise.NewGaussian(r, src)
	if err != nil {
		return nil, err
	}

	return &Linear{
		c:     c,
		noise: n,
	}, nil
}

// Observe maps the state ensemble k through the observation operator and
// perturbs every realization with a fresh noise sample: H = C*K + E.
// It returns error if k's row count does not match the operator.
func (l *Linear) Observe(k *mat.Dense) (*mat.Dense, error) {
	_, cols := l.c.Dims()
	rows, size := k.Dims()
	if rows != cols {
		return nil, fmt.Errorf("state ensemble has %d rows, operator expects %d", rows, cols)
	}

	h := &mat.Dense{}
	h.Mul(l.c, k)

	e, err := l.noise.SampleN(size)
	if err != nil {
		return nil, err
	}
	h.Add(h, e)

	return h, nil
}

// Observation maps a single true state x through the observation operator
// without noise: d = C*x. It is the noiseless observation a twin experiment
// assimilates against.
// It returns error if x's length does not match the operator.
func (l *Linear) Observation(x mat.Vector) (*mat.VecDense, error) {
	_, cols := l.c.Dims()
	if x.Len() != cols {
		return nil, fmt.Errorf("state vector has %d entries, operator expects %d", x.Len(), cols)
	}

	d := &mat.VecDense{}
	d.MulVec(l.c, x)

	return d, nil
}

// Noise returns the measurement noise model of the observation model.
func (l *Linear) Noise() *noise.Gaussian {
	return l.noise
}
