package noise

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Gaussian is zero-mean Gaussian measurement noise with covariance cov.
// It is the bridge between a covariance description of measurement error (R)
// and the error ensemble (E) the analysis consumes: callers holding only R
// sample an ensemble with SampleN before constructing the analysis.
type Gaussian struct {
	// dist is a multivariate normal distribution
	dist *distmv.Normal
	// cov is the noise covariance
	cov mat.Symmetric
}

// NewGaussian creates new zero-mean Gaussian noise with covariance cov.
// Samples are drawn from src; a nil src falls back to a time-seeded source.
// It returns error if it fails to create the underlying distribution.
func NewGaussian(cov mat.Symmetric, src rand.Source) (*Gaussian, error) {
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}

	size, _ := cov.Dims()
	dist, ok := distmv.NewNormal(make([]float64, size), cov, rand.New(src))
	if !ok {
		return nil, fmt.Errorf("failed to create new Gaussian noise")
	}

	return &Gaussian{
		dist: dist,
		cov:  cov,
	}, nil
}

// Sample generates a single sample of the noise and returns it.
func (g *Gaussian) Sample() mat.Vector {
	r := g.dist.Rand(nil)
	return mat.NewVecDense(len(r), r)
}

// SampleN generates an ensemble of n noise realizations and returns them
// stored in the columns of an m x n matrix, m being the noise dimension.
// It returns error if n is not positive.
func (g *Gaussian) SampleN(n int) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid ensemble size: %d", n)
	}

	m, _ := g.cov.Dims()
	e := mat.NewDense(m, n, nil)
	for j := 0; j < n; j++ {
		r := g.dist.Rand(nil)
		for i := 0; i < m; i++ {
			e.Set(i, j, r[i])
		}
	}

	return e, nil
}

// Cov returns the noise covariance matrix.
func (g *Gaussian) Cov() mat.Symmetric {
	return g.cov
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nCov=%v\n}", mat.Formatted(g.cov, mat.Prefix("    "), mat.Squeeze()))
}
