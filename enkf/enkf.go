package enkf

import (
	"log"

	assim "github.com/milosgajdos/go-assimilate"
	"github.com/milosgajdos/go-assimilate/matrix"
	"gonum.org/v1/gonum/mat"
)

// inflation scales the error ensemble inside the innovation covariance
// factor. It is a hook for covariance inflation; 1.0 leaves the prior
// error statistics untouched.
const inflation = 1.0

// Filter is the stochastic Ensemble Kalman Filter (EnKF).
// It conditions every realization of the prior ensemble on its own perturbed
// copy of the observations, which keeps the posterior ensemble spread from
// collapsing.
type Filter struct {
	// tr is the singular value truncation policy
	tr assim.Truncation
	// verbose turns on diagnostic logging
	verbose bool
}

// New creates new EnKF filter with the given truncation policy and returns it.
// It returns error if the truncation policy is invalid.
func New(tr assim.Truncation, verbose bool) (*Filter, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}

	return &Filter{
		tr:      tr,
		verbose: verbose,
	}, nil
}

// Update computes the analysed ensemble of the resolved problem p and returns it.
// The posterior has the same shape as p.K; no input matrix is modified.
// It returns error if the SVD of the innovation covariance factor fails to converge.
func (f *Filter) Update(p *assim.Problem) (*mat.Dense, error) {
	hDash := matrix.Anomalies(p.H)
	kDash := matrix.Anomalies(p.K)

	// HE = H' + E is the square root factor of the innovation covariance
	he := &mat.Dense{}
	he.Scale(inflation, p.E)
	he.Add(hDash, he)

	u, s, share, err := matrix.TruncatedSVD(he, f.tr)
	if err != nil {
		return nil, err
	}

	// no spread and no error: the prior already matches the observations
	if len(s) == 0 {
		ka := &mat.Dense{}
		ka.CloneFrom(p.K)
		return ka, nil
	}

	if f.verbose {
		log.Printf("analysis: retained %d dominant singular value(s), energy share %.4f%%", len(s), share)
	}

	m, _ := p.H.Dims()

	// x1 = diag(1/s^2) * U': together with the U below this applies the
	// pseudo-inverse of the innovation covariance on the retained subspace
	x1 := mat.NewDense(len(s), m, nil)
	for i := range s {
		e := s[i] * s[i]
		for j := 0; j < m; j++ {
			x1.Set(i, j, u.At(j, i)/e)
		}
	}

	// ensemble innovations: perturbed observations minus predictions
	dDash := &mat.Dense{}
	dDash.Sub(p.D, p.H)

	x2 := &mat.Dense{}
	x2.Mul(x1, dDash)
	x3 := &mat.Dense{}
	x3.Mul(u, x2)
	x4 := &mat.Dense{}
	x4.Mul(hDash.T(), x3)

	ka := &mat.Dense{}
	ka.Mul(kDash, x4)
	ka.Add(p.K, ka)

	return ka, nil
}
