package srkf

import (
	"fmt"
	"log"
	"math"

	assim "github.com/milosgajdos/go-assimilate"
	mtx "github.com/milosgajdos/go-assimilate/matrix"
	rnd "github.com/milosgajdos/go-assimilate/rand"
	"github.com/milosgajdos/matrix"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Filter is the deterministic square root (ensemble transform) Kalman Filter.
// It updates the ensemble mean with the unperturbed observation vector and
// reconstitutes the posterior spread through an ensemble transform rotated
// by a random orthogonal matrix, so no observation perturbation is needed.
type Filter struct {
	// tr is the singular value truncation policy
	tr assim.Truncation
	// src drives the random orthogonal rotation
	src rand.Source
	// verbose turns on diagnostic logging
	verbose bool
}

// New creates new square root filter with the given truncation policy and returns it.
// The orthogonal rotation of the ensemble transform is drawn from src; a nil
// src falls back to a time-seeded source, which makes results irreproducible
// across calls. Callers wanting reproducibility or isolation between
// concurrent calls must hand every filter its own seeded source.
// It returns error if the truncation policy is invalid.
func New(tr assim.Truncation, src rand.Source, verbose bool) (*Filter, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}

	return &Filter{
		tr:      tr,
		src:     src,
		verbose: verbose,
	}, nil
}

// Update computes the analysed ensemble of the resolved problem p and returns it.
// The posterior has the same shape as p.K; no input matrix is modified.
// It returns error if either SVD fails to converge or the rotation draw fails.
func (f *Filter) Update(p *assim.Problem) (*mat.Dense, error) {
	n, m, size := p.Dims()

	kMean := mtx.RowMeans(p.K)
	hMean := mtx.RowMeans(p.H)

	// innovation of the ensemble mean: a single vector, not one per realization
	innov := &mat.VecDense{}
	innov.SubVec(p.Obs, hMean)

	hDash := mtx.Anomalies(p.H)
	kDash := mtx.Anomalies(p.K)

	he := &mat.Dense{}
	he.Add(hDash, p.E)

	u, s, share, err := mtx.TruncatedSVD(he, f.tr)
	if err != nil {
		return nil, err
	}

	kaMean := mat.NewVecDense(n, nil)
	kaMean.CopyVec(kMean)

	// inverse of the innovation covariance, restricted to the retained
	// subspace; it stays zero when the factor carries no signal at all
	cInv := mat.NewDense(m, m, nil)

	if len(s) > 0 {
		if f.verbose {
			log.Printf("analysis: retained %d dominant singular value(s), energy share %.4f%%", len(s), share)
		}

		// x1 = diag(1/s^2) * U'
		x1 := mat.NewDense(len(s), m, nil)
		for i := range s {
			e := s[i] * s[i]
			for j := 0; j < m; j++ {
				x1.Set(i, j, u.At(j, i)/e)
			}
		}

		// mean update: the EnKF propagation chain applied to the mean innovation
		x2 := &mat.VecDense{}
		x2.MulVec(x1, innov)
		x3 := &mat.VecDense{}
		x3.MulVec(u, x2)
		x4 := &mat.VecDense{}
		x4.MulVec(hDash.T(), x3)

		upd := &mat.VecDense{}
		upd.MulVec(kDash, x4)
		kaMean.AddVec(kMean, upd)

		// C^-1 = U * diag(1/s^2) * U'
		cInv.Mul(u, x1)
	}

	// M = I - H'^T*C^-1*H' measures the fractional reduction of ensemble
	// spread; its diagonal is exactly 1 - diag(H'^T*C^-1*H')
	yc := &mat.Dense{}
	yc.Mul(cInv, hDash)
	y := &mat.Dense{}
	y.Mul(hDash.T(), yc)

	eye, err := matrix.NewDenseValIdentity(size, 1.0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", assim.ErrNumerical, err)
	}
	red := &mat.Dense{}
	red.Sub(eye, y)

	// square root of M through its SVD; M is positive semi-definite in
	// exact arithmetic so negative values are clamped to zero
	var svd mat.SVD
	if ok := svd.Factorize(red, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD factorization of the transform failed", assim.ErrNumerical)
	}

	vals := svd.Values(nil)
	for i := range vals {
		if vals[i] < 0 {
			vals[i] = 0
		}
		vals[i] = math.Sqrt(vals[i])
	}

	u2 := &mat.Dense{}
	svd.UTo(u2)
	v2 := &mat.Dense{}
	svd.VTo(v2)

	// T = U2 * diag(sqrt(vals)) * V2'
	transform := &mat.Dense{}
	transform.Mul(u2, mat.NewDiagDense(size, vals))
	transform.Mul(transform, v2.T())

	// a random rotation spreads the posterior anomalies over the full
	// ensemble without changing their covariance
	theta, err := rnd.Orthogonal(size, f.src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", assim.ErrNumerical, err)
	}

	pert := &mat.Dense{}
	pert.Mul(kDash, transform)
	pert.Mul(pert, theta.T())

	ka := mat.NewDense(n, size, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < size; j++ {
			ka.Set(i, j, kaMean.AtVec(i)+pert.At(i, j))
		}
	}

	return ka, nil
}
