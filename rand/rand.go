package rand

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// WithCovN draws n random samples from a zero-mean Normal (aka Gaussian) distribution with covariance cov.
// It returns matrix which contains the randomly generated samples stored in its columns.
// The samples are drawn from src; a nil src falls back to a time-seeded source.
// It fails with error if n is non-positive and/or smaller than 1 or if SVD factorization of cov fails.
func WithCovN(cov mat.Symmetric, n int, src rand.Source) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid number of samples requested: %d", n)
	}

	// Use SVD instead of Cholesky as Cholesky can be numerically unstable if cov is (almost) singular
	var svd mat.SVD
	ok := svd.Factorize(cov, mat.SVDFull)
	if !ok {
		return nil, fmt.Errorf("SVD factorization failed")
	}

	U := new(mat.Dense)
	svd.UTo(U)
	vals := svd.Values(nil)
	for i := range vals {
		vals[i] = math.Sqrt(vals[i])
	}
	diag := mat.NewDiagDense(len(vals), vals)
	U.Mul(U, diag)

	norm := normal(src)
	rows, _ := cov.Dims()
	data := make([]float64, rows*n)
	for i := range data {
		data[i] = norm.Rand()
	}
	samples := mat.NewDense(rows, n, data)
	samples.Mul(U, samples)

	return samples, nil
}

// Orthogonal draws a random n x n orthogonal matrix distributed uniformly
// (with respect to the Haar measure) over the orthogonal group O(n).
// The draw is the Q factor of the QR decomposition of an iid standard normal
// matrix, sign-corrected by the diagonal of R to make the distribution uniform.
// The matrix is drawn from src; a nil src falls back to a time-seeded source.
// It fails with error if n is smaller than 1 or if the QR factorization fails.
func Orthogonal(n int, src rand.Source) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid orthogonal matrix size: %d", n)
	}

	norm := normal(src)
	data := make([]float64, n*n)
	for i := range data {
		data[i] = norm.Rand()
	}

	var qr mat.QR
	qr.Factorize(mat.NewDense(n, n, data))

	q := new(mat.Dense)
	qr.QTo(q)
	r := new(mat.Dense)
	qr.RTo(r)

	// Q*R with R forced to a positive diagonal is the unique QR pair; the
	// sign flip carries the correction over to Q
	for j := 0; j < n; j++ {
		if r.At(j, j) < 0 {
			for i := 0; i < n; i++ {
				q.Set(i, j, -q.At(i, j))
			}
		}
	}

	return q, nil
}

func normal(src rand.Source) distuv.Normal {
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return distuv.Normal{Mu: 0, Sigma: 1, Src: src}
}
