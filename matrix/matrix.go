package matrix

import (
	"fmt"

	assim "github.com/milosgajdos/go-assimilate"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RowSums returns a slice containing m row sums.
// It panics if m is nil.
func RowSums(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	sum := make([]float64, rows)

	for i := 0; i < rows; i++ {
		sum[i] = floats.Sum(m.RawRowView(i))
	}

	return sum
}

// ColSums returns a slice containing m column sums.
// It panics if m is nil.
func ColSums(m *mat.Dense) []float64 {
	_, cols := m.Dims()
	sum := make([]float64, cols)

	for i := 0; i < cols; i++ {
		sum[i] = mat.Sum(m.ColView(i))
	}

	return sum
}

// RowMeans returns a vector containing m row means i.e. the mean of every
// ensemble quantity across all realizations.
// It panics if m is nil.
func RowMeans(m *mat.Dense) *mat.VecDense {
	rows, cols := m.Dims()
	means := RowSums(m)

	for i := 0; i < rows; i++ {
		means[i] /= float64(cols)
	}

	return mat.NewVecDense(rows, means)
}

// Anomalies returns a new matrix containing the deviations of every
// realization of m from the ensemble (row-wise) mean.
// It panics if m is nil.
func Anomalies(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	means := RowMeans(m)

	a := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			a.Set(i, j, m.At(i, j)-means.AtVec(i))
		}
	}

	return a
}

// TruncatedSVD factorizes m and returns the retained left singular vectors
// and singular values under the given truncation policy together with the
// share (in percent) of the total energy the retained values carry.
// Singular values are returned unsquared; the truncation policy operates on
// their squares (the energies). At least one singular value is retained
// whenever m has a non-zero singular value; if m is entirely zero, no
// components are retained and u is nil.
// It returns error if the SVD factorization fails to converge.
func TruncatedSVD(m *mat.Dense, tr assim.Truncation) (u *mat.Dense, s []float64, share float64, err error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return nil, nil, 0, fmt.Errorf("%w: SVD factorization failed", assim.ErrNumerical)
	}

	vals := svd.Values(nil)
	energies := make([]float64, len(vals))
	for i, v := range vals {
		energies[i] = v * v
	}
	total := floats.Sum(energies)
	if total == 0 {
		return nil, nil, 0, nil
	}

	// singular values come sorted in decreasing order so the retained set
	// is always a prefix
	p := 0
	if tr.Absolute {
		for _, e := range energies {
			if e < tr.Threshold {
				break
			}
			p++
		}
	} else {
		cutoff := tr.Percent / 100.0
		for _, e := range energies {
			if e/total < cutoff {
				break
			}
			p++
		}
	}
	if p == 0 {
		p = 1
	}

	full := &mat.Dense{}
	svd.UTo(full)
	rows, _ := full.Dims()

	u = mat.NewDense(rows, p, nil)
	u.Copy(full.Slice(0, rows, 0, p))

	share = 100.0 * floats.Sum(energies[:p]) / total

	return u, vals[:p], share, nil
}
