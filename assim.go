package assim

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrConfiguration is returned when the analysis is misconfigured:
	// unsupported method, no resolvable source of measurement error or
	// a missing observation vector with no derivable default.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrDimensionMismatch is returned when ensemble or covariance
	// dimensions disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNumerical is returned when a matrix decomposition fails to converge.
	ErrNumerical = errors.New("numerical failure")
)

// Method selects the analysis algorithm.
type Method int

const (
	// EnKF is the stochastic ensemble Kalman filter with perturbed observations.
	EnKF Method = iota
	// SRKF is the deterministic square root (ensemble transform) Kalman filter.
	SRKF
)

// ParseMethod parses a method name into a Method.
// Supported names are "enkf" and "sqrtkf"; matching is case-insensitive.
// It returns error if the name is not supported.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(name) {
	case "enkf":
		return EnKF, nil
	case "sqrtkf":
		return SRKF, nil
	}
	return 0, fmt.Errorf("%w: unsupported method: %q", ErrConfiguration, name)
}

// String implements the Stringer interface.
func (m Method) String() string {
	switch m {
	case EnKF:
		return "enkf"
	case SRKF:
		return "sqrtkf"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Truncation controls how many singular values of the innovation
// covariance factor the update retains when building its pseudo-inverse.
type Truncation struct {
	// Threshold is an absolute cutoff on squared singular values.
	// It only applies when Absolute is set.
	Threshold float64
	// Percent is the minimum share of the total energy (sum of squared
	// singular values), in percent, a singular value must carry to be
	// retained. It applies when Absolute is not set.
	Percent float64
	// Absolute selects the Threshold cutoff over the Percent cutoff.
	Absolute bool
}

// DefaultTruncation returns the default truncation policy:
// retain singular values carrying at least 0.01% of the total energy.
func DefaultTruncation() Truncation {
	return Truncation{Percent: 0.01}
}

// Validate validates the truncation policy.
// It returns error if the selected cutoff is not a usable scalar.
func (t Truncation) Validate() error {
	if t.Absolute {
		if t.Threshold < 0 {
			return fmt.Errorf("%w: negative truncation threshold: %v", ErrConfiguration, t.Threshold)
		}
		return nil
	}
	if t.Percent <= 0 {
		return fmt.Errorf("%w: invalid truncation percent: %v", ErrConfiguration, t.Percent)
	}
	return nil
}

// Problem is a resolved, dimensionally consistent analysis problem.
// All matrices are ensembles stored column-wise: the i-th column of every
// ensemble holds the i-th realization. Problems are treated as immutable:
// updaters never modify them and return newly allocated posteriors.
type Problem struct {
	// K is the prior ensemble of states/parameters (n x N).
	K *mat.Dense
	// H is the ensemble of model-predicted observations (m x N).
	H *mat.Dense
	// D is the perturbed observation ensemble (m x N).
	D *mat.Dense
	// E is the measurement error ensemble (m x N), zero mean across columns.
	E *mat.Dense
	// Obs is the observation vector d (m x 1).
	Obs *mat.VecDense
}

// Dims returns the state count n, the measurement count m and the
// ensemble size N of the problem.
func (p *Problem) Dims() (n, m, size int) {
	n, size = p.K.Dims()
	m, _ = p.H.Dims()
	return n, m, size
}

// Updater computes the analysed (posterior) ensemble of a resolved problem.
type Updater interface {
	// Update returns the posterior ensemble. Its shape equals p.K's.
	Update(p *Problem) (*mat.Dense, error)
}
