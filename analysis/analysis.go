// Package analysis resolves raw ensemble data assimilation inputs into a
// fully specified problem and dispatches it to the configured update scheme.
package analysis

import (
	"fmt"
	"time"

	assim "github.com/milosgajdos/go-assimilate"
	"github.com/milosgajdos/go-assimilate/enkf"
	"github.com/milosgajdos/go-assimilate/matrix"
	"github.com/milosgajdos/go-assimilate/srkf"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Config configures the analysis.
type Config struct {
	// Method selects the update algorithm.
	Method assim.Method
	// Truncation is the singular value truncation policy shared by both
	// update algorithms.
	Truncation assim.Truncation
	// ErrStd, when positive, synthesizes the measurement error ensemble
	// as iid zero-mean Gaussian noise with this standard deviation. It is
	// only consulted when no error ensemble can be derived from the data.
	ErrStd float64
	// ErrPerc, when positive, synthesizes the measurement error ensemble
	// with per-measurement standard deviations equal to this fraction of
	// the ensemble spread of the model predictions.
	ErrPerc float64
	// Verbose toggles diagnostic logging. It never affects results.
	Verbose bool
	// Src drives error ensemble synthesis and the SRKF rotation draw.
	// A nil Src falls back to a time-seeded source.
	Src rand.Source
}

// DefaultConfig returns the default analysis configuration: EnKF with the
// default truncation policy.
func DefaultConfig() *Config {
	return &Config{
		Method:     assim.EnKF,
		Truncation: assim.DefaultTruncation(),
	}
}

// Observations groups the measurement side inputs of the analysis.
// Any subset may be supplied as long as an error ensemble remains derivable:
// an explicit E, a perturbed ensemble D (with or without d), or d together
// with one of Config.ErrStd/Config.ErrPerc.
type Observations struct {
	// Vec is the observation vector d (one value per measurement).
	Vec mat.Vector
	// D is the perturbed observation ensemble (m x N).
	D *mat.Dense
	// E is the measurement error ensemble (m x N).
	E *mat.Dense
	// R is the measurement error covariance (m x m). The resolver accepts
	// and retains it for callers but never samples E from it: supplying R
	// without E leaves the analysis without an error ensemble, which is a
	// configuration error. Use noise.NewGaussian(R, src).SampleN(N) to
	// sample an error ensemble from a covariance description.
	R mat.Symmetric
}

// Analysis is a resolved analysis call: a dimensionally consistent problem
// bound to the update scheme chosen at resolution time. Every Analysis is
// independent; nothing is shared between calls.
type Analysis struct {
	// problem is the resolved problem instance
	problem *assim.Problem
	// method is the configured update scheme
	method assim.Method
	// r is the retained measurement error covariance, nil unless supplied
	r mat.Symmetric
	// updater computes the posterior ensemble
	updater assim.Updater
}

// New validates and resolves the raw analysis inputs and returns an Analysis.
// K is the prior ensemble (n x N), H the ensemble of model predictions at the
// observation locations (m x N). The measurement error ensemble is resolved
// in this order: explicit obs.E; derived from obs.D (and obs.Vec when given);
// synthesized from cfg.ErrStd or cfg.ErrPerc. A nil obs or cfg selects empty
// observations and DefaultConfig respectively.
// It returns error if any dimensions disagree, no source of measurement error
// is resolvable, the observation vector is missing with no derivable default,
// or the method or truncation configuration is invalid.
func New(K, H *mat.Dense, obs *Observations, cfg *Config) (*Analysis, error) {
	if K == nil || H == nil {
		return nil, fmt.Errorf("%w: both the prior ensemble and the predicted observations must be supplied", assim.ErrConfiguration)
	}
	if obs == nil {
		obs = &Observations{}
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	m, size := H.Dims()
	_, size2 := K.Dims()
	if size != size2 {
		return nil, fmt.Errorf("%w: ensemble size differs between K (%d) and H (%d)", assim.ErrDimensionMismatch, size2, size)
	}

	var d *mat.VecDense
	if obs.Vec != nil {
		if obs.Vec.Len() != m {
			return nil, fmt.Errorf("%w: observation vector length %d, H has %d measurements", assim.ErrDimensionMismatch, obs.Vec.Len(), m)
		}
		d = mat.VecDenseCopyOf(obs.Vec)
	}

	if obs.D != nil {
		rows, cols := obs.D.Dims()
		if rows != m || cols != size {
			return nil, fmt.Errorf("%w: D is %dx%d, H is %dx%d", assim.ErrDimensionMismatch, rows, cols, m, size)
		}
	}

	e := obs.E
	switch {
	case e != nil:
		rows, cols := e.Dims()
		if rows != m || cols != size {
			return nil, fmt.Errorf("%w: E is %dx%d, H is %dx%d", assim.ErrDimensionMismatch, rows, cols, m, size)
		}

	case obs.R != nil:
		rows, cols := obs.R.Dims()
		if rows != m || cols != m {
			return nil, fmt.Errorf("%w: R is %dx%d, H has %d measurements", assim.ErrDimensionMismatch, rows, cols, m)
		}
		// the resolver never samples E from R; without a perturbed
		// ensemble to fall back on there is no error ensemble at all
		if obs.D == nil {
			return nil, fmt.Errorf("%w: no error ensemble can be derived from a covariance alone: sample E from R externally", assim.ErrConfiguration)
		}
		e = matrix.Anomalies(obs.D)

	default:
		switch {
		case obs.D != nil:
			// E = D - d, re-centered to zero mean across the ensemble;
			// when d is absent it defaults to the mean of D below
			e = matrix.Anomalies(obs.D)

		case d == nil:
			return nil, fmt.Errorf("%w: supply d, D, E or R to resolve measurement errors", assim.ErrConfiguration)

		case cfg.ErrStd > 0:
			std := make([]float64, m)
			for i := range std {
				std[i] = cfg.ErrStd
			}
			e = sampleErrors(std, size, cfg.Src)

		case cfg.ErrPerc > 0:
			std := make([]float64, m)
			for i := range std {
				std[i] = cfg.ErrPerc * stat.PopStdDev(H.RawRowView(i), nil)
			}
			e = sampleErrors(std, size, cfg.Src)

		default:
			return nil, fmt.Errorf("%w: no information available to compute measurement errors", assim.ErrConfiguration)
		}
	}

	dd := obs.D
	if dd == nil {
		if d == nil {
			return nil, fmt.Errorf("%w: observation vector is missing and cannot be derived", assim.ErrConfiguration)
		}
		// D = d + E, one perturbed copy of the observations per realization
		dd = mat.NewDense(m, size, nil)
		for i := 0; i < m; i++ {
			for j := 0; j < size; j++ {
				dd.Set(i, j, d.AtVec(i)+e.At(i, j))
			}
		}
	} else if d == nil {
		d = matrix.RowMeans(dd)
	}

	var updater assim.Updater
	var err error
	switch cfg.Method {
	case assim.EnKF:
		updater, err = enkf.New(cfg.Truncation, cfg.Verbose)
	case assim.SRKF:
		updater, err = srkf.New(cfg.Truncation, cfg.Src, cfg.Verbose)
	default:
		return nil, fmt.Errorf("%w: unsupported method: %v", assim.ErrConfiguration, int(cfg.Method))
	}
	if err != nil {
		return nil, err
	}

	return &Analysis{
		problem: &assim.Problem{
			K:   K,
			H:   H,
			D:   dd,
			E:   e,
			Obs: d,
		},
		method:  cfg.Method,
		r:       obs.R,
		updater: updater,
	}, nil
}

// Update computes the analysed (posterior) ensemble and returns it.
// The posterior is a newly allocated matrix of the same shape as the prior;
// none of the resolved inputs is modified.
// It returns error if the update scheme fails numerically.
func (a *Analysis) Update() (*mat.Dense, error) {
	return a.updater.Update(a.problem)
}

// Problem returns the resolved problem instance.
func (a *Analysis) Problem() *assim.Problem {
	return a.problem
}

// Method returns the configured update method.
func (a *Analysis) Method() assim.Method {
	return a.method
}

// R returns the measurement error covariance, nil unless it was supplied.
func (a *Analysis) R() mat.Symmetric {
	return a.r
}

// sampleErrors draws a zero-mean Gaussian error ensemble of n realizations
// with per-measurement standard deviations std.
func sampleErrors(std []float64, n int, src rand.Source) *mat.Dense {
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	e := mat.NewDense(len(std), n, nil)
	for i := range std {
		for j := 0; j < n; j++ {
			e.Set(i, j, std[i]*norm.Rand())
		}
	}

	return e
}
