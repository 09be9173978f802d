// Package quantmap remaps Gaussian ensemble realizations onto a target
// mixture-Gaussian distribution through empirical CDF matching. It is a
// pre/post-processing companion to the analysis engine: ensembles may be
// Gaussianized before an update or given back their target marginal shape
// after one. The engine itself never invokes it.
package quantmap

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// defaultSamples is the default size of the sample pool backing the
// target mixture CDF.
const defaultSamples = 100000

// Config describes the target mixture-Gaussian distribution.
// A Config is read-only to ToMixture and safe to reuse across calls.
type Config struct {
	// Means holds the mean of every mixture component.
	Means []float64
	// StdDevs holds the standard deviation of every mixture component.
	StdDevs []float64
	// Weights holds the mixing proportion of every component. Weights are
	// normalized to sum to one, so any positive scale may be used.
	Weights []float64
	// Samples is the size of the sample pool backing the target CDF.
	// Zero selects defaultSamples.
	Samples int
	// Src drives the component sampling. A nil Src falls back to a
	// time-seeded source.
	Src rand.Source
}

// Validate validates the mixture specification.
// It returns error if the component lists are empty or of unequal lengths,
// any standard deviation is not positive, any weight is negative or the
// weights sum to zero.
func (c *Config) Validate() error {
	k := len(c.Means)
	if k == 0 {
		return fmt.Errorf("empty mixture specification")
	}
	if len(c.StdDevs) != k || len(c.Weights) != k {
		return fmt.Errorf("mixture component count mismatch: %d means, %d std devs, %d weights", k, len(c.StdDevs), len(c.Weights))
	}
	for i, s := range c.StdDevs {
		if s <= 0 {
			return fmt.Errorf("invalid standard deviation of component %d: %v", i, s)
		}
	}
	for i, w := range c.Weights {
		if w < 0 {
			return fmt.Errorf("invalid weight of component %d: %v", i, w)
		}
	}
	if floats.Sum(c.Weights) <= 0 {
		return fmt.Errorf("mixture weights sum to zero")
	}
	if c.Samples < 0 {
		return fmt.Errorf("invalid sample pool size: %d", c.Samples)
	}

	return nil
}

// ToMixture remaps the values of ens onto the mixture distribution described
// by cfg and returns them in a newly allocated matrix of the same shape.
// Every value is pushed through the empirical CDF of ens and pulled back
// through the quantile function of a sample pool drawn from the target
// mixture, so the output preserves the rank order of ens while following the
// target marginal distribution.
// It returns error if ens is nil or cfg fails to validate.
func ToMixture(ens *mat.Dense, cfg *Config) (*mat.Dense, error) {
	if ens == nil {
		return nil, fmt.Errorf("invalid ensemble supplied")
	}
	if cfg == nil {
		return nil, fmt.Errorf("invalid mixture configuration supplied")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src := cfg.Src
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}

	pool := cfg.Samples
	if pool == 0 {
		pool = defaultSamples
	}

	wsum := floats.Sum(cfg.Weights)

	// build the target CDF from a pool of mixture samples
	target := make([]float64, 0, pool)
	for i := range cfg.Means {
		n := int(math.Round(float64(pool) * cfg.Weights[i] / wsum))
		norm := distuv.Normal{Mu: cfg.Means[i], Sigma: cfg.StdDevs[i], Src: src}
		for j := 0; j < n; j++ {
			target = append(target, norm.Rand())
		}
	}
	if len(target) == 0 {
		return nil, fmt.Errorf("sample pool too small for the mixture weights: %d", pool)
	}
	sort.Float64s(target)

	rows, cols := ens.Dims()

	// empirical CDF of the current values
	current := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		copy(current[i*cols:(i+1)*cols], ens.RawRowView(i))
	}
	sort.Float64s(current)

	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p := stat.CDF(ens.At(i, j), stat.Empirical, current, nil)
			out.Set(i, j, stat.Quantile(p, stat.LinInterp, target, nil))
		}
	}

	return out, nil
}
