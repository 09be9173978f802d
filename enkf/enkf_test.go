package enkf

import (
	"testing"

	assim "github.com/milosgajdos/go-assimilate"
	rnd "github.com/milosgajdos/go-assimilate/rand"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// observeFirst builds a problem observing the first state variable of k with
// iid Gaussian noise of standard deviation sigma against the target value obs.
func observeFirst(k *mat.Dense, obs, sigma float64, src rand.Source) *assim.Problem {
	_, size := k.Dims()
	norm := distuv.Normal{Mu: 0, Sigma: sigma, Src: src}

	// both noise draws are re-centered to zero mean, the way the input
	// resolver re-centers derived error ensembles
	hNoise := centered(size, norm)
	eNoise := centered(size, norm)

	h := mat.NewDense(1, size, nil)
	e := mat.NewDense(1, size, nil)
	d := mat.NewDense(1, size, nil)
	for j := 0; j < size; j++ {
		h.Set(0, j, k.At(0, j)+hNoise[j])
		e.Set(0, j, eNoise[j])
		d.Set(0, j, obs+eNoise[j])
	}

	return &assim.Problem{
		K:   k,
		H:   h,
		D:   d,
		E:   e,
		Obs: mat.NewVecDense(1, []float64{obs}),
	}
}

func centered(n int, norm distuv.Normal) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = norm.Rand()
	}
	mean := stat.Mean(vals, nil)
	for i := range vals {
		vals[i] -= mean
	}

	return vals
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	f, err := New(assim.DefaultTruncation(), false)
	assert.NoError(err)
	assert.NotNil(f)

	f, err = New(assim.Truncation{Threshold: -1.0, Absolute: true}, false)
	assert.Error(err)
	assert.Nil(f)

	f, err = New(assim.Truncation{Percent: 0}, false)
	assert.Error(err)
	assert.Nil(f)
}

func TestUpdate(t *testing.T) {
	assert := assert.New(t)

	src := rand.NewSource(5)

	// bivariate prior: mean [1, 2], unit variances, correlation 0.5
	cov := mat.NewSymDense(2, []float64{1.0, 0.5, 0.5, 1.0})
	size := 50
	k, err := rnd.WithCovN(cov, size, src)
	assert.NoError(err)
	for j := 0; j < size; j++ {
		k.Set(0, j, k.At(0, j)+1.0)
		k.Set(1, j, k.At(1, j)+2.0)
	}
	kCopy := mat.DenseCopyOf(k)

	obs := 3.0
	p := observeFirst(k, obs, 0.1, src)
	hCopy := mat.DenseCopyOf(p.H)

	f, err := New(assim.DefaultTruncation(), false)
	assert.NoError(err)

	ka, err := f.Update(p)
	assert.NoError(err)
	assert.NotNil(ka)

	rows, cols := ka.Dims()
	assert.Equal(2, rows)
	assert.Equal(size, cols)

	// the analysed first state variable must move toward the observation
	// without overshooting it
	priorMean := stat.Mean(k.RawRowView(0), nil)
	postMean := stat.Mean(ka.RawRowView(0), nil)
	assert.True(postMean > priorMean)
	assert.True(postMean < obs)

	// assimilating a precise observation must shrink the ensemble spread
	priorVar := stat.Variance(k.RawRowView(0), nil)
	postVar := stat.Variance(ka.RawRowView(0), nil)
	assert.True(postVar < priorVar)

	// inputs must not be modified
	assert.True(mat.Equal(kCopy, p.K))
	assert.True(mat.Equal(hCopy, p.H))
}

func TestUpdateNoInnovation(t *testing.T) {
	assert := assert.New(t)

	// predictions match the observation exactly and carry no error:
	// the analysis must leave the prior untouched
	size := 10
	k := mat.NewDense(2, size, nil)
	for j := 0; j < size; j++ {
		k.Set(0, j, float64(j))
		k.Set(1, j, float64(j)*0.5)
	}

	obs := 1.5
	h := mat.NewDense(1, size, nil)
	d := mat.NewDense(1, size, nil)
	for j := 0; j < size; j++ {
		h.Set(0, j, obs)
		d.Set(0, j, obs)
	}
	e := mat.NewDense(1, size, nil)

	p := &assim.Problem{K: k, H: h, D: d, E: e, Obs: mat.NewVecDense(1, []float64{obs})}

	f, err := New(assim.DefaultTruncation(), false)
	assert.NoError(err)

	ka, err := f.Update(p)
	assert.NoError(err)
	assert.True(mat.EqualApprox(k, ka, 1e-12))
}

func TestUpdateTruncation(t *testing.T) {
	assert := assert.New(t)

	src := rand.NewSource(11)

	cov := mat.NewSymDense(2, []float64{1.0, 0.0, 0.0, 1.0})
	size := 30
	k, err := rnd.WithCovN(cov, size, src)
	assert.NoError(err)

	p := observeFirst(k, 0.5, 0.2, src)

	// an absolute cutoff beyond every singular value still retains the
	// dominant component, so the update must still move the ensemble
	f, err := New(assim.Truncation{Threshold: 1e12, Absolute: true}, false)
	assert.NoError(err)

	ka, err := f.Update(p)
	assert.NoError(err)
	assert.False(mat.EqualApprox(k, ka, 1e-12))
}
