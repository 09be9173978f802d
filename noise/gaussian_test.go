package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestNewGaussian(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{0.25, 0, 0, 0.25})

	g, err := NewGaussian(cov, nil)
	assert.NoError(err)
	assert.NotNil(g)
	assert.Equal(cov, g.Cov())

	// non-PSD covariance must be rejected
	bad := mat.NewSymDense(2, []float64{-1, 0, 0, -1})
	g, err = NewGaussian(bad, nil)
	assert.Error(err)
	assert.Nil(g)
}

func TestGaussianSample(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{0.25, 0, 0, 0.25})
	g, err := NewGaussian(cov, rand.NewSource(7))
	assert.NoError(err)

	s := g.Sample()
	assert.NotNil(s)
	assert.Equal(2, s.Len())
}

func TestGaussianSampleN(t *testing.T) {
	assert := assert.New(t)

	sigma := 0.5
	cov := mat.NewSymDense(1, []float64{sigma * sigma})
	g, err := NewGaussian(cov, rand.NewSource(7))
	assert.NoError(err)

	e, err := g.SampleN(-1)
	assert.Error(err)
	assert.Nil(e)

	n := 5000
	e, err = g.SampleN(n)
	assert.NoError(err)
	assert.NotNil(e)

	rows, cols := e.Dims()
	assert.Equal(1, rows)
	assert.Equal(n, cols)

	// sample statistics must approach the configured noise statistics
	mean, std := stat.MeanStdDev(e.RawRowView(0), nil)
	assert.InDelta(0.0, mean, 0.05)
	assert.InDelta(sigma, std, 0.05)
}
