package assim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestParseMethod(t *testing.T) {
	assert := assert.New(t)

	m, err := ParseMethod("enkf")
	assert.NoError(err)
	assert.Equal(EnKF, m)

	m, err = ParseMethod("SqrtKF")
	assert.NoError(err)
	assert.Equal(SRKF, m)

	_, err = ParseMethod("3dvar")
	assert.Error(err)
	assert.True(errors.Is(err, ErrConfiguration))
}

func TestMethodString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("enkf", EnKF.String())
	assert.Equal("sqrtkf", SRKF.String())
	assert.Equal("Method(42)", Method(42).String())
}

func TestTruncation(t *testing.T) {
	assert := assert.New(t)

	tr := DefaultTruncation()
	assert.NoError(tr.Validate())
	assert.False(tr.Absolute)
	assert.InDelta(0.01, tr.Percent, 1e-12)

	assert.NoError(Truncation{Threshold: 0, Absolute: true}.Validate())
	assert.NoError(Truncation{Threshold: 1.5, Absolute: true}.Validate())

	err := Truncation{Threshold: -1, Absolute: true}.Validate()
	assert.True(errors.Is(err, ErrConfiguration))

	err = Truncation{Percent: 0}.Validate()
	assert.True(errors.Is(err, ErrConfiguration))
}

func TestProblemDims(t *testing.T) {
	assert := assert.New(t)

	p := &Problem{
		K:   mat.NewDense(3, 10, nil),
		H:   mat.NewDense(2, 10, nil),
		D:   mat.NewDense(2, 10, nil),
		E:   mat.NewDense(2, 10, nil),
		Obs: mat.NewVecDense(2, nil),
	}

	n, m, size := p.Dims()
	assert.Equal(3, n)
	assert.Equal(2, m)
	assert.Equal(10, size)
}
