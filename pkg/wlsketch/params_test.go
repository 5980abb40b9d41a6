package wlsketch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnTheFlyParamsDeterministic(t *testing.T) {
	gen, err := NewParamGenerator(8, false, 0)
	require.NoError(t, err)

	first := gen.Params(12345)
	second := gen.Params(12345)
	assert.Equal(t, first, second)

	// A fresh generator must reproduce the same row: parameters are a pure
	// function of the label.
	other, err := NewParamGenerator(8, false, 0)
	require.NoError(t, err)
	assert.Equal(t, first, other.Params(12345))
}

func TestOnTheFlyParamsIndependentOfCallOrder(t *testing.T) {
	a, err := NewParamGenerator(4, false, 0)
	require.NoError(t, err)
	b, err := NewParamGenerator(4, false, 0)
	require.NoError(t, err)

	labels := []uint64{7, 99, 3, 1234567}
	for _, l := range labels {
		a.Params(l)
	}
	for i := len(labels) - 1; i >= 0; i-- {
		b.Params(labels[i])
	}
	for _, l := range labels {
		assert.Equal(t, a.Params(l), b.Params(l), "label %d", l)
	}
}

func TestOnTheFlyParamRanges(t *testing.T) {
	gen, err := NewParamGenerator(16, false, 0)
	require.NoError(t, err)

	for _, label := range []uint64{1, 2, 42, 1 << 40} {
		row := gen.Params(label)
		require.Len(t, row.R, 16)
		for i := 0; i < 16; i++ {
			assert.Greater(t, row.R[i], 0.0)
			assert.Greater(t, row.C[i], 0.0)
			assert.GreaterOrEqual(t, row.Beta[i], 0.0)
			assert.Less(t, row.Beta[i], 1.0)
		}
	}
}

func TestPregenParamsDeterministic(t *testing.T) {
	a, err := NewParamGenerator(8, true, 64)
	require.NoError(t, err)
	a.Pregenerate()

	b, err := NewParamGenerator(8, true, 64)
	require.NoError(t, err)
	b.Pregenerate()

	for _, label := range []uint64{0, 1, 17, 9999999} {
		assert.Equal(t, a.Params(label), b.Params(label), "label %d", label)
	}
}

func TestPregenParamsRequireTable(t *testing.T) {
	gen, err := NewParamGenerator(8, true, 64)
	require.NoError(t, err)
	assert.Panics(t, func() { gen.Params(42) })
}

func TestPregenRowCountValidated(t *testing.T) {
	_, err := NewParamGenerator(8, true, 0)
	assert.Error(t, err)
}
