package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetrendSimple(t *testing.T) {
	t.Run("removes linear trend", func(t *testing.T) {
		tr := newTrace("EHZ", testStart, 100, 2, 4, 6, 8)
		require.NoError(t, tr.DetrendSimple())
		assertSamples(t, []float64{0, 0, 0, 0}, tr.Samples)
	})

	t.Run("keeps deviation from the trend line", func(t *testing.T) {
		tr := newTrace("EHZ", testStart, 100, 0, 5, 0)
		require.NoError(t, tr.DetrendSimple())
		assertSamples(t, []float64{0, 5, 0}, tr.Samples)
	})

	t.Run("single sample zeroed", func(t *testing.T) {
		tr := newTrace("EHZ", testStart, 100, 7)
		require.NoError(t, tr.DetrendSimple())
		assertSamples(t, []float64{0}, tr.Samples)
	})

	t.Run("masked samples rejected", func(t *testing.T) {
		tr := newTrace("EHZ", testStart, 100, 1, math.NaN(), 3)
		assert.ErrorIs(t, tr.DetrendSimple(), ErrMaskedSamples)
	})

	t.Run("empty trace rejected", func(t *testing.T) {
		tr := newTrace("EHZ", testStart, 100)
		assert.Error(t, tr.DetrendSimple())
	})
}

func TestDetrendDemean(t *testing.T) {
	t.Run("removes mean", func(t *testing.T) {
		tr := newTrace("EHZ", testStart, 100, 1, 2, 3)
		require.NoError(t, tr.DetrendDemean())
		assertSamples(t, []float64{-1, 0, 1}, tr.Samples)
	})

	t.Run("masked samples rejected", func(t *testing.T) {
		tr := newTrace("EHZ", testStart, 100, math.NaN())
		assert.ErrorIs(t, tr.DetrendDemean(), ErrMaskedSamples)
	})
}

func TestGroupDetrend(t *testing.T) {
	t.Run("applies both passes to every trace", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 2, 4, 6),
			newTrace("EHN", testStart, 100, 10, 10, 10),
		}}
		require.NoError(t, g.Detrend())
		assertSamples(t, []float64{0, 0, 0}, g.Traces[0].Samples)
		assertSamples(t, []float64{0, 0, 0}, g.Traces[1].Samples)
	})

	t.Run("masked trace surfaces the sentinel", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 1, math.NaN()),
		}}
		assert.ErrorIs(t, g.Detrend(), ErrMaskedSamples)
	})
}
