package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertSamples compares sample slices treating NaN as equal to NaN.
func assertSamples(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "sample %d: want NaN, got %g", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9, "sample %d", i)
	}
}

func TestParseMergeStrategy(t *testing.T) {
	for _, valid := range []string{"", "safe", "overwrite"} {
		strategy, err := ParseMergeStrategy(valid)
		require.NoError(t, err)
		assert.Equal(t, MergeStrategy(valid), strategy)
	}

	_, err := ParseMergeStrategy("bogus")
	assert.ErrorIs(t, err, ErrBadMergeStrategy)
}

func TestCleanupMerge(t *testing.T) {
	t.Run("joins contiguous segments", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 1, 2, 3),
			newTrace("EHZ", testStart.Add(30*time.Millisecond), 100, 4, 5),
		}}
		g.CleanupMerge()

		require.Len(t, g.Traces, 1)
		assertSamples(t, []float64{1, 2, 3, 4, 5}, g.Traces[0].Samples)
	})

	t.Run("keeps gapped segments apart", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 1, 2, 3),
			newTrace("EHZ", testStart.Add(60*time.Millisecond), 100, 4, 5),
		}}
		g.CleanupMerge()

		assert.Len(t, g.Traces, 2)
	})

	t.Run("keeps rate mismatches apart", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 1, 2, 3),
			newTrace("EHZ", testStart.Add(30*time.Millisecond), 200, 4, 5),
		}}
		g.CleanupMerge()

		assert.Len(t, g.Traces, 2)
	})

	t.Run("sorts segments by start time", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart.Add(30*time.Millisecond), 100, 4, 5),
			newTrace("EHZ", testStart, 100, 1, 2, 3),
		}}
		g.CleanupMerge()

		require.Len(t, g.Traces, 1)
		assertSamples(t, []float64{1, 2, 3, 4, 5}, g.Traces[0].Samples)
		assert.Equal(t, testStart, g.Traces[0].StartTime)
	})

	t.Run("channels merge independently", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 1, 2),
			newTrace("EHN", testStart, 100, 6, 7),
			newTrace("EHZ", testStart.Add(20*time.Millisecond), 100, 3),
		}}
		g.CleanupMerge()

		require.Len(t, g.Traces, 2)
		assertSamples(t, []float64{1, 2, 3}, g.Traces[0].Samples)
		assertSamples(t, []float64{6, 7}, g.Traces[1].Samples)
	})
}

func TestMergeSafe(t *testing.T) {
	t.Run("gap becomes masked samples", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 1, 2, 3),
			newTrace("EHZ", testStart.Add(60*time.Millisecond), 100, 4, 5),
		}}
		interpolated, err := g.MergeWith(MergeSafe)

		require.NoError(t, err)
		assert.False(t, interpolated)
		require.Len(t, g.Traces, 1)
		assertSamples(t, []float64{1, 2, 3, math.NaN(), math.NaN(), math.NaN(), 4, 5}, g.Traces[0].Samples)
		assert.True(t, g.Traces[0].HasMasked())
	})

	t.Run("overlap becomes masked samples", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 1, 2, 3, 4),
			newTrace("EHZ", testStart.Add(20*time.Millisecond), 100, 10, 11),
		}}
		_, err := g.MergeWith(MergeSafe)

		require.NoError(t, err)
		require.Len(t, g.Traces, 1)
		assertSamples(t, []float64{1, 2, math.NaN(), math.NaN()}, g.Traces[0].Samples)
	})

	t.Run("single segment untouched", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 1, 2, 3),
		}}
		_, err := g.MergeWith(MergeSafe)

		require.NoError(t, err)
		require.Len(t, g.Traces, 1)
		assertSamples(t, []float64{1, 2, 3}, g.Traces[0].Samples)
	})
}

func TestMergeOverwrite(t *testing.T) {
	t.Run("short gap is interpolated", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 0, 0, 10),
			newTrace("EHZ", testStart.Add(60*time.Millisecond), 100, 50, 0),
		}}
		interpolated, err := g.MergeWith(MergeOverwrite)

		require.NoError(t, err)
		assert.True(t, interpolated)
		require.Len(t, g.Traces, 1)
		assertSamples(t, []float64{0, 0, 10, 20, 30, 40, 50, 0}, g.Traces[0].Samples)
	})

	t.Run("long gap splits the channel", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 1, 2),
			newTrace("EHZ", testStart.Add(110*time.Millisecond), 100, 3, 4),
		}}
		interpolated, err := g.MergeWith(MergeOverwrite)

		require.NoError(t, err)
		assert.False(t, interpolated)
		assert.Len(t, g.Traces, 2)
	})

	t.Run("overlap prefers the later segment", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 1, 2, 3, 4),
			newTrace("EHZ", testStart.Add(20*time.Millisecond), 100, 10, 11),
		}}
		interpolated, err := g.MergeWith(MergeOverwrite)

		require.NoError(t, err)
		assert.False(t, interpolated)
		require.Len(t, g.Traces, 1)
		assertSamples(t, []float64{1, 2, 10, 11}, g.Traces[0].Samples)
	})

	t.Run("rate mismatch splits the channel", func(t *testing.T) {
		g := &StreamGroup{Traces: []*Trace{
			newTrace("EHZ", testStart, 100, 1, 2),
			newTrace("EHZ", testStart.Add(20*time.Millisecond), 200, 3, 4),
		}}
		_, err := g.MergeWith(MergeOverwrite)

		require.NoError(t, err)
		assert.Len(t, g.Traces, 2)
	})
}

func TestMergeWithBadStrategy(t *testing.T) {
	g := &StreamGroup{Traces: []*Trace{newTrace("EHZ", testStart, 100, 1)}}
	_, err := g.MergeWith(MergeStrategy("bogus"))
	assert.ErrorIs(t, err, ErrBadMergeStrategy)
}

func TestMergeWithNone(t *testing.T) {
	g := &StreamGroup{Traces: []*Trace{
		newTrace("EHZ", testStart, 100, 1, 2),
		newTrace("EHZ", testStart.Add(time.Second), 100, 3),
	}}
	interpolated, err := g.MergeWith(MergeNone)

	require.NoError(t, err)
	assert.False(t, interpolated)
	assert.Len(t, g.Traces, 2)
}
