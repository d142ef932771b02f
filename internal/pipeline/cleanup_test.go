package pipeline_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakelab/seispick/internal/domain"
	"github.com/quakelab/seispick/internal/observability"
	"github.com/quakelab/seispick/internal/pipeline"
)

var testStart = time.Date(2010, 1, 10, 5, 0, 0, 0, time.UTC)

func newCleaner() *pipeline.Cleaner {
	return pipeline.NewCleaner(slog.Default(), observability.NewMetricsForTesting())
}

func mkTrace(station, channel string, start time.Time, samples ...float64) *domain.Trace {
	return &domain.Trace{
		Network:      "BW",
		Station:      station,
		Channel:      channel,
		SamplingRate: 100,
		StartTime:    start,
		Samples:      samples,
	}
}

func zneGroup(station string) *domain.StreamGroup {
	return &domain.StreamGroup{Traces: []*domain.Trace{
		mkTrace(station, "EHE", testStart, 1, 2, 3),
		mkTrace(station, "EHN", testStart, 4, 5, 6),
		mkTrace(station, "EHZ", testStart, 7, 8, 9),
	}}
}

func TestCleanupAccepts(t *testing.T) {
	t.Run("lone vertical trace unchanged", func(t *testing.T) {
		groups := []*domain.StreamGroup{
			{Traces: []*domain.Trace{mkTrace("RJOB", "EHZ", testStart, 1, 2, 3)}},
		}
		warnings, hint, accepted, err := newCleaner().Cleanup(groups, pipeline.Options{SuppressDemean: true})

		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Empty(t, hint)
		require.Len(t, accepted, 1)
		assert.Equal(t, []float64{1, 2, 3}, accepted[0].Traces[0].Samples)
	})

	t.Run("three components sorted into ZNE", func(t *testing.T) {
		groups := []*domain.StreamGroup{zneGroup("RJOB")}
		warnings, _, accepted, err := newCleaner().Cleanup(groups, pipeline.Options{SuppressDemean: true})

		require.NoError(t, err)
		assert.Empty(t, warnings)
		require.Len(t, accepted, 1)
		channels := []string{
			accepted[0].Traces[0].Channel,
			accepted[0].Traces[1].Channel,
			accepted[0].Traces[2].Channel,
		}
		if diff := cmp.Diff([]string{"EHZ", "EHN", "EHE"}, channels); diff != "" {
			t.Errorf("channel order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown channels removed to recover a triplet", func(t *testing.T) {
		g := zneGroup("RJOB")
		g.Traces = append(g.Traces, mkTrace("RJOB", "LOG", testStart, 0, 0, 0))
		warnings, _, accepted, err := newCleaner().Cleanup([]*domain.StreamGroup{g}, pipeline.Options{SuppressDemean: true})

		require.NoError(t, err)
		require.Len(t, accepted, 1)
		assert.Len(t, accepted[0].Traces, 3)
		assert.Contains(t, warnings, "deleted some unknown channels")
	})
}

func TestCleanupDiscards(t *testing.T) {
	t.Run("lone non-vertical trace", func(t *testing.T) {
		groups := []*domain.StreamGroup{
			{Traces: []*domain.Trace{mkTrace("RJOB", "EHN", testStart, 1, 2, 3)}},
		}
		warnings, _, accepted, err := newCleaner().Cleanup(groups, pipeline.Options{})

		require.NoError(t, err)
		assert.Empty(t, accepted)
		assert.Contains(t, warnings, "no Z trace")
	})

	t.Run("duplicate station identity", func(t *testing.T) {
		groups := []*domain.StreamGroup{zneGroup("RJOB"), zneGroup("RJOB")}
		warnings, _, accepted, err := newCleaner().Cleanup(groups, pipeline.Options{SuppressDemean: true})

		require.NoError(t, err)
		assert.Len(t, accepted, 1)
		assert.Contains(t, warnings, "already in group list")
	})

	t.Run("mixed station identities", func(t *testing.T) {
		g := zneGroup("RJOB")
		g.Traces[2].Station = "MANZ"
		warnings, _, accepted, err := newCleaner().Cleanup([]*domain.StreamGroup{g}, pipeline.Options{})

		require.NoError(t, err)
		assert.Empty(t, accepted)
		assert.Contains(t, warnings, "mix of stations")
	})

	t.Run("three traces that are not ZNE", func(t *testing.T) {
		// Two gapped vertical segments plus a north trace sort to Z, Z, N.
		g := &domain.StreamGroup{Traces: []*domain.Trace{
			mkTrace("RJOB", "EHZ", testStart, 1, 2, 3),
			mkTrace("RJOB", "EHZ", testStart.Add(time.Second), 4, 5, 6),
			mkTrace("RJOB", "EHN", testStart, 7, 8, 9),
		}}
		warnings, _, accepted, err := newCleaner().Cleanup([]*domain.StreamGroup{g}, pipeline.Options{})

		require.NoError(t, err)
		assert.Empty(t, accepted)
		assert.Contains(t, warnings, "they are not ZNE")
	})

	t.Run("recovery leaving a lone non-vertical trace", func(t *testing.T) {
		g := &domain.StreamGroup{Traces: []*domain.Trace{
			mkTrace("RJOB", "EHN", testStart, 1, 2, 3),
			mkTrace("RJOB", "LOG", testStart, 0, 0, 0),
		}}
		warnings, _, accepted, err := newCleaner().Cleanup([]*domain.StreamGroup{g}, pipeline.Options{})

		require.NoError(t, err)
		assert.Empty(t, accepted)
		assert.Contains(t, warnings, "deleted some unknown channels")
		assert.Contains(t, warnings, "no Z trace")
	})

	t.Run("gapped channel triggers the merge hint", func(t *testing.T) {
		g := &domain.StreamGroup{Traces: []*domain.Trace{
			mkTrace("RJOB", "EHZ", testStart, 1, 2, 3),
			mkTrace("RJOB", "EHZ", testStart.Add(time.Second), 4, 5, 6),
		}}
		warnings, hint, accepted, err := newCleaner().Cleanup([]*domain.StreamGroup{g}, pipeline.Options{})

		require.NoError(t, err)
		assert.Empty(t, accepted)
		assert.Contains(t, warnings, "number of traces != (1 or 3)")
		assert.Contains(t, hint, "--merge option")
	})

	t.Run("empty group silently skipped", func(t *testing.T) {
		warnings, _, accepted, err := newCleaner().Cleanup([]*domain.StreamGroup{{}}, pipeline.Options{})

		require.NoError(t, err)
		assert.Empty(t, accepted)
		assert.Empty(t, warnings)
	})
}

func TestCleanupMergeStrategies(t *testing.T) {
	gapped := func() []*domain.StreamGroup {
		return []*domain.StreamGroup{{Traces: []*domain.Trace{
			mkTrace("RJOB", "EHZ", testStart, 0, 0, 10),
			mkTrace("RJOB", "EHZ", testStart.Add(60*time.Millisecond), 50, 0, 0),
		}}}
	}

	t.Run("overwrite interpolates short gaps", func(t *testing.T) {
		warnings, hint, accepted, err := newCleaner().Cleanup(gapped(), pipeline.Options{
			Merge:          domain.MergeOverwrite,
			SuppressDemean: true,
		})

		require.NoError(t, err)
		assert.Empty(t, hint)
		require.Len(t, accepted, 1)
		assert.Len(t, accepted[0].Traces, 1)
		assert.Contains(t, warnings, "Interpolated over gap(s)")
	})

	t.Run("safe merge leaves masked traces that skip demeaning", func(t *testing.T) {
		warnings, _, accepted, err := newCleaner().Cleanup(gapped(), pipeline.Options{
			Merge: domain.MergeSafe,
		})

		require.NoError(t, err)
		require.Len(t, accepted, 1)
		assert.True(t, accepted[0].Traces[0].HasMasked())
		assert.Contains(t, warnings, "Detrending/demeaning not possible")
	})

	t.Run("unknown strategy is fatal", func(t *testing.T) {
		_, _, _, err := newCleaner().Cleanup(gapped(), pipeline.Options{
			Merge: domain.MergeStrategy("bogus"),
		})
		assert.ErrorIs(t, err, domain.ErrBadMergeStrategy)
	})
}

func TestCleanupIdempotent(t *testing.T) {
	groups := []*domain.StreamGroup{
		zneGroup("RJOB"),
		{Traces: []*domain.Trace{mkTrace("MANZ", "EHZ", testStart, 1, 2, 3)}},
	}
	c := newCleaner()

	_, _, first, err := c.Cleanup(groups, pipeline.Options{SuppressDemean: true})
	require.NoError(t, err)
	require.Len(t, first, 2)

	warnings, hint, second, err := c.Cleanup(first, pipeline.Options{SuppressDemean: true})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Empty(t, hint)
	assert.Len(t, second, 2)
}

func TestCleanupDemeans(t *testing.T) {
	groups := []*domain.StreamGroup{
		{Traces: []*domain.Trace{mkTrace("RJOB", "EHZ", testStart, 10, 10, 10)}},
	}
	_, _, accepted, err := newCleaner().Cleanup(groups, pipeline.Options{})

	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, []float64{0, 0, 0}, accepted[0].Traces[0].Samples)
}

func TestCleanupMetadata(t *testing.T) {
	withMetadata := func() *domain.StreamGroup {
		g := zneGroup("RJOB")
		for _, tr := range g.Traces {
			tr.Coordinates = &domain.Coordinates{Longitude: 144, Latitude: -37}
			tr.Response = &domain.Response{Sensitivity: 1e9}
		}
		return g
	}

	t.Run("complete metadata kept", func(t *testing.T) {
		g := withMetadata()
		g.SortDescendingChannel()
		kept := newCleaner().CleanupMetadata([]*domain.StreamGroup{g}, false)
		assert.Len(t, kept, 1)
	})

	t.Run("missing vertical coordinates discarded", func(t *testing.T) {
		g := withMetadata()
		g.SortDescendingChannel()
		g.Select("Z")[0].Coordinates = nil
		kept := newCleaner().CleanupMetadata([]*domain.StreamGroup{g}, false)
		assert.Empty(t, kept)
	})

	t.Run("missing horizontal response discarded", func(t *testing.T) {
		g := withMetadata()
		g.SortDescendingChannel()
		g.Select("N")[0].Response = nil
		kept := newCleaner().CleanupMetadata([]*domain.StreamGroup{g}, false)
		assert.Empty(t, kept)
	})

	t.Run("disabled pass keeps everything", func(t *testing.T) {
		g := zneGroup("RJOB")
		kept := newCleaner().CleanupMetadata([]*domain.StreamGroup{g}, true)
		assert.Len(t, kept, 1)
	})
}
