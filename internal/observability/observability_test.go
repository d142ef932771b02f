package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetricsForTesting()

	m.TracesFetched.WithLabelValues("file").Add(3)
	m.FetchErrors.WithLabelValues("fdsn").Inc()
	m.GroupsAccepted.Inc()
	m.GroupsDiscarded.WithLabelValues("not_zne").Inc()
	m.GapInterpolations.Inc()
	m.ToolInvocations.WithLabelValues("nlloc", "ok").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.TracesFetched.WithLabelValues("file")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrors.WithLabelValues("fdsn")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GroupsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GroupsDiscarded.WithLabelValues("not_zne")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GapInterpolations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolInvocations.WithLabelValues("nlloc", "ok")))
}

func TestNewLogger(t *testing.T) {
	for _, tc := range []struct {
		verbosity string
		format    string
	}{
		{"quiet", "text"},
		{"normal", "text"},
		{"verbose", "json"},
		{"debug", "json"},
	} {
		logger := NewLogger(tc.verbosity, tc.format)
		require.NotNil(t, logger, "verbosity %q format %q", tc.verbosity, tc.format)
	}
}
