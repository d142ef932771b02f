// Package domain models seismic waveform data the way the picker needs it.
//
// # Traces and groups
//
// A Trace is one continuous single-channel time series with SEED-style
// identity codes (network, station, location, channel). Traces are collected
// into StreamGroups, one group per network/station/location combination. The
// picker can only work with groups that hold either a lone vertical trace or
// an ordered Z, N, E triplet; the cleanup pipeline enforces this.
//
// # Channel naming conventions
//
// The last letter of a channel code names the measured component:
//
//	Z  vertical
//	N  north-south
//	E  east-west
//
// Sorting channel codes in descending order yields exactly the Z, N, E order
// the downstream plotting code expects; see [StreamGroup.SortDescendingChannel].
//
// # Gaps and masked samples
//
// Samples are float64 values; NaN marks a missing sample introduced when a
// merge spans a gap it cannot fill. Detrending refuses traces with masked
// samples ([ErrMaskedSamples]) so the cleanup pipeline can downgrade that
// case to a diagnostic instead of corrupting the signal.
//
// # Merge strategies
//
//	""          contiguity merge only; gapped channels keep multiple traces
//	"safe"      one trace per channel, overlapping samples discarded
//	"overwrite" later trace wins overlaps, gaps under 5 samples interpolated
//
// # Geometry helpers
//
// The local map projection ([LonLatFromLocal]) is a fixed linear
// approximation around a hardcoded reference latitude matching the projection
// the location tool's model grid was built with. It is deliberately not a
// general geodetic transform.
package domain
