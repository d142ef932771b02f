package domain

import (
	"errors"
	"math"
)

// MergeStrategy selects how an explicit post-fetch merge treats gaps and
// overlaps within a channel.
type MergeStrategy string

const (
	// MergeNone applies no explicit merge beyond the always-on contiguity pass.
	MergeNone MergeStrategy = ""
	// MergeSafe joins each channel into one trace, discarding every sample
	// covered by more than one segment and marking gaps as missing.
	MergeSafe MergeStrategy = "safe"
	// MergeOverwrite joins segments preferring the later-arriving trace on
	// overlaps and interpolates across gaps shorter than five samples.
	MergeOverwrite MergeStrategy = "overwrite"
)

// ErrBadMergeStrategy is returned for merge strategy values other than
// "", "safe" or "overwrite".
var ErrBadMergeStrategy = errors.New(`unrecognized merge strategy: try "safe" or "overwrite"`)

// maxInterpolatableGap is the exclusive sample-count bound below which an
// overwrite merge interpolates across a gap instead of splitting the channel.
const maxInterpolatableGap = 5

// ParseMergeStrategy validates a command-line merge value.
func ParseMergeStrategy(s string) (MergeStrategy, error) {
	switch MergeStrategy(s) {
	case MergeNone, MergeSafe, MergeOverwrite:
		return MergeStrategy(s), nil
	default:
		return MergeNone, ErrBadMergeStrategy
	}
}

// channelRun is one channel's segments in ascending start-time order.
type channelRun struct {
	channel string
	traces  []*Trace
}

// channelRuns splits a group's traces per channel code, each run sorted by
// start time, preserving first-seen channel order.
func channelRuns(traces []*Trace) []channelRun {
	var runs []channelRun
	index := make(map[string]int)
	for _, tr := range traces {
		i, ok := index[tr.Channel]
		if !ok {
			i = len(runs)
			index[tr.Channel] = i
			runs = append(runs, channelRun{channel: tr.Channel})
		}
		runs[i].traces = append(runs[i].traces, tr)
	}
	for _, run := range runs {
		sortByStart(run.traces)
	}
	return runs
}

func sortByStart(traces []*Trace) {
	for i := 1; i < len(traces); i++ {
		for j := i; j > 0 && traces[j].StartTime.Before(traces[j-1].StartTime); j-- {
			traces[j], traces[j-1] = traces[j-1], traces[j]
		}
	}
}

// missingSamples returns the number of samples absent between prev's last
// sample and next's first sample. Zero means contiguous, negative values
// count overlapping samples.
func missingSamples(prev, next *Trace) int {
	delta := prev.Delta()
	if delta <= 0 {
		return 0
	}
	span := next.StartTime.Sub(prev.EndTime())
	return int(math.Round(float64(span)/float64(delta))) - 1
}

// CleanupMerge is the always-on internal merge: within each channel it joins
// only perfectly contiguous segments. Channels with gaps or overlaps keep
// multiple traces, which the validation pass then rejects unless an explicit
// strategy was chosen.
func (g *StreamGroup) CleanupMerge() {
	var merged []*Trace
	for _, run := range channelRuns(g.Traces) {
		cur := run.traces[0]
		for _, next := range run.traces[1:] {
			if cur.SamplingRate == next.SamplingRate && missingSamples(cur, next) == 0 {
				cur = concatTraces(cur, next)
				continue
			}
			merged = append(merged, cur)
			cur = next
		}
		merged = append(merged, cur)
	}
	g.Traces = merged
}

func concatTraces(a, b *Trace) *Trace {
	out := *a
	out.Samples = append(append([]float64(nil), a.Samples...), b.Samples...)
	return &out
}

// MergeWith applies the given explicit strategy to the group. It reports
// whether any gap was interpolated (overwrite only) so the caller can record
// a diagnostic naming the station.
func (g *StreamGroup) MergeWith(strategy MergeStrategy) (interpolated bool, err error) {
	switch strategy {
	case MergeNone:
		return false, nil
	case MergeSafe:
		g.mergeSafe()
		return false, nil
	case MergeOverwrite:
		return g.mergeOverwrite(), nil
	default:
		return false, ErrBadMergeStrategy
	}
}

// mergeSafe collapses every channel into a single trace spanning its full
// extent. Samples covered by more than one segment are discarded (NaN), as
// are samples inside gaps.
func (g *StreamGroup) mergeSafe() {
	var merged []*Trace
	for _, run := range channelRuns(g.Traces) {
		merged = append(merged, flattenSafe(run.traces))
	}
	g.Traces = merged
}

func flattenSafe(traces []*Trace) *Trace {
	if len(traces) == 1 {
		return traces[0]
	}
	base := traces[0]
	delta := base.Delta()
	end := base.EndTime()
	for _, tr := range traces[1:] {
		if tr.EndTime().After(end) {
			end = tr.EndTime()
		}
	}
	n := int(math.Round(float64(end.Sub(base.StartTime))/float64(delta))) + 1
	samples := make([]float64, n)
	coverage := make([]int, n)
	for i := range samples {
		samples[i] = math.NaN()
	}
	for _, tr := range traces {
		off := sampleOffset(base, tr)
		for i, v := range tr.Samples {
			if off+i < 0 || off+i >= n {
				continue
			}
			coverage[off+i]++
			if coverage[off+i] == 1 {
				samples[off+i] = v
			} else {
				samples[off+i] = math.NaN()
			}
		}
	}
	out := *base
	out.Samples = samples
	return &out
}

// mergeOverwrite walks each channel's segments in start order. Overlapping or
// contiguous segments are joined with the later segment winning the overlap.
// Gaps shorter than five samples are bridged by linear interpolation; longer
// gaps split the channel into separate output traces.
func (g *StreamGroup) mergeOverwrite() (interpolated bool) {
	var merged []*Trace
	for _, run := range channelRuns(g.Traces) {
		cur := run.traces[0]
		for _, next := range run.traces[1:] {
			missing := missingSamples(cur, next)
			switch {
			case missing >= maxInterpolatableGap || cur.SamplingRate != next.SamplingRate:
				merged = append(merged, cur)
				cur = next
			case missing > 0:
				cur = interpolateJoin(cur, next, missing)
				interpolated = true
			default:
				cur = overwriteJoin(cur, next)
			}
		}
		merged = append(merged, cur)
	}
	g.Traces = merged
	return interpolated
}

// interpolateJoin bridges a short gap with linearly interpolated samples
// between a's last and b's first sample.
func interpolateJoin(a, b *Trace, missing int) *Trace {
	out := *a
	out.Samples = append([]float64(nil), a.Samples...)
	last := a.Samples[len(a.Samples)-1]
	first := b.Samples[0]
	for k := 1; k <= missing; k++ {
		frac := float64(k) / float64(missing+1)
		out.Samples = append(out.Samples, last+(first-last)*frac)
	}
	out.Samples = append(out.Samples, b.Samples...)
	return &out
}

// overwriteJoin merges two overlapping or contiguous segments, with b's
// samples replacing a's wherever both cover the same instant.
func overwriteJoin(a, b *Trace) *Trace {
	delta := a.Delta()
	end := a.EndTime()
	if b.EndTime().After(end) {
		end = b.EndTime()
	}
	n := int(math.Round(float64(end.Sub(a.StartTime))/float64(delta))) + 1
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.NaN()
	}
	copy(samples, a.Samples)
	off := sampleOffset(a, b)
	for i, v := range b.Samples {
		if off+i >= 0 && off+i < n {
			samples[off+i] = v
		}
	}
	out := *a
	out.Samples = samples
	return &out
}

// sampleOffset returns tr's first-sample index relative to base's start.
func sampleOffset(base, tr *Trace) int {
	delta := base.Delta()
	if delta <= 0 {
		return 0
	}
	return int(math.Round(float64(tr.StartTime.Sub(base.StartTime)) / float64(delta)))
}
