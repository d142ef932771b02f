package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Coordinates is the geographic position of a recording station.
type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Elevation float64 `json:"elevation"` // meters above sea level
}

// Response holds the instrument response needed to restitute ground motion.
// Sensitivity is the overall gain; Calib/CalPer carry the legacy calibration
// fields some file formats provide instead.
type Response struct {
	Sensitivity float64 `json:"sensitivity"`
	Calib       float64 `json:"calib,omitempty"`
	CalPer      float64 `json:"calper,omitempty"`
}

// Trace is one continuous single-channel time series. Samples may contain
// NaN entries, which mark missing data introduced by a gap-filling merge.
type Trace struct {
	Network      string
	Station      string
	Location     string
	Channel      string
	SamplingRate float64
	StartTime    time.Time
	Samples      []float64

	Coordinates *Coordinates
	Response    *Response

	// Format records provenance: the source file format for local reads or
	// the client name for remote fetches.
	Format    string
	FetchedAt time.Time
}

// ID returns the SEED-style dotted channel identifier.
func (tr *Trace) ID() string {
	return strings.Join([]string{tr.Network, tr.Station, tr.Location, tr.Channel}, ".")
}

// Component returns the last letter of the channel code (Z, N, E, ...).
func (tr *Trace) Component() string {
	if tr.Channel == "" {
		return ""
	}
	return tr.Channel[len(tr.Channel)-1:]
}

// Delta returns the sample spacing.
func (tr *Trace) Delta() time.Duration {
	if tr.SamplingRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / tr.SamplingRate)
}

// EndTime returns the time of the last sample.
func (tr *Trace) EndTime() time.Time {
	if len(tr.Samples) == 0 {
		return tr.StartTime
	}
	return tr.StartTime.Add(time.Duration(len(tr.Samples)-1) * tr.Delta())
}

// HasMasked reports whether any sample is a NaN gap marker.
func (tr *Trace) HasMasked() bool {
	for _, v := range tr.Samples {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Trim cuts the trace to the window [start, end], keeping sample times intact.
// A window entirely outside the trace leaves it empty.
func (tr *Trace) Trim(start, end time.Time) {
	delta := tr.Delta()
	if delta <= 0 || len(tr.Samples) == 0 {
		return
	}
	first := 0
	if start.After(tr.StartTime) {
		first = int(math.Ceil(float64(start.Sub(tr.StartTime)) / float64(delta)))
	}
	last := len(tr.Samples) - 1
	if end.Before(tr.EndTime()) {
		last = int(math.Floor(float64(end.Sub(tr.StartTime)) / float64(delta)))
	}
	if first > last || first >= len(tr.Samples) || last < 0 {
		tr.Samples = nil
		return
	}
	tr.StartTime = tr.StartTime.Add(time.Duration(first) * delta)
	tr.Samples = tr.Samples[first : last+1]
}

func (tr *Trace) String() string {
	return fmt.Sprintf("%s | %s - %s | %.1f Hz, %d samples",
		tr.ID(), tr.StartTime.UTC().Format(time.RFC3339Nano),
		tr.EndTime().UTC().Format(time.RFC3339Nano), tr.SamplingRate, len(tr.Samples))
}

// StreamGroup is the ordered set of traces for one network/station/location
// combination. After cleanup every surviving group holds either a lone
// vertical trace or an ordered Z, N, E triplet.
type StreamGroup struct {
	Traces []*Trace
}

// NetSta returns the "NET.STA" identity of the group's first trace.
func (g *StreamGroup) NetSta() string {
	if len(g.Traces) == 0 {
		return "."
	}
	tr := g.Traces[0]
	return strings.TrimSpace(tr.Network) + "." + strings.TrimSpace(tr.Station)
}

// Select returns the traces whose channel ends in the given component.
func (g *StreamGroup) Select(component string) []*Trace {
	var out []*Trace
	for _, tr := range g.Traces {
		if tr.Component() == component {
			out = append(out, tr)
		}
	}
	return out
}

// MixedIdentity reports whether the group contains traces from more than one
// network/station pair.
func (g *StreamGroup) MixedIdentity() bool {
	for _, tr := range g.Traces[1:] {
		if tr.Network != g.Traces[0].Network || tr.Station != g.Traces[0].Station {
			return true
		}
	}
	return false
}

// SortDescendingChannel orders traces by descending channel code, which puts
// a three-component set into Z, N, E order.
func (g *StreamGroup) SortDescendingChannel() {
	sort.SliceStable(g.Traces, func(i, j int) bool {
		return g.Traces[i].Channel > g.Traces[j].Channel
	})
}

// String dumps every trace on its own line, for diagnostics.
func (g *StreamGroup) String() string {
	lines := make([]string, 0, len(g.Traces)+1)
	lines = append(lines, fmt.Sprintf("%d trace(s) in group:", len(g.Traces)))
	for _, tr := range g.Traces {
		lines = append(lines, tr.String())
	}
	return strings.Join(lines, "\n")
}

// GroupByStation partitions traces into per-net/station/location groups,
// preserving first-seen order of the identities.
func GroupByStation(traces []*Trace) []*StreamGroup {
	var order []string
	byID := make(map[string]*StreamGroup)
	for _, tr := range traces {
		key := tr.Network + "." + tr.Station + "." + tr.Location
		g, ok := byID[key]
		if !ok {
			g = &StreamGroup{}
			byID[key] = g
			order = append(order, key)
		}
		g.Traces = append(g.Traces, tr)
	}
	groups := make([]*StreamGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, byID[key])
	}
	return groups
}
