package domain

import (
	"errors"
	"fmt"
)

// ErrMaskedSamples is returned when a detrend operation encounters NaN gap
// markers, which make the fit undefined. Cleanup downgrades this to a
// diagnostic; any other detrend failure is fatal.
var ErrMaskedSamples = errors.New("trace with masked samples found")

// DetrendSimple removes the linear trend defined by the first and last sample.
func (tr *Trace) DetrendSimple() error {
	n := len(tr.Samples)
	if n == 0 {
		return fmt.Errorf("detrend %s: empty trace", tr.ID())
	}
	if tr.HasMasked() {
		return ErrMaskedSamples
	}
	if n == 1 {
		tr.Samples[0] = 0
		return nil
	}
	first := tr.Samples[0]
	slope := (tr.Samples[n-1] - first) / float64(n-1)
	for i := range tr.Samples {
		tr.Samples[i] -= first + slope*float64(i)
	}
	return nil
}

// DetrendDemean removes the mean value from the trace.
func (tr *Trace) DetrendDemean() error {
	n := len(tr.Samples)
	if n == 0 {
		return fmt.Errorf("demean %s: empty trace", tr.ID())
	}
	if tr.HasMasked() {
		return ErrMaskedSamples
	}
	var sum float64
	for _, v := range tr.Samples {
		sum += v
	}
	mean := sum / float64(n)
	for i := range tr.Samples {
		tr.Samples[i] -= mean
	}
	return nil
}

// Detrend applies the simple linear detrend followed by demeaning, matching
// the order the picker expects before plotting.
func (g *StreamGroup) Detrend() error {
	for _, tr := range g.Traces {
		if err := tr.DetrendSimple(); err != nil {
			return err
		}
		if err := tr.DetrendDemean(); err != nil {
			return err
		}
	}
	return nil
}
