// Package tracejson reads and writes the JSON waveform payload shared by
// local trace files and both remote data servers. It is the in-house
// interchange format; the heavyweight seismic file formats stay with the
// acquisition servers.
package tracejson

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"math"
	"time"

	"github.com/quakelab/seispick/internal/domain"
)

// FormatName tags traces decoded from a plain tracejson payload.
const FormatName = "tracejson"

// FormatLegacyGSE tags traces converted from the legacy GSE2 format, which
// carry calib/calper calibration fields that still need applying.
const FormatLegacyGSE = "gse2"

type payload struct {
	Traces []record `json:"traces"`
}

type record struct {
	Network      string              `json:"network"`
	Station      string              `json:"station"`
	Location     string              `json:"location"`
	Channel      string              `json:"channel"`
	SamplingRate float64             `json:"sampling_rate"`
	StartTime    time.Time           `json:"starttime"`
	Samples      []float64           `json:"samples"`
	Format       string              `json:"format,omitempty"`
	Coordinates  *domain.Coordinates `json:"coordinates,omitempty"`
	Response     *domain.Response    `json:"response,omitempty"`
	// Checksum is a CRC-32 (IEEE) over the samples' IEEE-754 bit patterns.
	// Zero means the producer did not compute one.
	Checksum uint32 `json:"checksum,omitempty"`
}

// Decode parses a tracejson payload into traces, skipping checksum
// verification. Remote payloads go through transports with their own
// integrity guarantees.
func Decode(data []byte) ([]*domain.Trace, error) {
	return DecodeVerify(data, false)
}

// DecodeVerify parses a tracejson payload. When verifyChecksum is set, any
// record carrying a checksum is validated against its samples.
func DecodeVerify(data []byte, verifyChecksum bool) ([]*domain.Trace, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("tracejson: %w", err)
	}
	traces := make([]*domain.Trace, 0, len(p.Traces))
	for i, rec := range p.Traces {
		if rec.SamplingRate <= 0 {
			return nil, fmt.Errorf("tracejson: trace %d has sampling rate %g", i, rec.SamplingRate)
		}
		if verifyChecksum && rec.Checksum != 0 {
			if sum := sampleChecksum(rec.Samples); sum != rec.Checksum {
				return nil, fmt.Errorf("tracejson: trace %d checksum mismatch (have %08x, want %08x)", i, sum, rec.Checksum)
			}
		}
		format := rec.Format
		if format == "" {
			format = FormatName
		}
		traces = append(traces, &domain.Trace{
			Network:      rec.Network,
			Station:      rec.Station,
			Location:     rec.Location,
			Channel:      rec.Channel,
			SamplingRate: rec.SamplingRate,
			StartTime:    rec.StartTime,
			Samples:      rec.Samples,
			Format:       format,
			Coordinates:  rec.Coordinates,
			Response:     rec.Response,
		})
	}
	return traces, nil
}

// Encode serializes traces into a tracejson payload, stamping each record
// with a sample checksum.
func Encode(traces []*domain.Trace) ([]byte, error) {
	p := payload{Traces: make([]record, 0, len(traces))}
	for _, tr := range traces {
		p.Traces = append(p.Traces, record{
			Network:      tr.Network,
			Station:      tr.Station,
			Location:     tr.Location,
			Channel:      tr.Channel,
			SamplingRate: tr.SamplingRate,
			StartTime:    tr.StartTime,
			Samples:      tr.Samples,
			Format:       tr.Format,
			Coordinates:  tr.Coordinates,
			Response:     tr.Response,
			Checksum:     sampleChecksum(tr.Samples),
		})
	}
	return json.Marshal(p)
}

// sampleChecksum hashes the little-endian IEEE-754 bit patterns of the
// samples, so the value is stable across JSON round trips.
func sampleChecksum(samples []float64) uint32 {
	h := crc32.NewIEEE()
	var buf [8]byte
	for _, v := range samples {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:]) //nolint:errcheck // hash writes cannot fail
	}
	return h.Sum32()
}
