// Command genscatter writes synthetic test fixtures: a binary scatter file
// in the location tool's output format and a tracejson waveform payload for
// one three-component station. It uses the actual domain and codec packages
// so the fixtures stay in sync with what the decoders expect.
//
// Usage:
//
//	go run ./cmd/genscatter \
//	  -scatter-out testdata/event.scat \
//	  -trace-out testdata/event_traces.json
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/quakelab/seispick/internal/codec/tracejson"
	"github.com/quakelab/seispick/internal/domain"
)

var baseTime = time.Date(2010, time.January, 10, 5, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	scatterOut := flag.String("scatter-out", "", "output path for the binary scatter fixture")
	traceOut := flag.String("trace-out", "", "output path for the tracejson waveform fixture")
	points := flag.Int("points", 500, "number of scatter points")
	samples := flag.Int("samples", 2000, "number of samples per trace")
	seed := flag.Int64("seed", 1, "random seed, fixed for reproducible fixtures")
	flag.Parse()

	if *scatterOut == "" || *traceOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -scatter-out, -trace-out")
	}

	rng := rand.New(rand.NewSource(*seed))

	// Fix the clock so FetchedAt stamps are reproducible.
	domain.SetClock(clockwork.NewFakeClockAt(baseTime.Add(30 * time.Second)))
	defer domain.SetClock(nil)

	if err := writeScatter(*scatterOut, *points, rng); err != nil {
		return err
	}
	if err := writeTraces(*traceOut, *samples, rng); err != nil {
		return err
	}
	return nil
}

// writeScatter emits the location tool's binary format: little-endian
// float32 values, a 4-value header followed by (x, y, z, pdf) quadruples.
// Points cluster around a plausible hypocenter in local map kilometers.
func writeScatter(path string, points int, rng *rand.Rand) error {
	const centerX, centerY, centerDepth = 25.0, -38.0, 8000.0

	buf := make([]byte, 0, (4+points*4)*4)
	buf = appendFloat32(buf, float32(points))
	buf = appendFloat32(buf, 1, 0, 0)

	for i := 0; i < points; i++ {
		x := centerX + rng.NormFloat64()*2.5
		y := centerY + rng.NormFloat64()*2.5
		z := centerDepth + rng.NormFloat64()*1500
		pdf := rng.Float64()
		buf = appendFloat32(buf, float32(x), float32(y), float32(z), float32(pdf))
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write scatter fixture: %w", err)
	}
	log.Printf("wrote %d scatter points to %s", points, path)
	return nil
}

func appendFloat32(buf []byte, values ...float32) []byte {
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// writeTraces emits one ZNE station as a tracejson payload: a decaying sine
// burst over noise, with full coordinates and response metadata so the
// fixture passes the metadata pass untouched.
func writeTraces(path string, samples int, rng *rand.Rand) error {
	coords := &domain.Coordinates{Longitude: 144.35, Latitude: -37.25, Elevation: 420}

	traces := make([]*domain.Trace, 0, 3)
	for _, channel := range []string{"EHZ", "EHN", "EHE"} {
		data := make([]float64, samples)
		for i := range data {
			t := float64(i) / 200.0
			data[i] = rng.NormFloat64() * 10
			if t > 2 {
				data[i] += 500 * math.Exp(-(t-2)/3) * math.Sin(2*math.Pi*8*(t-2))
			}
		}
		traces = append(traces, &domain.Trace{
			Network:      "BW",
			Station:      "RJOB",
			Channel:      channel,
			SamplingRate: 200,
			StartTime:    baseTime,
			Samples:      data,
			Format:       tracejson.FormatName,
			Coordinates:  coords,
			Response:     &domain.Response{Sensitivity: 2.5e9},
			FetchedAt:    domain.Now(),
		})
	}

	payload, err := tracejson.Encode(traces)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write trace fixture: %w", err)
	}
	log.Printf("wrote %d traces to %s", len(traces), path)
	return nil
}
