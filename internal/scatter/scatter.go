// Package scatter decodes the binary probability-scatter files written by
// the location tool: little-endian float32 values, a 4-value header (ignored)
// followed by repeating (x, y, z, pdf) quadruples. X/Y are local map
// coordinates in kilometers and are converted to longitude/latitude with the
// fixed local projection.
package scatter

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/quakelab/seispick/internal/domain"
)

const (
	float32Size     = 4
	headerValues    = 4
	valuesPerSample = 4
)

// Samples holds decoded scatter points as parallel slices, order preserved
// from the file.
type Samples struct {
	Lon   []float64
	Lat   []float64
	Depth []float64
}

// Len returns the number of scatter points.
func (s Samples) Len() int { return len(s.Lon) }

// Decode parses a raw scatter buffer. The byte length must be a whole number
// of float32 values and the value count after the header must divide into
// (x, y, z, pdf) quadruples; anything else is data corruption.
func Decode(data []byte) (Samples, error) {
	if len(data)%float32Size != 0 {
		return Samples{}, fmt.Errorf("scatter: %d bytes is not a whole number of float32 values", len(data))
	}
	values := len(data) / float32Size
	if values < headerValues {
		return Samples{}, fmt.Errorf("scatter: %d values is shorter than the %d-value header", values, headerValues)
	}
	if (values-headerValues)%valuesPerSample != 0 {
		return Samples{}, fmt.Errorf("scatter: %d values after header do not divide into quadruples", values-headerValues)
	}

	n := (values - headerValues) / valuesPerSample
	out := Samples{
		Lon:   make([]float64, n),
		Lat:   make([]float64, n),
		Depth: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		base := (headerValues + i*valuesPerSample) * float32Size
		x := float64(readFloat32(data[base:]))
		y := float64(readFloat32(data[base+float32Size:]))
		z := float64(readFloat32(data[base+2*float32Size:]))
		out.Lon[i], out.Lat[i] = domain.LonLatFromLocal(x, y)
		out.Depth[i] = z
	}
	return out, nil
}

// DecodeFile reads and decodes a scatter file from disk.
func DecodeFile(path string) (Samples, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Samples{}, fmt.Errorf("scatter: %w", err)
	}
	return Decode(data)
}

func readFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
