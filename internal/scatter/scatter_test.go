package scatter

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBuffer(values ...float32) []byte {
	buf := make([]byte, 0, len(values)*4)
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

func TestDecode(t *testing.T) {
	t.Run("two points", func(t *testing.T) {
		x := float32(111.111 * math.Cos(-37.346500347*math.Pi/180))
		data := buildBuffer(
			2, 1, 0, 0, // header, ignored
			0, 0, 5000, 1,
			x, 111.111, 10000, 0.5,
		)

		samples, err := Decode(data)

		require.NoError(t, err)
		require.Equal(t, 2, samples.Len())
		assert.InDelta(t, 144.0, samples.Lon[0], 1e-4)
		assert.InDelta(t, -37.0, samples.Lat[0], 1e-4)
		assert.InDelta(t, 5000.0, samples.Depth[0], 1e-6)
		assert.InDelta(t, 145.0, samples.Lon[1], 1e-4)
		assert.InDelta(t, -36.0, samples.Lat[1], 1e-4)
		assert.InDelta(t, 10000.0, samples.Depth[1], 1e-6)
	})

	t.Run("header only", func(t *testing.T) {
		samples, err := Decode(buildBuffer(0, 0, 0, 0))

		require.NoError(t, err)
		assert.Equal(t, 0, samples.Len())
	})

	t.Run("odd byte count rejected", func(t *testing.T) {
		_, err := Decode(make([]byte, 5))
		assert.ErrorContains(t, err, "not a whole number")
	})

	t.Run("shorter than header rejected", func(t *testing.T) {
		_, err := Decode(buildBuffer(1, 2))
		assert.ErrorContains(t, err, "header")
	})

	t.Run("partial quadruple rejected", func(t *testing.T) {
		_, err := Decode(buildBuffer(0, 0, 0, 0, 1, 2, 3))
		assert.ErrorContains(t, err, "quadruples")
	})
}

func TestDecodeFile(t *testing.T) {
	t.Run("round trip through disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "event.scat")
		data := buildBuffer(1, 0, 0, 0, 10, 20, 3000, 1)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		samples, err := DecodeFile(path)

		require.NoError(t, err)
		assert.Equal(t, 1, samples.Len())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := DecodeFile(filepath.Join(t.TempDir(), "nope.scat"))
		assert.Error(t, err)
	})
}
