package endian

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEngines(t *testing.T) {
	bits := math.Float64bits(1.5)

	t.Run("little endian round trip", func(t *testing.T) {
		engine := GetLittleEndianEngine()
		buf := engine.AppendUint64(nil, bits)
		require.Len(t, buf, 8)
		require.Equal(t, bits, engine.Uint64(buf))
		require.Equal(t, byte(bits), buf[0])
	})

	t.Run("big endian round trip", func(t *testing.T) {
		engine := GetBigEndianEngine()
		buf := engine.AppendUint64(nil, bits)
		require.Equal(t, bits, engine.Uint64(buf))
		require.Equal(t, byte(bits>>56), buf[0])
	})
}
