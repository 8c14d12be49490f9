package audioio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResample(t *testing.T) {
	in := make([]int16, 960)
	for i := range in {
		in[i] = int16(i)
	}

	t.Run("same rate", func(t *testing.T) {
		assert.Equal(t, in, Resample(in, 16000, 16000))
	})
	t.Run("48k to 16k", func(t *testing.T) {
		out := Resample(in, 48000, 16000)
		assert.Len(t, out, 320)
		assert.Equal(t, int16(0), out[0])
		assert.Equal(t, int16(3), out[1])
	})
	t.Run("upsample", func(t *testing.T) {
		assert.Len(t, Resample(in[:320], 16000, 24000), 480)
	})
	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Resample(nil, 48000, 16000))
	})
}

func TestStereoToMono(t *testing.T) {
	assert.Equal(t, []int16{150, -5}, StereoToMono([]int16{100, 200, -10, 0}))
}

func TestLevel(t *testing.T) {
	assert.Zero(t, Level(nil))
	assert.Zero(t, Level([]int16{0, 0}))
	assert.InDelta(t, 1.0, Level([]int16{32767, -32767}), 1e-9)
}
