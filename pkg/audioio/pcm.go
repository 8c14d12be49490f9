// Package audioio converts microphone samples into the 16-bit PCM stream the
// speech recognizer expects.
package audioio

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedSample is returned by EncodePCM16 for sample types it cannot
// convert.
var ErrUnsupportedSample = errors.New("audioio: unsupported sample type")

// Chunk is a block of mono PCM16 audio.
type Chunk struct {
	Samples    []int16
	SampleRate int
}

// Bytes returns the chunk as little-endian PCM16.
func (c Chunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// Float is a floating-point sample type.
type Float interface {
	~float32 | ~float64
}

// Integer is an integer sample type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32
}

// FromFloat scales samples in [-1, 1] by 32767. Values outside the range are
// clipped.
func FromFloat[T Float](samples []T) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		out[i] = int16(max(-32768, min(32767, v)))
	}
	return out
}

// FromInt casts samples to int16 without rescaling.
func FromInt[T Integer](samples []T) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = int16(s)
	}
	return out
}

// EncodePCM16 normalizes a microphone sample of any supported element type
// into little-endian PCM16 bytes. Raw byte slices are assumed to already be
// PCM16 and are returned as is.
func EncodePCM16(sample any) ([]byte, error) {
	switch s := sample.(type) {
	case nil:
		return nil, nil
	case []byte:
		return s, nil
	case Chunk:
		return s.Bytes(), nil
	case []int16:
		return SamplesToBytes(s), nil
	case []float32:
		return SamplesToBytes(FromFloat(s)), nil
	case []float64:
		return SamplesToBytes(FromFloat(s)), nil
	case []int:
		return SamplesToBytes(FromInt(s)), nil
	case []int32:
		return SamplesToBytes(FromInt(s)), nil
	case []int64:
		return SamplesToBytes(FromInt(s)), nil
	case []uint16:
		return SamplesToBytes(FromInt(s)), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedSample, sample)
	}
}
