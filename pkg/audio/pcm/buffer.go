package pcm

import (
	"encoding/binary"
	"math"
	"time"
)

// Buffer holds mono audio as normalized float32 samples in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples.
func (b *Buffer) Len() int {
	return len(b.Samples)
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Peak returns the largest absolute sample value.
func (b *Buffer) Peak() float32 {
	var peak float32
	for _, s := range b.Samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// S16LE encodes the buffer as signed 16-bit little-endian PCM.
func (b *Buffer) S16LE() []byte {
	return EncodeS16LE(b.Samples)
}

// DecodeS16LE converts signed 16-bit little-endian PCM to float32 samples.
func DecodeS16LE(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := range n {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(v) / 32768.0
	}
	return out
}

// EncodeS16LE converts float32 samples to signed 16-bit little-endian PCM,
// clipping values outside [-1, 1].
func EncodeS16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(FloatToInt16(s)))
	}
	return out
}

// FloatToInt16 converts a normalized sample to int16 with clipping.
func FloatToInt16(s float32) int16 {
	v := math.Round(float64(s) * 32767.0)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
