package pcm

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Format describes raw interleaved signed 16-bit little-endian PCM, the
// layout external converters hand back to the decoder.
type Format struct {
	SampleRate int
	Channels   int
}

// Mono returns the single-channel format at rate.
func Mono(rate int) Format {
	return Format{SampleRate: rate, Channels: 1}
}

// Validate rejects non-positive rates and channel counts.
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("pcm: invalid format %s", f)
	}
	return nil
}

// FrameSize is the byte length of one sample across all channels.
func (f Format) FrameSize() int {
	return 2 * f.Channels
}

// Duration returns the playback length of n bytes. Partial frames are not
// counted.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := n / f.FrameSize()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Decode converts raw bytes in this format to a mono Buffer, averaging
// interleaved channels. A trailing partial frame is dropped.
func (f Format) Decode(data []byte) *Buffer {
	ch := max(f.Channels, 1)
	if ch == 1 {
		return &Buffer{Samples: DecodeS16LE(data), SampleRate: f.SampleRate}
	}
	frames := len(data) / (2 * ch)
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range ch {
			v := int16(binary.LittleEndian.Uint16(data[(i*ch+c)*2:]))
			sum += float32(v) / 32768.0
		}
		out[i] = sum / float32(ch)
	}
	return &Buffer{Samples: out, SampleRate: f.SampleRate}
}

func (f Format) String() string {
	return fmt.Sprintf("s16le/%dHz/%dch", f.SampleRate, f.Channels)
}
