package resampler

import (
	"errors"
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/emora/voiceauth/pkg/audio/pcm"
)

// ErrInvalidRate is returned when a source or destination rate is not positive.
var ErrInvalidRate = errors.New("resampler: invalid sample rate")

// tailPadding is appended as silence before resampling so the filter delay
// line drains into the output.
const tailPadding = 0.05

// Resample converts buf to dstRate. The returned buffer has
// round(len*dst/src) samples. When the rates already match, buf is returned
// unchanged.
func Resample(buf *pcm.Buffer, dstRate int) (*pcm.Buffer, error) {
	if buf.SampleRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrInvalidRate, buf.SampleRate, dstRate)
	}
	if buf.SampleRate == dstRate || len(buf.Samples) == 0 {
		return &pcm.Buffer{Samples: buf.Samples, SampleRate: dstRate}, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(buf.SampleRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create: %w", err)
	}

	pad := int(float64(buf.SampleRate) * tailPadding)
	input := make([]float64, len(buf.Samples)+pad)
	for i, s := range buf.Samples {
		input[i] = float64(s)
	}

	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}

	want := int(float64(len(buf.Samples))*float64(dstRate)/float64(buf.SampleRate) + 0.5)
	if len(output) > want {
		output = output[:want]
	}
	samples := make([]float32, len(output))
	for i, s := range output {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		samples[i] = float32(s)
	}
	return &pcm.Buffer{Samples: samples, SampleRate: dstRate}, nil
}

// Downmix averages interleaved multi-channel samples into mono. A trailing
// partial frame is dropped. channels <= 1 returns samples as is.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
