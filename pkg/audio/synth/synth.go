// Package synth generates deterministic test audio: tones, noise, silence
// and a crude formant voice that produces speech-like feature statistics.
package synth

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/emora/voiceauth/pkg/audio/pcm"
)

// Rest is a frequency of zero, producing silence.
const Rest = 0

func numSamples(d time.Duration, rate int) int {
	return int(int64(d) * int64(rate) / int64(time.Second))
}

// Tone returns a pure sine wave.
func Tone(freq float64, d time.Duration, rate int, amp float64) *pcm.Buffer {
	s := make([]float32, numSamples(d, rate))
	if freq != Rest {
		for i := range s {
			s[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		}
	}
	return &pcm.Buffer{Samples: s, SampleRate: rate}
}

// Silence returns d of digital silence.
func Silence(d time.Duration, rate int) *pcm.Buffer {
	return Tone(Rest, d, rate, 0)
}

// Noise returns uniform white noise with the given peak amplitude.
func Noise(d time.Duration, rate int, amp float64, seed uint64) *pcm.Buffer {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	s := make([]float32, numSamples(d, rate))
	for i := range s {
		s[i] = float32(amp * (2*r.Float64() - 1))
	}
	return &pcm.Buffer{Samples: s, SampleRate: rate}
}

// Chirp returns a linear frequency sweep from f0 to f1.
func Chirp(f0, f1 float64, d time.Duration, rate int, amp float64) *pcm.Buffer {
	n := numSamples(d, rate)
	s := make([]float32, n)
	total := d.Seconds()
	for i := range s {
		t := float64(i) / float64(rate)
		phase := 2 * math.Pi * (f0*t + (f1-f0)*t*t/(2*total))
		s[i] = float32(amp * math.Sin(phase))
	}
	return &pcm.Buffer{Samples: s, SampleRate: rate}
}

// Concat joins buffers that share a sample rate.
func Concat(bufs ...*pcm.Buffer) *pcm.Buffer {
	out := &pcm.Buffer{}
	for _, b := range bufs {
		out.SampleRate = b.SampleRate
		out.Samples = append(out.Samples, b.Samples...)
	}
	return out
}
