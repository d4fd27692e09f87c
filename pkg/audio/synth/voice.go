package synth

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/emora/voiceauth/pkg/audio/pcm"
)

// Voice describes a synthetic speaker: a glottal harmonic source shaped by
// three formant resonances and chopped into syllables.
type Voice struct {
	Pitch      float64    // mean fundamental in Hz
	Intonation float64    // slow pitch drift as a fraction of Pitch
	Vibrato    float64    // 5 Hz pitch wobble depth in Hz
	Formants   [3]float64 // resonance centers in Hz
	Bandwidth  float64    // formant bandwidth in Hz
	Breath     float64    // additive noise relative to peak, 0..1
	Syllables  float64    // syllables per second
	Level      float64    // peak amplitude
	Seed       uint64
}

// Preset voices used by tests and the synth command.
var (
	Alice = Voice{
		Pitch: 210, Intonation: 0.08, Vibrato: 3,
		Formants: [3]float64{850, 1600, 2900}, Bandwidth: 120,
		Breath: 0.02, Syllables: 4, Level: 0.5, Seed: 1,
	}
	Bob = Voice{
		Pitch: 105, Intonation: 0.05, Vibrato: 1.5,
		Formants: [3]float64{500, 1100, 2400}, Bandwidth: 90,
		Breath: 0.05, Syllables: 3, Level: 0.6, Seed: 2,
	}
)

// Speak renders d of speech-like audio at rate.
func (v Voice) Speak(d time.Duration, rate int) *pcm.Buffer {
	n := numSamples(d, rate)
	s := make([]float32, n)
	r := rand.New(rand.NewPCG(v.Seed, v.Seed+1))
	bw := v.Bandwidth
	if bw <= 0 {
		bw = 100
	}
	nyquist := float64(rate) / 2

	// Harmonic weights depend only on the instantaneous f0, which varies
	// slowly, so they are refreshed every 10 ms.
	var weights []float64
	refresh := rate / 100
	phase := 0.0
	peak := 0.0
	raw := make([]float64, n)
	for i := range raw {
		t := float64(i) / float64(rate)
		f0 := v.Pitch * (1 + v.Intonation*math.Sin(2*math.Pi*0.7*t))
		f0 += v.Vibrato * math.Sin(2*math.Pi*5*t)
		phase += 2 * math.Pi * f0 / float64(rate)

		if i%refresh == 0 {
			weights = weights[:0]
			for k := 1; float64(k)*f0 < nyquist*0.9; k++ {
				fk := float64(k) * f0
				w := 0.0
				for j, fc := range v.Formants {
					d := (fk - fc) / (bw * float64(j+1))
					w += 1 / (1 + d*d) / float64(j+1)
				}
				weights = append(weights, w/float64(k))
			}
		}

		var x float64
		for k, w := range weights {
			x += w * math.Sin(float64(k+1)*phase)
		}
		x *= syllableEnvelope(t, v.Syllables)
		raw[i] = x
		peak = max(peak, math.Abs(x))
	}

	gain := v.Level
	if peak > 0 {
		gain /= peak
	}
	for i, x := range raw {
		y := x*gain + v.Breath*v.Level*(2*r.Float64()-1)
		s[i] = float32(max(-1, min(1, y)))
	}
	return &pcm.Buffer{Samples: s, SampleRate: rate}
}

// syllableEnvelope is a raised cosine per syllable with a short gap between
// syllables, giving roughly 75% voiced time.
func syllableEnvelope(t, rate float64) float64 {
	if rate <= 0 {
		return 1
	}
	pos := math.Mod(t*rate, 1)
	const voiced = 0.75
	if pos >= voiced {
		return 0
	}
	return 0.5 - 0.5*math.Cos(2*math.Pi*pos/voiced)
}
