// Package fbank computes short-time spectral features from PCM audio.
//
// It provides the framing and spectral front-end used by the voiceprint
// extractor: a Hamming-windowed power spectrogram, log mel filterbank
// energies, and mel-frequency cepstral coefficients (MFCC).
//
// Default parameters:
//
//	SampleRate:  16000
//	WindowSize:  400 (25 ms)
//	HopSize:     160 (10 ms)
//	FFTSize:     512
//	NumMels:     40
//	NumCeps:     13
//	LowFreq:     20
//	HighFreq:  7600
//	PreEmphasis: 0
package fbank

import (
	"math"
)

// Config controls spectral analysis parameters.
type Config struct {
	SampleRate  int     // audio sample rate in Hz (default 16000)
	WindowSize  int     // window length in samples (default 400 = 25ms)
	HopSize     int     // hop length in samples (default 160 = 10ms)
	FFTSize     int     // FFT size, power of two >= WindowSize (default 512)
	NumMels     int     // number of mel bins (default 40)
	NumCeps     int     // number of cepstral coefficients including c0 (default 13)
	LowFreq     float64 // lowest mel frequency (default 20)
	HighFreq    float64 // highest mel frequency (default 7600)
	PreEmphasis float64 // pre-emphasis coefficient, 0 disables (default 0)
}

// DefaultConfig returns the analysis config used for voice features.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		WindowSize:  400,
		HopSize:     160,
		FFTSize:     512,
		NumMels:     40,
		NumCeps:     13,
		LowFreq:     20,
		HighFreq:    7600,
		PreEmphasis: 0,
	}
}

// Extractor computes spectral features from PCM samples. It is safe for
// concurrent use.
type Extractor struct {
	cfg     Config
	window  []float64 // Hamming window
	fft     *fftPlan
	melBank []melFilter
	dct     [][]float64 // [NumCeps][NumMels] orthonormal DCT-II basis
}

// New creates a new fbank Extractor with the given config.
func New(cfg Config) *Extractor {
	e := &Extractor{cfg: cfg}
	e.window = hammingWindow(cfg.WindowSize)
	e.fft = newFFTPlan(cfg.FFTSize)
	e.melBank = newMelBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq)
	e.dct = dctMatrix(cfg.NumCeps, cfg.NumMels)
	return e
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// NumFrames returns the number of full analysis windows in n samples.
func (e *Extractor) NumFrames(n int) int {
	if n < e.cfg.WindowSize {
		return 0
	}
	return (n-e.cfg.WindowSize)/e.cfg.HopSize + 1
}

// BinFrequency returns the center frequency in Hz of spectrum bin k.
func (e *Extractor) BinFrequency(k int) float64 {
	return float64(k) * float64(e.cfg.SampleRate) / float64(e.cfg.FFTSize)
}

// Spectrogram returns the power spectrum of every analysis window.
// Output: [T][FFTSize/2+1] where T = NumFrames(len(pcm)).
func (e *Extractor) Spectrogram(pcm []float32) [][]float64 {
	cfg := e.cfg
	numFrames := e.NumFrames(len(pcm))
	if numFrames == 0 {
		return nil
	}
	bins := cfg.FFTSize/2 + 1
	frame := make([]complex128, cfg.FFTSize)

	spec := make([][]float64, numFrames)
	for t := range spec {
		start := t * cfg.HopSize
		clear(frame)
		prev := 0.0
		if start > 0 {
			prev = float64(pcm[start-1])
		}
		for i, w := range e.window {
			s := float64(pcm[start+i])
			x := s
			if cfg.PreEmphasis > 0 {
				x -= cfg.PreEmphasis * prev
			}
			prev = s
			frame[i] = complex(x*w, 0)
		}
		spec[t] = make([]float64, bins)
		e.fft.power(frame, spec[t])
	}
	return spec
}

// LogMel applies the mel filterbank to a power spectrum and returns natural
// log energies, floored at 1e-10 to avoid -Inf.
func (e *Extractor) LogMel(power []float64) []float64 {
	mel := make([]float64, e.cfg.NumMels)
	for m, f := range e.melBank {
		mel[m] = math.Log(max(f.apply(power), 1e-10))
	}
	return mel
}

// Cepstrum converts log mel energies to NumCeps cepstral coefficients.
func (e *Extractor) Cepstrum(logMel []float64) []float64 {
	ceps := make([]float64, len(e.dct))
	for c, basis := range e.dct {
		sum := 0.0
		for m, b := range basis {
			sum += b * logMel[m]
		}
		ceps[c] = sum
	}
	return ceps
}
