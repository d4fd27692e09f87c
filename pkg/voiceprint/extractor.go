package voiceprint

import (
	"fmt"
	"math"
	"time"

	"github.com/emora/voiceauth/pkg/audio/fbank"
	"github.com/emora/voiceauth/pkg/audio/pcm"
)

// Analysis parameters. They are part of SchemaVersion.
const (
	// SampleRate is the only rate Extract accepts.
	SampleRate = 16000

	// MinDuration is the shortest raw clip accepted.
	MinDuration = 500 * time.Millisecond

	// MinVoiced is the least voiced content required.
	MinVoiced = 300 * time.Millisecond

	// SilenceRMS is the frame RMS (about -45 dBFS) the loudest frame must
	// reach for the clip to count as sound at all.
	SilenceRMS = 0.0056

	// relativeRMS drops frames more than ~26 dB below the loudest frame.
	// The gate is relative only, so the voiced frames do not depend on gain.
	relativeRMS = 0.05

	rolloffPercent = 0.85
	pitchMinHz     = 60
	pitchMaxHz     = 400
	pitchThreshold = 0.3
)

// Analysis is the detailed result of running the extractor on one clip.
type Analysis struct {
	// Vector is the normalized feature vector.
	Vector FeatureVector
	// Raw holds the unscaled statistics in vector order.
	Raw [Dimension]float64
	// Duration is the length of the input.
	Duration time.Duration
	// Voiced is the total length of frames classified as speech.
	Voiced time.Duration
	// VoicedFrames and PitchedFrames count analysis windows.
	VoicedFrames  int
	PitchedFrames int
}

// Extractor computes FeatureVectors from 16 kHz mono PCM. It is stateless
// and safe for concurrent use.
type Extractor struct {
	spec  *fbank.Extractor
	pitch *pitchTracker
}

// NewExtractor creates an Extractor with the fixed analysis parameters of
// the current SchemaVersion.
func NewExtractor() *Extractor {
	return &Extractor{
		spec:  fbank.New(fbank.DefaultConfig()),
		pitch: newPitchTracker(SampleRate, pitchMinHz, pitchMaxHz, pitchThreshold),
	}
}

// Extract returns the feature vector of samples.
//
// Empty input or a sample rate other than SampleRate yields ErrDecode. Input
// shorter than MinDuration, or with less than MinVoiced of speech, yields
// ErrInsufficientAudio.
func (e *Extractor) Extract(samples []float32, sampleRate int) (FeatureVector, error) {
	a, err := e.Analyze(samples, sampleRate)
	if err != nil {
		return nil, err
	}
	return a.Vector, nil
}

// ExtractBuffer is Extract for a pcm.Buffer.
func (e *Extractor) ExtractBuffer(buf *pcm.Buffer) (FeatureVector, error) {
	return e.Extract(buf.Samples, buf.SampleRate)
}

// Analyze is Extract with the intermediate statistics.
func (e *Extractor) Analyze(samples []float32, sampleRate int) (*Analysis, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrDecode)
	}
	if sampleRate != SampleRate {
		return nil, fmt.Errorf("%w: sample rate %d, want %d", ErrDecode, sampleRate, SampleRate)
	}

	cfg := e.spec.Config()
	a := &Analysis{
		Duration: time.Duration(len(samples)) * time.Second / SampleRate,
	}
	if a.Duration < MinDuration {
		return nil, fmt.Errorf("%w: clip is %v, need %v", ErrInsufficientAudio, a.Duration, MinDuration)
	}

	numFrames := e.spec.NumFrames(len(samples))
	rms := make([]float64, numFrames)
	loudest := 0.0
	for t := range rms {
		rms[t] = frameRMS(samples[t*cfg.HopSize : t*cfg.HopSize+cfg.WindowSize])
		loudest = max(loudest, rms[t])
	}
	if loudest < SilenceRMS {
		return nil, fmt.Errorf("%w: clip is silent", ErrInsufficientAudio)
	}
	gate := loudest * relativeRMS

	var voiced []int
	for t, r := range rms {
		if r >= gate {
			voiced = append(voiced, t)
		}
	}
	a.VoicedFrames = len(voiced)
	a.Voiced = time.Duration(len(voiced)*cfg.HopSize) * time.Second / SampleRate
	if a.Voiced < MinVoiced {
		return nil, fmt.Errorf("%w: %v voiced, need %v", ErrInsufficientAudio, a.Voiced, MinVoiced)
	}

	spec := e.spec.Spectrogram(samples)

	var (
		pitches   []float64
		centroids = make([]float64, 0, len(voiced))
		rolloffs  = make([]float64, 0, len(voiced))
		energies  = make([]float64, 0, len(voiced))
		zcrs      = make([]float64, 0, len(voiced))
		ceps      = make([][]float64, numMFCC)
		allCeps   = make([]float64, 0, len(voiced)*numMFCC)
	)
	for _, t := range voiced {
		start := t * cfg.HopSize
		frame := samples[start : start+cfg.WindowSize]

		// Level relative to the loudest frame keeps the vector independent
		// of microphone gain.
		energies = append(energies, 20*math.Log10(rms[t]/loudest))
		zcrs = append(zcrs, zeroCrossingRate(frame))

		if f0, ok := e.pitch.estimate(samples, start); ok {
			pitches = append(pitches, f0)
		}

		c, r := e.centroidRolloff(spec[t])
		centroids = append(centroids, c)
		rolloffs = append(rolloffs, r)

		cc := e.spec.Cepstrum(e.spec.LogMel(spec[t]))
		for k := range numMFCC {
			ceps[k] = append(ceps[k], cc[k+1])
			allCeps = append(allCeps, cc[k+1])
		}
	}
	a.PitchedFrames = len(pitches)

	raw := &a.Raw
	raw[idxPitchMean], raw[idxPitchStd] = meanStd(pitches)
	raw[idxPitchRange] = span(pitches)
	raw[idxCentroidMean], raw[idxCentroidStd] = meanStd(centroids)
	raw[idxEnergyMean], raw[idxEnergyStd] = meanStd(energies)
	raw[idxZCRMean], raw[idxZCRStd] = meanStd(zcrs)
	raw[idxRolloffMean], raw[idxRolloffStd] = meanStd(rolloffs)
	for k := range numMFCC {
		raw[idxMFCC+k], _ = meanStd(ceps[k])
	}
	_, raw[idxMFCCStd] = meanStd(allCeps)

	a.Vector = normalize(raw)
	return a, nil
}

// centroidRolloff returns the magnitude-weighted mean frequency and the
// frequency below which rolloffPercent of the magnitude lies.
func (e *Extractor) centroidRolloff(power []float64) (centroid, rolloff float64) {
	var total, weighted float64
	mag := make([]float64, len(power))
	for k, p := range power {
		mag[k] = math.Sqrt(p)
		total += mag[k]
		weighted += mag[k] * e.spec.BinFrequency(k)
	}
	if total <= 0 {
		return 0, 0
	}
	centroid = weighted / total

	target := rolloffPercent * total
	var cum float64
	for k, m := range mag {
		cum += m
		if cum >= target {
			return centroid, e.spec.BinFrequency(k)
		}
	}
	return centroid, e.spec.BinFrequency(len(mag) - 1)
}

func frameRMS(frame []float32) float64 {
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

func zeroCrossingRate(frame []float32) float64 {
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame))
}
