package voiceprint

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/emora/voiceauth/pkg/audio/synth"
)

func TestExtractDimensionAndFinite(t *testing.T) {
	ext := NewExtractor()
	tests := []struct {
		name    string
		samples []float32
	}{
		{"alice", synth.Alice.Speak(2*time.Second, SampleRate).Samples},
		{"bob", synth.Bob.Speak(2*time.Second, SampleRate).Samples},
		{"tone", synth.Tone(220, time.Second, SampleRate, 0.5).Samples},
		{"chirp", synth.Chirp(100, 3000, time.Second, SampleRate, 0.5).Samples},
		{"noise", synth.Noise(time.Second, SampleRate, 0.3, 42).Samples},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ext.Extract(tt.samples, SampleRate)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if v.Len() != Dimension {
				t.Fatalf("Len = %d, want %d", v.Len(), Dimension)
			}
			for i, x := range v {
				if math.IsNaN(x) || math.IsInf(x, 0) {
					t.Errorf("%s = %f", FeatureNames[i], x)
				}
			}
		})
	}
}

func TestExtractDeterministic(t *testing.T) {
	ext := NewExtractor()
	clip := synth.Alice.Speak(2*time.Second, SampleRate).Samples
	a, err := ext.Extract(clip, SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewExtractor().Extract(clip, SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("%s differs: %f vs %f", FeatureNames[i], a[i], b[i])
		}
	}
}

func TestAnalyzePitch(t *testing.T) {
	ext := NewExtractor()
	a, err := ext.Analyze(synth.Tone(200, time.Second, SampleRate, 0.5).Samples, SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if a.PitchedFrames == 0 {
		t.Fatal("no pitched frames in a pure tone")
	}
	if got := a.Raw[idxPitchMean]; math.Abs(got-200) > 5 {
		t.Errorf("pitch_mean = %f, want ~200", got)
	}
	if got := a.Raw[idxPitchStd]; got > 5 {
		t.Errorf("pitch_std = %f, want ~0", got)
	}

	noise, err := ext.Analyze(synth.Noise(time.Second, SampleRate, 0.3, 1).Samples, SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if noise.Raw[idxZCRMean] < a.Raw[idxZCRMean] {
		t.Errorf("noise zcr %f below tone zcr %f", noise.Raw[idxZCRMean], a.Raw[idxZCRMean])
	}
	if noise.Raw[idxRolloffMean] < 3000 {
		t.Errorf("noise rolloff = %f, want high", noise.Raw[idxRolloffMean])
	}
}

func TestExtractErrors(t *testing.T) {
	ext := NewExtractor()
	tests := []struct {
		name    string
		samples []float32
		rate    int
		want    error
	}{
		{"empty", nil, SampleRate, ErrDecode},
		{"wrong rate", make([]float32, 16000), 8000, ErrDecode},
		{"silence", synth.Silence(2*time.Second, SampleRate).Samples, SampleRate, ErrInsufficientAudio},
		{"too short", synth.Alice.Speak(400*time.Millisecond, SampleRate).Samples, SampleRate, ErrInsufficientAudio},
		{"near silence", synth.Noise(2*time.Second, SampleRate, 0.001, 3).Samples, SampleRate, ErrInsufficientAudio},
		{
			"short burst",
			synth.Concat(
				synth.Tone(300, 200*time.Millisecond, SampleRate, 0.5),
				synth.Silence(time.Second, SampleRate),
			).Samples,
			SampleRate,
			ErrInsufficientAudio,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ext.Extract(tt.samples, tt.rate)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDifferentSpeakersDiffer(t *testing.T) {
	ext := NewExtractor()
	alice, err := ext.ExtractBuffer(synth.Alice.Speak(2*time.Second, SampleRate))
	if err != nil {
		t.Fatal(err)
	}
	bob, err := ext.ExtractBuffer(synth.Bob.Speak(2*time.Second, SampleRate))
	if err != nil {
		t.Fatal(err)
	}
	self, _ := Cosine(alice, alice)
	cross, _ := Cosine(alice, bob)
	if cross >= self || cross > 0.999 {
		t.Fatalf("cross-speaker similarity %f, self similarity %f", cross, self)
	}
}

func TestExtractIgnoresGain(t *testing.T) {
	ext := NewExtractor()
	clip := synth.Alice.Speak(2*time.Second, SampleRate)
	quiet := make([]float32, clip.Len())
	for i, v := range clip.Samples {
		quiet[i] = v * 0.3
	}

	loud, err := ext.ExtractBuffer(clip)
	if err != nil {
		t.Fatal(err)
	}
	soft, err := ext.Extract(quiet, SampleRate)
	if err != nil {
		t.Fatalf("Extract at 0.3x gain: %v", err)
	}
	sim, err := Cosine(loud, soft)
	if err != nil {
		t.Fatal(err)
	}
	if sim < 0.85 {
		t.Fatalf("similarity at 0.3x gain = %f, want >= 0.85", sim)
	}
	for _, i := range []int{idxEnergyMean, idxEnergyStd} {
		if d := math.Abs(loud[i] - soft[i]); d > 0.01 {
			t.Errorf("%s moved by %f with gain", FeatureNames[i], d)
		}
	}
}
