package synth

import (
	"math"
	"testing"
	"time"
)

func TestTone(t *testing.T) {
	buf := Tone(440, time.Second, 16000, 0.5)
	if buf.Len() != 16000 || buf.SampleRate != 16000 {
		t.Fatalf("got %d samples at %d Hz", buf.Len(), buf.SampleRate)
	}
	if p := buf.Peak(); math.Abs(float64(p)-0.5) > 0.01 {
		t.Errorf("Peak = %f, want 0.5", p)
	}
	if Silence(time.Second, 8000).Peak() != 0 {
		t.Error("silence is not silent")
	}
}

func TestNoiseDeterministic(t *testing.T) {
	a := Noise(100*time.Millisecond, 16000, 0.3, 7)
	b := Noise(100*time.Millisecond, 16000, 0.3, 7)
	c := Noise(100*time.Millisecond, 16000, 0.3, 8)
	same, diff := true, false
	for i := range a.Samples {
		same = same && a.Samples[i] == b.Samples[i]
		diff = diff || a.Samples[i] != c.Samples[i]
	}
	if !same {
		t.Error("same seed produced different noise")
	}
	if !diff {
		t.Error("different seeds produced identical noise")
	}
	if a.Peak() > 0.3 {
		t.Errorf("Peak = %f exceeds amplitude", a.Peak())
	}
}

func TestSpeak(t *testing.T) {
	buf := Alice.Speak(2*time.Second, 16000)
	if buf.Len() != 32000 {
		t.Fatalf("Len = %d", buf.Len())
	}
	if p := buf.Peak(); p < 0.4 || p > 0.6 {
		t.Errorf("Peak = %f, want about Level", p)
	}

	again := Alice.Speak(2*time.Second, 16000)
	for i := range buf.Samples {
		if buf.Samples[i] != again.Samples[i] {
			t.Fatalf("sample %d differs between renders", i)
		}
	}

	// Syllable gaps carry only breath noise.
	gap := buf.Samples[int(0.2*16000):int(0.24*16000)]
	for _, s := range gap {
		if math.Abs(float64(s)) > 0.02 {
			t.Fatalf("gap sample %f is louder than breath", s)
		}
	}
}

func TestConcatAndChirp(t *testing.T) {
	buf := Concat(Chirp(100, 1000, 500*time.Millisecond, 16000, 0.5), Silence(250*time.Millisecond, 16000))
	if buf.Len() != 12000 {
		t.Fatalf("Len = %d, want 12000", buf.Len())
	}
	if buf.Duration() != 750*time.Millisecond {
		t.Errorf("Duration = %v", buf.Duration())
	}
}
