package pcm

import (
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	f := Mono(16000)
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if f.String() != "s16le/16000Hz/1ch" {
		t.Errorf("String = %q", f.String())
	}
	if got := f.Duration(32001); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}

	stereo := Format{SampleRate: 8000, Channels: 2}
	if stereo.FrameSize() != 4 {
		t.Errorf("FrameSize = %d, want 4", stereo.FrameSize())
	}
	if got := stereo.Duration(32000); got != time.Second {
		t.Errorf("stereo Duration = %v, want 1s", got)
	}

	for _, bad := range []Format{{}, {SampleRate: 16000}, {SampleRate: -1, Channels: 1}} {
		if bad.Validate() == nil {
			t.Errorf("%s: Validate accepted invalid format", bad)
		}
		if bad.Duration(100) != 0 {
			t.Errorf("%s: Duration should be zero", bad)
		}
	}
}

func TestFormatDecodeDownmixes(t *testing.T) {
	// One frame of left=0.5, right=-0.25 plus a dangling byte.
	raw := append(EncodeS16LE([]float32{0.5, -0.25}), 0x7f)
	buf := Format{SampleRate: 8000, Channels: 2}.Decode(raw)
	if buf.Len() != 1 || buf.SampleRate != 8000 {
		t.Fatalf("got %d samples at %d Hz", buf.Len(), buf.SampleRate)
	}
	if d := buf.Samples[0] - 0.125; d < -0.001 || d > 0.001 {
		t.Errorf("sample = %f, want 0.125", buf.Samples[0])
	}
}

func TestS16LERoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1, -1}
	out := DecodeS16LE(EncodeS16LE(in))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		d := out[i] - in[i]
		if d < -0.001 || d > 0.001 {
			t.Errorf("sample %d = %f, want %f", i, out[i], in[i])
		}
	}
}

func TestFloatToInt16Clips(t *testing.T) {
	if got := FloatToInt16(2); got != 32767 {
		t.Errorf("FloatToInt16(2) = %d", got)
	}
	if got := FloatToInt16(-2); got != -32768 {
		t.Errorf("FloatToInt16(-2) = %d", got)
	}
}

func TestBuffer(t *testing.T) {
	buf := Mono(16000).Decode(make([]byte, 32001))
	if buf.Len() != 16000 {
		t.Fatalf("Len = %d, want 16000", buf.Len())
	}
	if buf.Duration() != time.Second {
		t.Errorf("Duration = %v, want 1s", buf.Duration())
	}
	buf.Samples[10] = -0.75
	if buf.Peak() != 0.75 {
		t.Errorf("Peak = %f, want 0.75", buf.Peak())
	}
	if (&Buffer{Samples: []float32{1}}).Duration() != 0 {
		t.Error("zero sample rate should give zero duration")
	}
}
