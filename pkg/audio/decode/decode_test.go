package decode

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os/exec"
	"testing"

	"github.com/emora/voiceauth/pkg/audio/pcm"
	"github.com/emora/voiceauth/pkg/audio/wav"
)

func tone(rate int, seconds float64) *pcm.Buffer {
	n := int(float64(rate) * seconds)
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(0.4 * math.Sin(2*math.Pi*220*float64(i)/float64(rate)))
	}
	return &pcm.Buffer{Samples: s, SampleRate: rate}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Container
	}{
		{"wav", wav.Encode(tone(16000, 0.01)), WAV},
		{"id3", []byte("ID3\x04\x00"), MP3},
		{"mpeg sync", []byte{0xFF, 0xFB, 0x90, 0x00}, MP3},
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F}, WebM},
		{"ogg", []byte("OggS\x00\x02"), Ogg},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A "), MP4},
		{"riff avi", []byte("RIFF\x00\x00\x00\x00AVI "), Unknown},
		{"text", []byte("hello world"), Unknown},
		{"empty", nil, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContainerExt(t *testing.T) {
	if WebM.Ext() != ".webm" || Unknown.Ext() != ".bin" {
		t.Errorf("Ext = %q, %q", WebM.Ext(), Unknown.Ext())
	}
	if WAV.MIMEType() != "audio/wav" {
		t.Errorf("MIMEType = %q", WAV.MIMEType())
	}
}

func TestDecodeWAVResamples(t *testing.T) {
	d := New(Config{DisableFFmpeg: true})
	buf, err := d.Decode(context.Background(), wav.Encode(tone(48000, 1)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.SampleRate != 16000 {
		t.Fatalf("SampleRate = %d", buf.SampleRate)
	}
	if n := buf.Len(); n < 15000 || n > 16000 {
		t.Errorf("Len = %d, want about 16000", n)
	}
}

func TestDecodeWAVNative(t *testing.T) {
	d := New(Config{DisableFFmpeg: true})
	in := tone(16000, 0.5)
	buf, err := d.Decode(context.Background(), wav.Encode(in))
	if err != nil {
		t.Fatal(err)
	}
	if buf.Len() != in.Len() {
		t.Fatalf("Len = %d, want %d", buf.Len(), in.Len())
	}
}

func TestDecodeErrors(t *testing.T) {
	d := New(Config{DisableFFmpeg: true, MaxBytes: 4096})
	webm := append([]byte{0x1A, 0x45, 0xDF, 0xA3}, make([]byte, 200)...)
	truncated := wav.Encode(tone(16000, 0.1))[:36]
	truncated = append(truncated, make([]byte, 100)...)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrEmpty},
		{"too small", []byte("RIFF0000WAVE"), ErrTooSmall},
		{"too large", make([]byte, 5000), ErrTooLarge},
		{"unknown", bytes.Repeat([]byte("x"), 200), ErrUnsupported},
		{"webm without ffmpeg", webm, ErrUnsupported},
		{"broken wav", truncated, ErrMalformed},
		{"2 Hz wav", wav.Encode(&pcm.Buffer{SampleRate: 2, Samples: make([]float32, 2000)}), ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode(context.Background(), tt.data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFFmpegConvert(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	f := &FFmpeg{Path: "ffmpeg", Timeout: DefaultTimeout}
	raw, err := f.Convert(context.Background(), wav.Encode(tone(44100, 0.5)), pcm.Mono(16000))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if n := len(raw) / 2; n < 7500 || n > 8500 {
		t.Errorf("got %d samples, want about 8000", n)
	}

	_, err = f.Convert(context.Background(), bytes.Repeat([]byte{0x1A}, 300), pcm.Mono(16000))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("garbage input err = %v, want ErrMalformed", err)
	}
}

func TestFFmpegMissing(t *testing.T) {
	f := &FFmpeg{Path: "definitely-not-ffmpeg-binary"}
	_, err := f.Convert(context.Background(), []byte("x"), pcm.Mono(16000))
	if !errors.Is(err, ErrFFmpegMissing) {
		t.Fatalf("err = %v, want ErrFFmpegMissing", err)
	}
}

func TestDecodeWithoutFFmpegBinary(t *testing.T) {
	d := New(Config{FFmpegPath: "definitely-not-ffmpeg-binary"})
	webm := append([]byte{0x1A, 0x45, 0xDF, 0xA3}, make([]byte, 2048)...)
	_, err := d.Decode(context.Background(), webm)
	if !errors.Is(err, ErrFFmpegMissing) {
		t.Fatalf("err = %v, want ErrFFmpegMissing", err)
	}
	if errors.Is(err, ErrMalformed) || errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v should not look like bad input", err)
	}
}
