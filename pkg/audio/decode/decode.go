// Package decode turns encoded audio uploads into 16 kHz mono PCM.
//
// WAV input is parsed in process. Compressed containers (WebM, Ogg, MP3,
// MP4) are converted by an ffmpeg subprocess, the same conversion browsers'
// MediaRecorder output needs anywhere else.
package decode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emora/voiceauth/pkg/audio/pcm"
	"github.com/emora/voiceauth/pkg/audio/resampler"
	"github.com/emora/voiceauth/pkg/audio/wav"
)

// Errors returned by Decoder.Decode. All of them mean the input could not be
// turned into audio.
var (
	ErrEmpty       = errors.New("decode: empty audio")
	ErrTooSmall    = errors.New("decode: audio too small")
	ErrTooLarge    = errors.New("decode: audio too large")
	ErrUnsupported = errors.New("decode: unsupported audio format")
	ErrMalformed   = errors.New("decode: malformed audio")
)

// Defaults for Config.
const (
	DefaultSampleRate = 16000
	DefaultMinBytes   = 100
	DefaultMaxBytes   = 16 << 20
	DefaultTimeout    = 30 * time.Second
)

// Config controls a Decoder.
type Config struct {
	// SampleRate is the output rate in Hz.
	SampleRate int
	// MinBytes rejects uploads smaller than this.
	MinBytes int
	// MaxBytes rejects uploads larger than this.
	MaxBytes int
	// FFmpegPath is the ffmpeg binary. Empty means "ffmpeg" on PATH.
	FFmpegPath string
	// DisableFFmpeg restricts decoding to WAV.
	DisableFFmpeg bool
	// Timeout bounds one ffmpeg conversion.
	Timeout time.Duration
}

func (c *Config) setDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.MinBytes <= 0 {
		c.MinBytes = DefaultMinBytes
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Decoder converts encoded audio to mono PCM at a fixed sample rate.
// It is safe for concurrent use.
type Decoder struct {
	cfg    Config
	ffmpeg *FFmpeg
}

// New creates a Decoder. Zero Config fields take their defaults.
func New(cfg Config) *Decoder {
	cfg.setDefaults()
	d := &Decoder{cfg: cfg}
	if !cfg.DisableFFmpeg {
		d.ffmpeg = &FFmpeg{Path: cfg.FFmpegPath, Timeout: cfg.Timeout}
	}
	return d
}

// SampleRate returns the output sample rate.
func (d *Decoder) SampleRate() int {
	return d.cfg.SampleRate
}

// Decode validates and decodes data. The result is mono at SampleRate().
func (d *Decoder) Decode(ctx context.Context, data []byte) (*pcm.Buffer, error) {
	if err := d.Validate(data); err != nil {
		return nil, err
	}

	c := Sniff(data)
	switch c {
	case WAV:
		return d.decodeWAV(data)
	case MP3, WebM, Ogg, MP4:
		if d.ffmpeg == nil {
			return nil, fmt.Errorf("%w: %s requires ffmpeg", ErrUnsupported, c)
		}
		out := pcm.Mono(d.cfg.SampleRate)
		raw, err := d.ffmpeg.Convert(ctx, data, out)
		if err != nil {
			return nil, err
		}
		return out.Decode(raw), nil
	}
	return nil, ErrUnsupported
}

// Validate performs the size and container checks Decode runs before
// decoding.
func (d *Decoder) Validate(data []byte) error {
	switch {
	case len(data) == 0:
		return ErrEmpty
	case len(data) > d.cfg.MaxBytes:
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), d.cfg.MaxBytes)
	case len(data) < d.cfg.MinBytes:
		return fmt.Errorf("%w: %d bytes", ErrTooSmall, len(data))
	case Sniff(data) == Unknown:
		return ErrUnsupported
	}
	return nil
}

func (d *Decoder) decodeWAV(data []byte) (*pcm.Buffer, error) {
	a, err := wav.Decode(data)
	if err != nil {
		if errors.Is(err, wav.ErrUnsupported) {
			return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	mono := &pcm.Buffer{
		Samples:    resampler.Downmix(a.Samples, a.Channels),
		SampleRate: a.SampleRate,
	}
	out, err := resampler.Resample(mono, d.cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return out, nil
}
