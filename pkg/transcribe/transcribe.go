// Package transcribe converts short speech clips to text.
//
// The voice authentication flow only needs one call, Transcribe, so the
// package keeps the interface minimal and offers implementations backed by
// OpenAI Whisper, Google Gemini, and a static text for tests and offline
// deployments.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/emora/voiceauth/pkg/audio/pcm"
)

// ErrEmptyAudio is returned when Transcribe is called without samples.
var ErrEmptyAudio = errors.New("transcribe: empty audio")

// Transcriber turns mono PCM into text.
//
// Implementations must be safe for concurrent use.
type Transcriber interface {
	Transcribe(ctx context.Context, audio *pcm.Buffer) (string, error)
}

// Func adapts a function to Transcriber.
type Func func(ctx context.Context, audio *pcm.Buffer) (string, error)

// Transcribe calls f.
func (f Func) Transcribe(ctx context.Context, audio *pcm.Buffer) (string, error) {
	return f(ctx, audio)
}

// Static returns the same text for every clip.
type Static string

// Transcribe returns s.
func (s Static) Transcribe(_ context.Context, audio *pcm.Buffer) (string, error) {
	if audio == nil || audio.Len() == 0 {
		return "", ErrEmptyAudio
	}
	return string(s), nil
}

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderStatic = "static"
	ProviderNone   = "none"
)

// Config selects and configures a Transcriber.
type Config struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key,omitempty"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Language string `yaml:"language,omitempty"`
	// Text is returned by the static provider.
	Text string `yaml:"text,omitempty"`
}

// New builds the Transcriber described by cfg. An empty provider or "none"
// yields a Static transcriber with empty text.
func New(ctx context.Context, cfg Config) (Transcriber, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		return Static(""), nil
	case ProviderStatic:
		return Static(cfg.Text), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("transcribe: openai requires api_key")
		}
		opts := []Option{WithModel(cfg.Model), WithLanguage(cfg.Language)}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		return NewOpenAI(cfg.APIKey, opts...), nil
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, errors.New("transcribe: gemini requires api_key")
		}
		opts := []Option{WithModel(cfg.Model), WithLanguage(cfg.Language)}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		return NewGemini(ctx, cfg.APIKey, opts...)
	}
	return nil, fmt.Errorf("transcribe: unknown provider %q", cfg.Provider)
}
