package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/emora/voiceauth/pkg/audio/pcm"
	"github.com/emora/voiceauth/pkg/audio/wav"
)

const openAIDefaultModel = string(openai.AudioModelWhisper1)

// OpenAI implements [Transcriber] using the OpenAI audio transcription API.
//
// Any OpenAI-compatible server (e.g. a self-hosted whisper.cpp server) can
// be used by setting WithBaseURL.
type OpenAI struct {
	client   *openai.Client
	model    string
	language string
}

var _ Transcriber = (*OpenAI)(nil)

// NewOpenAI creates a Whisper transcriber.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	cfg := config{
		model:      openAIDefaultModel,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAI{client: &client, model: cfg.model, language: cfg.language}
}

// Model returns the model identifier (e.g., "whisper-1").
func (o *OpenAI) Model() string {
	return o.model
}

// Transcribe uploads the clip as a 16-bit WAV file.
func (o *OpenAI) Transcribe(ctx context.Context, audio *pcm.Buffer) (string, error) {
	if audio == nil || audio.Len() == 0 {
		return "", ErrEmptyAudio
	}
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav.Encode(audio)), "sample.wav", "audio/wav"),
		Model: openai.AudioModel(o.model),
	}
	if o.language != "" {
		params.Language = openai.String(o.language)
	}
	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcribe: openai: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
