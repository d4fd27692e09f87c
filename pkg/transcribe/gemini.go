package transcribe

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/emora/voiceauth/pkg/audio/pcm"
	"github.com/emora/voiceauth/pkg/audio/wav"
)

const geminiDefaultModel = "gemini-2.0-flash"

const geminiPrompt = "Transcribe the speech in this audio clip verbatim. " +
	"Reply with the transcript only, without quotes or commentary. " +
	"Reply with an empty message if nothing is said."

// Gemini implements [Transcriber] by prompting a Gemini model with the
// audio as inline data.
type Gemini struct {
	client   *genai.Client
	model    string
	language string
}

var _ Transcriber = (*Gemini)(nil)

// NewGemini creates a Gemini transcriber.
func NewGemini(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	cfg := config{model: geminiDefaultModel}
	for _, o := range opts {
		o(&cfg)
	}
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("transcribe: genai client: %w", err)
	}
	return &Gemini{client: client, model: cfg.model, language: cfg.language}, nil
}

// Model returns the model identifier.
func (g *Gemini) Model() string {
	return g.model
}

func (g *Gemini) Transcribe(ctx context.Context, audio *pcm.Buffer) (string, error) {
	if audio == nil || audio.Len() == 0 {
		return "", ErrEmptyAudio
	}
	prompt := geminiPrompt
	if g.language != "" {
		prompt += " The speaker uses language code " + g.language + "."
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				genai.NewPartFromText(prompt),
				genai.NewPartFromBytes(wav.Encode(audio), "audio/wav"),
			},
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("transcribe: gemini: %w", err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
