package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emora/voiceauth/pkg/audio/pcm"
	"github.com/emora/voiceauth/pkg/audio/synth"
	"github.com/emora/voiceauth/pkg/audio/wav"
)

func clip() *pcm.Buffer {
	return synth.Alice.Speak(time.Second, 16000)
}

func TestStatic(t *testing.T) {
	s := Static("Hello Emora")
	got, err := s.Transcribe(context.Background(), clip())
	if err != nil || got != "Hello Emora" {
		t.Fatalf("Transcribe = %q, %v", got, err)
	}
	if _, err := s.Transcribe(context.Background(), &pcm.Buffer{}); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("empty err = %v", err)
	}
}

func TestFunc(t *testing.T) {
	var f Transcriber = Func(func(_ context.Context, a *pcm.Buffer) (string, error) {
		return a.Duration().String(), nil
	})
	got, _ := f.Transcribe(context.Background(), clip())
	if got != "1s" {
		t.Fatalf("got %q", got)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		cfg     Config
		wantErr bool
	}{
		{Config{}, false},
		{Config{Provider: "none"}, false},
		{Config{Provider: "static", Text: "x"}, false},
		{Config{Provider: "OpenAI", APIKey: "k"}, false},
		{Config{Provider: "openai"}, true},
		{Config{Provider: "gemini"}, true},
		{Config{Provider: "carrier-pigeon"}, true},
	}
	for _, tt := range tests {
		_, err := New(ctx, tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%+v) err = %v, wantErr %v", tt.cfg, err, tt.wantErr)
		}
	}
}

func TestOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			t.Errorf("content type: %v", err)
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		fields := map[string]string{}
		var file []byte
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("multipart: %v", err)
				return
			}
			data, _ := io.ReadAll(part)
			if part.FormName() == "file" {
				file = data
			} else {
				fields[part.FormName()] = string(data)
			}
		}
		if !wav.IsWAV(file) {
			t.Errorf("uploaded file is not WAV (%d bytes)", len(file))
		}
		if fields["model"] != "whisper-1" || fields["language"] != "en" {
			t.Errorf("fields = %v", fields)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": " Hello Emora. "})
	}))
	defer srv.Close()

	tr := NewOpenAI("test-key", WithBaseURL(srv.URL+"/v1/"), WithLanguage("en"))
	if tr.Model() != "whisper-1" {
		t.Errorf("Model = %q", tr.Model())
	}
	got, err := tr.Transcribe(context.Background(), clip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "Hello Emora." {
		t.Fatalf("got %q", got)
	}
}

func TestOpenAIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", WithBaseURL(srv.URL+"/v1/")).Transcribe(context.Background(), clip())
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := NewOpenAI("k").Transcribe(context.Background(), nil); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("nil audio err = %v", err)
	}
}

func TestGemini(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-test:generateContent") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Contents []struct {
				Parts []struct {
					Text       string `json:"text"`
					InlineData *struct {
						MIMEType string `json:"mimeType"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Contents) != 1 || len(body.Contents[0].Parts) != 2 {
			t.Errorf("unexpected request shape: %+v", body)
			return
		}
		if p := body.Contents[0].Parts[1]; p.InlineData == nil || p.InlineData.MIMEType != "audio/wav" {
			t.Errorf("audio part = %+v", p)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"Emora\n"}]}}]}`)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), "k", WithBaseURL(srv.URL), WithModel("gemini-test"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := g.Transcribe(context.Background(), clip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "Hello Emora" {
		t.Fatalf("got %q", got)
	}
}
