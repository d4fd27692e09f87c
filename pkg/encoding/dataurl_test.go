package encoding

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantMIME string
		want     string
		wantErr  bool
	}{
		{
			name:     "webm with codecs",
			input:    "data:audio/webm;codecs=opus;base64,aGVsbG8gd29ybGQ=",
			wantMIME: "audio/webm",
			want:     "hello world",
		},
		{
			name:     "wav",
			input:    "data:audio/wav;base64,aGk=",
			wantMIME: "audio/wav",
			want:     "hi",
		},
		{
			name:  "bare base64",
			input: "aGVsbG8gd29ybGQ=",
			want:  "hello world",
		},
		{
			name:  "unpadded",
			input: "aGVsbG8gd29ybGQ",
			want:  "hello world",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:    "not base64 encoded",
			input:   "data:text/plain,hello",
			wantErr: true,
		},
		{
			name:    "missing comma",
			input:   "data:audio/wav;base64",
			wantErr: true,
		},
		{
			name:    "bad payload",
			input:   "data:audio/wav;base64,@@@",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDataURL(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidDataURL) {
					t.Fatalf("err = %v, want ErrInvalidDataURL", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDataURL error: %v", err)
			}
			if got.MIMEType != tc.wantMIME {
				t.Errorf("MIMEType = %q; want %q", got.MIMEType, tc.wantMIME)
			}
			if string(got.Data) != tc.want {
				t.Errorf("Data = %q; want %q", got.Data, tc.want)
			}
		})
	}
}

func TestDataURL_JSON(t *testing.T) {
	var req struct {
		Audio DataURL `json:"audio"`
	}
	if err := json.Unmarshal([]byte(`{"audio":"data:audio/ogg;base64,T2dnUw=="}`), &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if req.Audio.MIMEType != "audio/ogg" || string(req.Audio.Data) != "OggS" {
		t.Fatalf("Audio = %+v", req.Audio)
	}

	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if want := `{"audio":"data:audio/ogg;base64,T2dnUw=="}`; string(b) != want {
		t.Errorf("Marshal = %s; want %s", b, want)
	}

	if err := json.Unmarshal([]byte(`{"audio":42}`), &req); err == nil {
		t.Error("expected error for number")
	}
}

func TestDataURL_StringBare(t *testing.T) {
	if got := (DataURL{Data: []byte("hi")}).String(); got != "aGk=" {
		t.Errorf("String = %q", got)
	}
}
