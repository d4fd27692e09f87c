// Package voiceauth sequences voice enrollment and verification.
//
// A Service decodes an uploaded recording, extracts its feature vector,
// transcribes it and then either persists a new profile (Enroll) or compares
// the vector against the stored one (Verify).
//
//	svc, _ := voiceauth.New(voiceauth.Config{
//	    Decoder:     decode.New(decode.Config{}),
//	    Transcriber: transcribe.Static("Hello Emora"),
//	    Profiles:    voiceprint.NewKVProfileStore(store),
//	})
//	res, err := svc.Verify(ctx, voiceauth.VerifyRequest{UserID: "alice", Audio: wav})
package voiceauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/emora/voiceauth/pkg/audio/pcm"
	"github.com/emora/voiceauth/pkg/voiceprint"
)

// Errors returned by Service. The voiceprint errors are re-exported so that
// callers only need this package.
var (
	ErrDecode            = voiceprint.ErrDecode
	ErrInsufficientAudio = voiceprint.ErrInsufficientAudio
	ErrProfileNotFound   = voiceprint.ErrProfileNotFound
	ErrSchemaMismatch    = voiceprint.ErrSchemaMismatch
	ErrStorage           = voiceprint.ErrStorage

	ErrInvalidRequest = errors.New("voiceauth: invalid request")
	ErrTranscription  = errors.New("voiceauth: transcription failed")
	// ErrDecoderUnavailable means the server cannot decode a container it
	// accepts, such as when ffmpeg is not installed.
	ErrDecoderUnavailable = errors.New("voiceauth: decoder unavailable")
)

// Decoder turns an encoded upload into mono PCM.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*pcm.Buffer, error)
}

// Extractor computes the feature vector of a clip.
type Extractor interface {
	ExtractBuffer(buf *pcm.Buffer) (voiceprint.FeatureVector, error)
}

// Stage names a step of the enroll or verify flow.
type Stage string

const (
	StageDecoding      Stage = "decoding"
	StageExtracting    Stage = "extracting"
	StageTranscribing  Stage = "transcribing"
	StagePersisting    Stage = "persisting"
	StageProfileLookup Stage = "profile_lookup"
	StageComparing     Stage = "comparing"
)

// StageError records the stage a flow failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("voiceauth: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage err was raised in, or "" when err did not
// come from a Service flow.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
