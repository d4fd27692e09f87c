package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/emora/voiceauth/pkg/accounts"
	"github.com/emora/voiceauth/pkg/audio/decode"
	"github.com/emora/voiceauth/pkg/encoding"
	"github.com/emora/voiceauth/pkg/voiceauth"
)

// errTooManyAttempts is returned while a client is throttled.
var errTooManyAttempts = errors.New("too many failed attempts, try again later")

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps an error to its HTTP status and machine-readable code.
// The order matters: decoder size errors are also ErrDecode.
func classify(err error) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), errors.Is(err, decode.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, errTooManyAttempts):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, voiceauth.ErrInvalidRequest),
		errors.Is(err, accounts.ErrInvalidInput),
		errors.Is(err, encoding.ErrInvalidDataURL):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, voiceauth.ErrDecode):
		return http.StatusBadRequest, "decode_error"
	case errors.Is(err, voiceauth.ErrInsufficientAudio):
		return http.StatusBadRequest, "insufficient_audio"
	case errors.Is(err, voiceauth.ErrProfileNotFound):
		return http.StatusNotFound, "profile_not_found"
	case errors.Is(err, accounts.ErrInvalidCredentials), errors.Is(err, accounts.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, accounts.ErrAccountExists):
		return http.StatusConflict, "account_exists"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, voiceauth.ErrSchemaMismatch):
		return http.StatusInternalServerError, "schema_mismatch"
	case errors.Is(err, voiceauth.ErrStorage), errors.Is(err, accounts.ErrStorage):
		return http.StatusInternalServerError, "storage_error"
	case errors.Is(err, voiceauth.ErrTranscription):
		return http.StatusInternalServerError, "transcription_error"
	case errors.Is(err, voiceauth.ErrDecoderUnavailable):
		return http.StatusInternalServerError, "decoder_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

// writeError responds with err. Server faults are logged and their details
// withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= 500 {
		s.logger(r.Context()).Error("request failed", "code", code, "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write json response", "error", err)
	}
}

// readJSON decodes a size-limited JSON body into v.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return fmt.Errorf("%w: %w", voiceauth.ErrInvalidRequest, err)
	}
	return nil
}
