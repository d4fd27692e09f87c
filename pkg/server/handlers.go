package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/emora/voiceauth/pkg/accounts"
	"github.com/emora/voiceauth/pkg/encoding"
	"github.com/emora/voiceauth/pkg/voiceauth"
)

type enrollRequest struct {
	UserID     string           `json:"user_id"`
	Audio      encoding.DataURL `json:"audio"`
	Passphrase string           `json:"passphrase,omitempty"`
	Name       string           `json:"name,omitempty"`
	Password   string           `json:"password,omitempty"`
}

type enrollResponse struct {
	UserID          string `json:"user_id"`
	Transcription   string `json:"transcription"`
	Passphrase      string `json:"passphrase"`
	PassphraseMatch bool   `json:"passphrase_match"`
	AccountCreated  bool   `json:"account_created,omitempty"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID := strings.TrimSpace(req.UserID)

	wantAccount := req.Password != ""
	if wantAccount {
		if s.accounts == nil {
			s.writeError(w, r, fmt.Errorf("%w: password accounts are disabled", voiceauth.ErrInvalidRequest))
			return
		}
		// Reject bad credentials before the voice profile is replaced.
		if err := accounts.ValidateCredentials(userID, req.Password); err != nil {
			s.writeError(w, r, err)
			return
		}
		if exists, err := s.accounts.Exists(r.Context(), userID); err != nil {
			s.writeError(w, r, err)
			return
		} else if exists {
			s.writeError(w, r, fmt.Errorf("%w: %q", accounts.ErrAccountExists, userID))
			return
		}
	}

	res, err := s.voice.Enroll(r.Context(), voiceauth.EnrollRequest{
		UserID:     userID,
		Audio:      req.Audio.Data,
		Passphrase: req.Passphrase,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := enrollResponse{
		UserID:          userID,
		Transcription:   res.Transcription,
		Passphrase:      res.Passphrase,
		PassphraseMatch: res.PassphraseMatch,
	}
	if wantAccount {
		if _, err := s.accounts.Register(r.Context(), userID, req.Name, req.Password); err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.AccountCreated = true
	}
	writeJSON(w, http.StatusOK, resp)
}

type verifyRequest struct {
	UserID string           `json:"user_id"`
	Audio  encoding.DataURL `json:"audio"`
}

type verifyResponse struct {
	Authenticated   bool    `json:"authenticated"`
	Confidence      float64 `json:"confidence"`
	Threshold       float64 `json:"threshold"`
	Transcription   string  `json:"transcription"`
	PassphraseMatch bool    `json:"passphrase_match"`
	Message         string  `json:"message"`
	Token           string  `json:"token,omitempty"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	key := attemptKey("voice", r, userID)
	if s.limiter.Blocked(key, s.now()) {
		s.writeError(w, r, errTooManyAttempts)
		return
	}

	res, err := s.voice.Verify(r.Context(), voiceauth.VerifyRequest{UserID: userID, Audio: req.Audio.Data})
	if err != nil {
		if errors.Is(err, voiceauth.ErrProfileNotFound) {
			s.limiter.Fail(key, s.now())
		}
		s.writeError(w, r, err)
		return
	}

	resp := verifyResponse{
		Authenticated:   res.Authenticated,
		Confidence:      res.Confidence,
		Threshold:       res.Threshold,
		Transcription:   res.Transcription,
		PassphraseMatch: res.PassphraseMatch,
		Message:         res.Message(),
	}
	if !res.Authenticated {
		s.limiter.Fail(key, s.now())
		writeJSON(w, http.StatusOK, resp)
		return
	}
	s.limiter.Reset(key)
	if resp.Token, err = s.issue(userID, accounts.MethodVoice); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProfileInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.voice.ProfileInfo(r.Context(), r.PathValue("user_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.voice.DeleteProfile(r.Context(), r.PathValue("user_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

type refineRequest struct {
	Audio encoding.DataURL `json:"audio"`
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.voice.Refine(r.Context(), voiceauth.EnrollRequest{UserID: r.PathValue("user_id"), Audio: req.Audio.Data})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollResponse{
		UserID:          res.Profile.UserID,
		Transcription:   res.Transcription,
		Passphrase:      res.Passphrase,
		PassphraseMatch: res.PassphraseMatch,
	})
}

type credentials struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.accounts == nil {
		http.NotFound(w, r)
		return
	}
	var req credentials
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.accounts.Register(r.Context(), req.UserID, req.Name, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger(r.Context()).Info("account registered", "user_id", a.UserID)
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": a.UserID})
}

type loginResponse struct {
	Authenticated bool   `json:"authenticated"`
	Message       string `json:"message"`
	Token         string `json:"token,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.accounts == nil {
		http.NotFound(w, r)
		return
	}
	var req credentials
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	key := attemptKey("pwd", r, userID)
	if s.limiter.Blocked(key, s.now()) {
		s.writeError(w, r, errTooManyAttempts)
		return
	}

	a, err := s.accounts.Authenticate(r.Context(), userID, req.Password)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		s.limiter.Fail(key, s.now())
		s.logger(r.Context()).Info("password login rejected", "user_id", userID)
		writeJSON(w, http.StatusUnauthorized, loginResponse{Message: "Invalid user id or password"})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.limiter.Reset(key)

	token, err := s.issue(a.UserID, accounts.MethodPassword)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger(r.Context()).Info("password login", "user_id", a.UserID)
	writeJSON(w, http.StatusOK, loginResponse{Authenticated: true, Message: "Login successful", Token: token})
}

type sessionResponse struct {
	UserID    string    `json:"user_id"`
	Methods   []string  `json:"methods"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		http.NotFound(w, r)
		return
	}
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		s.writeError(w, r, accounts.ErrInvalidToken)
		return
	}
	claims, err := s.tokens.Parse(strings.TrimSpace(raw))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := sessionResponse{UserID: claims.Subject, Methods: claims.AMR}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// issue returns a session token, or "" when tokens are disabled.
func (s *Server) issue(userID, method string) (string, error) {
	if s.tokens == nil {
		return "", nil
	}
	return s.tokens.Issue(userID, method)
}

func attemptKey(channel string, r *http.Request, userID string) string {
	return channel + "|" + clientIP(r) + "|" + userID
}
