package voiceauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/emora/voiceauth/pkg/audio/decode"
	"github.com/emora/voiceauth/pkg/audio/pcm"
	"github.com/emora/voiceauth/pkg/storage"
	"github.com/emora/voiceauth/pkg/transcribe"
	"github.com/emora/voiceauth/pkg/voiceprint"
)

// Config configures a Service. Decoder, Transcriber and Profiles are
// required.
type Config struct {
	Decoder     Decoder
	Transcriber transcribe.Transcriber
	Profiles    voiceprint.ProfileStore

	// Extractor defaults to voiceprint.NewExtractor().
	Extractor Extractor

	// Threshold is the acceptance confidence. Values outside (0, 1] mean
	// voiceprint.DefaultThreshold.
	Threshold float64

	// DefaultPassphrase is stored when an enrollment names none.
	DefaultPassphrase string

	// RequirePassphrase makes Verify also demand that the transcription
	// contains the enrolled passphrase.
	RequirePassphrase bool

	// Archive, when set, receives the raw enrollment recording.
	Archive storage.FileStore

	Logger *slog.Logger
	Now    func() time.Time
}

// Service runs enrollment and verification. It is safe for concurrent use.
type Service struct {
	decoder     Decoder
	extractor   Extractor
	transcriber transcribe.Transcriber
	profiles    voiceprint.ProfileStore
	engine      *voiceprint.Engine
	archive     storage.FileStore

	// users serializes profile replacement and archive writes per user id.
	users voiceprint.KeyLocks

	passphrase        string
	requirePassphrase bool

	log *slog.Logger
	now func() time.Time
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Decoder == nil:
		return nil, errors.New("voiceauth: decoder is required")
	case cfg.Transcriber == nil:
		return nil, errors.New("voiceauth: transcriber is required")
	case cfg.Profiles == nil:
		return nil, errors.New("voiceauth: profile store is required")
	}
	s := &Service{
		decoder:           cfg.Decoder,
		extractor:         cfg.Extractor,
		transcriber:       cfg.Transcriber,
		profiles:          cfg.Profiles,
		engine:            voiceprint.NewEngine(cfg.Threshold),
		archive:           cfg.Archive,
		passphrase:        strings.TrimSpace(cfg.DefaultPassphrase),
		requirePassphrase: cfg.RequirePassphrase,
		log:               cfg.Logger,
		now:               cfg.Now,
	}
	if s.extractor == nil {
		s.extractor = voiceprint.NewExtractor()
	}
	if s.passphrase == "" {
		s.passphrase = voiceprint.DefaultPassphrase
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Threshold returns the acceptance threshold in use.
func (s *Service) Threshold() float64 {
	return s.engine.Threshold
}

// EnrollRequest is the input of Enroll.
type EnrollRequest struct {
	UserID string
	// Audio is the encoded recording (WAV, WebM, Ogg, MP3 or MP4).
	Audio []byte
	// Passphrase defaults to the service's default passphrase.
	Passphrase string
}

// EnrollResult is returned by a successful Enroll.
type EnrollResult struct {
	Transcription   string
	Passphrase      string
	PassphraseMatch bool
	Profile         *voiceprint.Profile
}

// Enroll creates or replaces the voice profile of req.UserID. Nothing is
// persisted unless every stage succeeds.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	userID, err := checkUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	passphrase := strings.TrimSpace(req.Passphrase)
	if passphrase == "" {
		passphrase = s.passphrase
	}
	log := s.log.With("op", "enroll", "user_id", userID)

	buf, vec, text, err := s.analyze(ctx, req.Audio)
	if err != nil {
		s.logFailure(log, err)
		return nil, err
	}

	unlock := s.users.Lock(userID)
	defer unlock()

	// The recording is staged under a temporary name and only becomes the
	// archived enrollment once the profile is saved.
	var staged string
	if s.archive != nil {
		staged, err = s.stageRecording(ctx, userID, req.Audio)
		if err != nil {
			err = &StageError{Stage: StagePersisting, Err: err}
			s.logFailure(log, err)
			return nil, err
		}
	}

	p := voiceprint.NewProfile(userID, vec, passphrase, s.now().UTC())
	if err := s.profiles.Save(ctx, p); err != nil {
		if staged != "" {
			if derr := s.archive.Delete(ctx, staged); derr != nil {
				log.Warn("discard staged recording", "path", staged, "error", derr)
			}
		}
		err = &StageError{Stage: StagePersisting, Err: err}
		s.logFailure(log, err)
		return nil, err
	}
	if staged != "" {
		s.promoteRecording(ctx, log, userID, staged, req.Audio)
	}

	match := PassphraseMatches(text, passphrase)
	log.Info("voice enrolled",
		"duration", buf.Duration(),
		"peak", buf.Peak(),
		"passphrase_match", match,
	)
	return &EnrollResult{
		Transcription:   text,
		Passphrase:      passphrase,
		PassphraseMatch: match,
		Profile:         p,
	}, nil
}

// VerifyRequest is the input of Verify.
type VerifyRequest struct {
	UserID string
	Audio  []byte
}

// VerifyResult is the outcome of a completed verification. A rejected voice
// is a result, not an error.
type VerifyResult struct {
	Authenticated   bool
	Confidence      float64
	Threshold       float64
	Transcription   string
	PassphraseMatch bool
}

// Message is the human-readable outcome.
func (r *VerifyResult) Message() string {
	if r.Authenticated {
		return "Voice verified"
	}
	return "Voice not recognized"
}

// Verify compares a recording against the enrolled profile of req.UserID.
// It never modifies stored state.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	userID, err := checkUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	log := s.log.With("op", "verify", "user_id", userID)

	_, vec, text, err := s.analyze(ctx, req.Audio)
	if err != nil {
		s.logFailure(log, err)
		return nil, err
	}

	p, err := s.profiles.Load(ctx, userID)
	if err != nil {
		err = &StageError{Stage: StageProfileLookup, Err: err}
		s.logFailure(log, err)
		return nil, err
	}

	accepted, confidence, err := s.engine.Verify(p.Vector, vec)
	if err != nil {
		err = &StageError{Stage: StageComparing, Err: err}
		s.logFailure(log, err)
		return nil, err
	}

	res := &VerifyResult{
		Authenticated:   accepted,
		Confidence:      confidence,
		Threshold:       s.engine.Threshold,
		Transcription:   text,
		PassphraseMatch: PassphraseMatches(text, p.Passphrase),
	}
	if s.requirePassphrase && !res.PassphraseMatch {
		res.Authenticated = false
	}
	log.Info("voice verified",
		"authenticated", res.Authenticated,
		"confidence", confidence,
		"threshold", res.Threshold,
		"passphrase_match", res.PassphraseMatch,
	)
	return res, nil
}

// Refine blends a new recording into an existing profile by averaging the
// feature vectors. Without an existing profile it behaves like Enroll with
// the default passphrase.
func (s *Service) Refine(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	userID, err := checkUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	log := s.log.With("op", "refine", "user_id", userID)

	_, vec, text, err := s.analyze(ctx, req.Audio)
	if err != nil {
		s.logFailure(log, err)
		return nil, err
	}

	now := s.now().UTC()
	var saved *voiceprint.Profile
	err = s.profiles.Update(ctx, userID, func(old *voiceprint.Profile) (*voiceprint.Profile, error) {
		if old == nil {
			passphrase := strings.TrimSpace(req.Passphrase)
			if passphrase == "" {
				passphrase = s.passphrase
			}
			saved = voiceprint.NewProfile(userID, vec, passphrase, now)
			return saved, nil
		}
		blended, err := voiceprint.Mean(old.Vector, vec)
		if err != nil {
			return nil, err
		}
		saved = &voiceprint.Profile{
			UserID:        old.UserID,
			Vector:        blended,
			Passphrase:    old.Passphrase,
			SchemaVersion: voiceprint.SchemaVersion,
			CreatedAt:     old.CreatedAt,
			UpdatedAt:     now,
		}
		return saved, nil
	})
	if err != nil {
		err = &StageError{Stage: StagePersisting, Err: err}
		s.logFailure(log, err)
		return nil, err
	}

	match := PassphraseMatches(text, saved.Passphrase)
	log.Info("voice profile refined", "passphrase_match", match)
	return &EnrollResult{
		Transcription:   text,
		Passphrase:      saved.Passphrase,
		PassphraseMatch: match,
		Profile:         saved,
	}, nil
}

// DeleteProfile removes the profile of userID and reports whether one
// existed. The archived recording is removed as well.
func (s *Service) DeleteProfile(ctx context.Context, userID string) (bool, error) {
	userID, err := checkUserID(userID)
	if err != nil {
		return false, err
	}
	unlock := s.users.Lock(userID)
	defer unlock()

	existed, err := s.profiles.Delete(ctx, userID)
	if err != nil {
		s.log.Error("delete voice profile", "user_id", userID, "error", err)
		return false, err
	}
	if s.archive != nil {
		if err := s.deleteArchive(ctx, userID); err != nil {
			s.log.Warn("delete enrollment archive", "user_id", userID, "error", err)
		}
	}
	if existed {
		s.log.Info("voice profile deleted", "user_id", userID)
	}
	return existed, nil
}

// ProfileExists reports whether userID is enrolled.
func (s *Service) ProfileExists(ctx context.Context, userID string) (bool, error) {
	userID, err := checkUserID(userID)
	if err != nil {
		return false, err
	}
	return s.profiles.Exists(ctx, userID)
}

// ProfileInfo describes an enrolled profile without exposing its vector.
type ProfileInfo struct {
	UserID        string    `json:"user_id" yaml:"user_id"`
	Passphrase    string    `json:"passphrase" yaml:"passphrase"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
	FeatureCount  int       `json:"feature_count" yaml:"feature_count"`
	SchemaVersion int       `json:"schema_version" yaml:"schema_version"`
	Threshold     float64   `json:"threshold" yaml:"threshold"`
	Archived      bool      `json:"archived" yaml:"archived"`
}

// ProfileInfo returns the profile summary of userID.
func (s *Service) ProfileInfo(ctx context.Context, userID string) (*ProfileInfo, error) {
	userID, err := checkUserID(userID)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	info := s.describe(p)
	if s.archive != nil {
		paths, err := s.archive.List(ctx, archiveDir(userID))
		if err != nil {
			s.log.Warn("list enrollment archive", "user_id", userID, "error", err)
		}
		info.Archived = len(paths) > 0
	}
	return info, nil
}

// ListProfiles summarizes every stored profile.
func (s *Service) ListProfiles(ctx context.Context) ([]*ProfileInfo, error) {
	ps, err := s.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*ProfileInfo, len(ps))
	for i, p := range ps {
		out[i] = s.describe(p)
	}
	return out, nil
}

func (s *Service) describe(p *voiceprint.Profile) *ProfileInfo {
	return &ProfileInfo{
		UserID:        p.UserID,
		Passphrase:    p.Passphrase,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		FeatureCount:  len(p.Vector),
		SchemaVersion: p.SchemaVersion,
		Threshold:     s.engine.Threshold,
	}
}

// analyze runs the decode, extract and transcribe stages.
func (s *Service) analyze(ctx context.Context, audio []byte) (*pcm.Buffer, voiceprint.FeatureVector, string, error) {
	buf, err := s.decoder.Decode(ctx, audio)
	if err != nil {
		return nil, nil, "", &StageError{Stage: StageDecoding, Err: decodeError(err)}
	}

	vec, err := s.extractor.ExtractBuffer(buf)
	if err != nil {
		return nil, nil, "", &StageError{Stage: StageExtracting, Err: err}
	}

	text, err := s.transcriber.Transcribe(ctx, buf)
	if err != nil {
		if ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", ErrTranscription, err)
		}
		return nil, nil, "", &StageError{Stage: StageTranscribing, Err: err}
	}
	return buf, vec, strings.TrimSpace(text), nil
}

func (s *Service) logFailure(log *slog.Logger, err error) {
	stage := FailedStage(err)
	switch {
	case errors.Is(err, ErrSchemaMismatch), errors.Is(err, ErrStorage), errors.Is(err, ErrTranscription),
		errors.Is(err, ErrDecoderUnavailable):
		log.Error("voice auth failed", "stage", stage, "error", err)
	case errors.Is(err, ErrProfileNotFound):
		log.Info("voice profile not found", "stage", stage)
	default:
		log.Warn("voice auth rejected input", "stage", stage, "error", err)
	}
}

// checkUserID returns the trimmed user id every operation keys on.
func checkUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	return userID, nil
}

// decodeError classifies decoder failures as ErrDecode unless they already
// carry a voiceprint error, come from cancellation or are server faults.
func decodeError(err error) error {
	switch {
	case errors.Is(err, ErrDecode), errors.Is(err, ErrInsufficientAudio):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, decode.ErrFFmpegMissing):
		return fmt.Errorf("%w: %w", ErrDecoderUnavailable, err)
	}
	return fmt.Errorf("%w: %w", ErrDecode, err)
}

const pendingPrefix = "pending-"

func archiveDir(userID string) string {
	return "enrollments/" + storageSegment(userID)
}

// stageRecording stores audio under a unique pending name in the user's
// archive directory and returns its path.
func (s *Service) stageRecording(ctx context.Context, userID string, audio []byte) (string, error) {
	c := decode.Sniff(audio)
	staged := archiveDir(userID) + "/" + pendingPrefix + uuid.NewString() + c.Ext()
	if err := s.archive.Put(ctx, staged, audio, c.MIMEType()); err != nil {
		return "", fmt.Errorf("%w: archive recording: %v", ErrStorage, err)
	}
	return staged, nil
}

// promoteRecording makes the staged recording the user's latest enrollment
// and drops everything else in the directory. The profile is already saved,
// so failures are only logged.
func (s *Service) promoteRecording(ctx context.Context, log *slog.Logger, userID, staged string, audio []byte) {
	c := decode.Sniff(audio)
	latest := archiveDir(userID) + "/latest" + c.Ext()
	if err := s.archive.Put(ctx, latest, audio, c.MIMEType()); err != nil {
		log.Warn("promote staged recording", "path", staged, "error", err)
		return
	}
	paths, err := s.archive.List(ctx, archiveDir(userID))
	if err != nil {
		log.Warn("list enrollment archive", "error", err)
		return
	}
	for _, p := range paths {
		if p == latest {
			continue
		}
		if err := s.archive.Delete(ctx, p); err != nil {
			log.Warn("delete stale enrollment archive", "path", p, "error", err)
		}
	}
}

func (s *Service) deleteArchive(ctx context.Context, userID string) error {
	paths, err := s.archive.List(ctx, archiveDir(userID))
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := s.archive.Delete(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// storageSegment maps a user id to a single path segment. Bytes outside a
// conservative set are percent-encoded, so distinct ids stay distinct.
func storageSegment(userID string) string {
	var b strings.Builder
	for i := 0; i < len(userID); i++ {
		c := userID[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '@':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// PassphraseMatches reports whether transcription contains passphrase,
// ignoring case, punctuation and spacing.
func PassphraseMatches(transcription, passphrase string) bool {
	want := normalizePhrase(passphrase)
	if want == "" {
		return true
	}
	got := normalizePhrase(transcription)
	return got == want || strings.Contains(" "+got+" ", " "+want+" ")
}

func normalizePhrase(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, "'", "")
	}
	return strings.Join(fields, " ")
}
