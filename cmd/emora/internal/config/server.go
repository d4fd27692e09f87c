package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emora/voiceauth/pkg/transcribe"
)

// ServerService is the name of the server config file in a context.
const ServerService = "server"

// Server is the schema of server.yaml.
type Server struct {
	Addr    string `yaml:"addr,omitempty"`
	DataDir string `yaml:"data_dir,omitempty"`

	Threshold         float64 `yaml:"threshold,omitempty"`
	DefaultPassphrase string  `yaml:"default_passphrase,omitempty"`
	RequirePassphrase bool    `yaml:"require_passphrase,omitempty"`
	FFmpegPath        string  `yaml:"ffmpeg_path,omitempty"`

	JWTSecret string `yaml:"jwt_secret,omitempty"`
	TokenTTL  string `yaml:"token_ttl,omitempty"`

	LogLevel  string `yaml:"log_level,omitempty"`
	LogFormat string `yaml:"log_format,omitempty"`

	Transcriber transcribe.Config `yaml:"transcriber,omitempty"`
	Archive     Archive           `yaml:"archive,omitempty"`
}

// Archive configures where enrollment recordings are kept.
type Archive struct {
	// Kind is "", "local" or "s3". Empty disables archiving.
	Kind   string `yaml:"kind,omitempty"`
	Dir    string `yaml:"dir,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`
	// Endpoint points the S3 client at an S3-compatible store (MinIO, R2).
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
}

// Defaults.
const (
	DefaultAddr    = ":8080"
	DefaultDataDir = "data"
)

// LoadServer reads server.yaml from contextDir. A missing file yields the
// defaults. Relative directories are resolved against contextDir.
func LoadServer(contextDir string) (*Server, error) {
	s := &Server{}
	if _, err := os.Stat(filepath.Join(contextDir, ServerService+".yaml")); err == nil {
		loaded, err := LoadService[Server](contextDir, ServerService)
		if err != nil {
			return nil, err
		}
		s = loaded
	}
	s.applyDefaults(contextDir)
	return s, s.Validate()
}

func (s *Server) applyDefaults(contextDir string) {
	if s.Addr == "" {
		s.Addr = DefaultAddr
	}
	if s.DataDir == "" {
		s.DataDir = DefaultDataDir
	}
	if !filepath.IsAbs(s.DataDir) {
		s.DataDir = filepath.Join(contextDir, s.DataDir)
	}
	if s.Archive.Kind == "local" {
		if s.Archive.Dir == "" {
			s.Archive.Dir = filepath.Join(s.DataDir, "archive")
		} else if !filepath.IsAbs(s.Archive.Dir) {
			s.Archive.Dir = filepath.Join(contextDir, s.Archive.Dir)
		}
	}
}

// Validate checks value ranges and required combinations.
func (s *Server) Validate() error {
	var errs []error
	if s.Threshold < 0 || s.Threshold > 1 {
		errs = append(errs, fmt.Errorf("threshold %v must be within [0, 1]", s.Threshold))
	}
	if _, err := s.TTL(); err != nil {
		errs = append(errs, err)
	}
	if s.JWTSecret != "" && len(s.JWTSecret) < 16 {
		errs = append(errs, errors.New("jwt_secret must be at least 16 characters"))
	}
	switch strings.ToLower(s.Archive.Kind) {
	case "", "local":
	case "s3":
		if s.Archive.Bucket == "" {
			errs = append(errs, errors.New("archive.bucket is required for kind s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive.kind %q must be local or s3", s.Archive.Kind))
	}
	return errors.Join(errs...)
}

// TTL parses TokenTTL. Empty means zero, which callers treat as the
// default lifetime.
func (s *Server) TTL() (time.Duration, error) {
	if s.TokenTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.TokenTTL)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("token_ttl %q is not a valid duration", s.TokenTTL)
	}
	return d, nil
}
