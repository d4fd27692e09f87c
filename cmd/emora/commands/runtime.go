package commands

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/emora/voiceauth/cmd/emora/internal/config"
	"github.com/emora/voiceauth/pkg/accounts"
	"github.com/emora/voiceauth/pkg/audio/decode"
	"github.com/emora/voiceauth/pkg/kv"
	"github.com/emora/voiceauth/pkg/storage"
	"github.com/emora/voiceauth/pkg/transcribe"
	"github.com/emora/voiceauth/pkg/voiceauth"
	"github.com/emora/voiceauth/pkg/voiceprint"
)

// testKVOverride replaces the Badger store in tests.
var testKVOverride kv.Store

// runtime is the wired service graph shared by serve and the local
// commands.
type runtime struct {
	settings *config.Server
	store    kv.Store
	voice    *voiceauth.Service
	accounts *accounts.Store
	tokens   *accounts.Tokens
}

// Close releases the key-value store.
func (r *runtime) Close() error {
	if r.store == nil || r.store == testKVOverride {
		return nil
	}
	return r.store.Close()
}

// loadSettings reads server.yaml of the selected context. Without any
// context the working directory stands in for one.
func loadSettings() (*config.Server, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	dir, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName != "" || cfg.CurrentContext != "" {
			return nil, err
		}
		if dir, err = os.Getwd(); err != nil {
			return nil, err
		}
		logger.Debug("no context selected, using working directory", "dir", dir)
	}
	return config.LoadServer(dir)
}

// openRuntime opens storage and builds the services described by s.
func openRuntime(ctx context.Context, s *config.Server) (*runtime, error) {
	rt := &runtime{settings: s}
	if testKVOverride != nil {
		rt.store = testKVOverride
	} else {
		store, err := kv.NewBadger(kv.BadgerOptions{
			Dir:    filepath.Join(s.DataDir, "kv"),
			Logger: logger.With("component", "badger"),
		})
		if err != nil {
			return nil, fmt.Errorf("open data dir %s: %w", s.DataDir, err)
		}
		rt.store = store
	}

	if err := rt.build(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) build(ctx context.Context) error {
	s := rt.settings
	tr, err := transcribe.New(ctx, s.Transcriber)
	if err != nil {
		return err
	}
	archive, err := openArchive(ctx, s.Archive)
	if err != nil {
		return err
	}

	rt.voice, err = voiceauth.New(voiceauth.Config{
		Decoder:           decode.New(decode.Config{FFmpegPath: s.FFmpegPath}),
		Transcriber:       tr,
		Profiles:          voiceprint.NewKVProfileStore(rt.store),
		Threshold:         s.Threshold,
		DefaultPassphrase: s.DefaultPassphrase,
		RequirePassphrase: s.RequirePassphrase,
		Archive:           archive,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	rt.accounts = accounts.NewStore(rt.store, nil)

	secret := []byte(s.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate token secret: %w", err)
		}
		logger.Warn("jwt_secret not configured; session tokens will not survive a restart")
	}
	ttl, err := s.TTL()
	if err != nil {
		return err
	}
	rt.tokens, err = accounts.NewTokens(secret, ttl)
	return err
}

// openArchive returns the enrollment archive, or nil when archiving is off.
func openArchive(ctx context.Context, a config.Archive) (storage.FileStore, error) {
	switch strings.ToLower(a.Kind) {
	case "":
		return nil, nil
	case "local":
		l, err := storage.NewLocal(a.Dir)
		if err != nil {
			return nil, fmt.Errorf("open archive dir: %w", err)
		}
		return l, nil
	case "s3":
		var opts []func(*awsconfig.LoadOptions) error
		if a.Region != "" {
			opts = append(opts, awsconfig.WithRegion(a.Region))
		}
		if a.AccessKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(a.AccessKey, a.SecretKey, ""),
			))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			if a.Endpoint != "" {
				o.BaseEndpoint = aws.String(a.Endpoint)
				o.UsePathStyle = true
			}
		})
		return storage.NewS3(client, a.Bucket, a.Prefix), nil
	}
	return nil, errors.New("archive.kind must be local or s3")
}

// withRuntime loads settings, opens the runtime, runs fn and closes it.
func withRuntime(ctx context.Context, fn func(*runtime) error) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	rt, err := openRuntime(ctx, s)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}
