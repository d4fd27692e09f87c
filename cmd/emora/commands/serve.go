package commands

import (
	"cmp"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emora/voiceauth/cmd/emora/internal/config"
	"github.com/emora/voiceauth/pkg/accounts"
	"github.com/emora/voiceauth/pkg/cli"
	"github.com/emora/voiceauth/pkg/server"
)

var (
	serveAddr    string
	serveDataDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the voice and password sign-in API.

Settings come from server.yaml of the selected context. --addr and
--data-dir override it. The process stops gracefully on SIGINT or SIGTERM.

Examples:
  emora serve
  emora serve --addr 127.0.0.1:9000 --data-dir /var/lib/emora`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			s.Addr = serveAddr
		}
		if cmd.Flags().Changed("data-dir") {
			s.DataDir = serveDataDir
		}
		if err := applyServerLogging(cmd, s); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := openRuntime(ctx, s)
		if err != nil {
			return err
		}
		defer rt.Close()

		srv, err := server.New(server.Config{
			Voice:    rt.voice,
			Accounts: rt.accounts,
			Tokens:   rt.tokens,
			Limiter:  accounts.NewAttemptLimiter(0, 0),
			Logger:   logger.With("component", "http"),
		})
		if err != nil {
			return err
		}
		logger.Info("starting emora",
			"addr", s.Addr,
			"data_dir", s.DataDir,
			"threshold", rt.voice.Threshold(),
			"transcriber", s.Transcriber.Provider,
			"archive", s.Archive.Kind,
		)
		return srv.ListenAndServe(ctx, s.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.yaml, else :8080)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "data directory (default from server.yaml)")
	rootCmd.AddCommand(serveCmd)
}

// applyServerLogging lets server.yaml choose the log level and format that
// no flag set explicitly. A server logs at info by default.
func applyServerLogging(cmd *cobra.Command, s *config.Server) error {
	level := effectiveLogLevel()
	if logLevel == "" && !verbose {
		level = cmp.Or(s.LogLevel, "info")
	}
	format := logFormat
	if !cmd.Flags().Changed("log-format") && s.LogFormat != "" {
		format = s.LogFormat
	}
	l, err := cli.NewLogger(os.Stderr, level, format)
	if err != nil {
		return err
	}
	logger = l
	slog.SetDefault(l)
	return nil
}
