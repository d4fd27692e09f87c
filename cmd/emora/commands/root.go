package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/emora/voiceauth/cmd/emora/internal/config"
	"github.com/emora/voiceauth/pkg/cli"
)

var (
	// Global flags
	verbose      bool
	contextName  string
	logLevel     string
	logFormat    string
	formatOutput string

	// logger is built from the log flags before any command runs.
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "emora",
	Short: "Emora voice authentication service",
	Long: `emora - voice sign-in for the Emora journal.

Users enroll a short recording of their passphrase; later recordings are
compared against the stored voice profile. A password channel is available
alongside.

Configuration is stored in the OS config directory (override with
$EMORA_CONFIG_DIR):
  macOS:   ~/Library/Application Support/emora/
  Linux:   ~/.config/emora/
  Windows: %AppData%/emora/

Examples:
  emora config add-context dev
  emora config use-context dev
  emora config set transcriber.provider openai
  emora serve --addr :8080

  emora synth alice.wav --voice alice
  emora enroll alice alice.wav
  emora verify alice alice.wav`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cli.ParseFormat(formatOutput); err != nil {
			return err
		}
		l, err := cli.NewLogger(os.Stderr, effectiveLogLevel(), logFormat)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	pf.StringVarP(&contextName, "context", "c", "", "configuration context (default: current context)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	pf.StringVarP(&formatOutput, "format", "o", "yaml", "output format: yaml, json or table")
}

func effectiveLogLevel() string {
	switch {
	case logLevel != "":
		return logLevel
	case verbose:
		return "debug"
	}
	return "warn"
}

// GetConfig loads the CLI configuration root.
func GetConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config not available: %w", err)
	}
	return cfg, nil
}

// outputFormat returns the validated --format value.
func outputFormat() cli.OutputFormat {
	f, _ := cli.ParseFormat(formatOutput)
	return f
}

// output renders v to the command's stdout.
func output(cmd *cobra.Command, v any) error {
	return cli.Output(v, cli.OutputOptions{Format: outputFormat(), Writer: cmd.OutOrStdout()})
}
