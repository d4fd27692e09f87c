package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/emora/voiceauth/pkg/audio/pcm"
	"github.com/emora/voiceauth/pkg/audio/synth"
	"github.com/emora/voiceauth/pkg/audio/wav"
	"github.com/emora/voiceauth/pkg/cli"
)

var (
	synthVoice    string
	synthDuration time.Duration
	synthRate     int
)

var synthCmd = &cobra.Command{
	Use:   "synth <out.wav>",
	Short: "Write a synthetic test recording",
	Long: `Write a synthetic voice recording as 16-bit mono WAV.

The alice and bob voices are stable, distinct speakers: a profile enrolled
from one verifies against a fresh recording of the same voice and rejects
the other. silence produces a recording with no speech.

Examples:
  emora synth alice.wav --voice alice
  emora synth bob.wav --voice bob --duration 3s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if synthDuration <= 0 {
			return fmt.Errorf("duration must be positive")
		}
		if synthRate < 8000 {
			return fmt.Errorf("sample rate %d is below 8000 Hz", synthRate)
		}
		var buf *pcm.Buffer
		switch strings.ToLower(synthVoice) {
		case "alice":
			buf = synth.Alice.Speak(synthDuration, synthRate)
		case "bob":
			buf = synth.Bob.Speak(synthDuration, synthRate)
		case "silence":
			buf = synth.Silence(synthDuration, synthRate)
		default:
			return fmt.Errorf("unknown voice %q (want alice, bob or silence)", synthVoice)
		}
		data := wav.Encode(buf)
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Wrote %s (%s, %s)", args[0], cli.FormatDuration(buf.Duration()), cli.FormatBytes(int64(len(data))))
		return nil
	},
}

func init() {
	synthCmd.Flags().StringVar(&synthVoice, "voice", "alice", "voice: alice, bob or silence")
	synthCmd.Flags().DurationVar(&synthDuration, "duration", 2*time.Second, "recording length")
	synthCmd.Flags().IntVar(&synthRate, "rate", 16000, "sample rate in Hz")
	rootCmd.AddCommand(synthCmd)
}
