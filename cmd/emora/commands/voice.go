package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emora/voiceauth/pkg/cli"
	"github.com/emora/voiceauth/pkg/voiceauth"
)

var enrollPassphrase string

// readAudio reads a recording from path, or from stdin when path is "-".
func readAudio(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return data, nil
}

type enrollOutput struct {
	UserID          string `json:"user_id" yaml:"user_id"`
	Transcription   string `json:"transcription" yaml:"transcription"`
	Passphrase      string `json:"passphrase" yaml:"passphrase"`
	PassphraseMatch bool   `json:"passphrase_match" yaml:"passphrase_match"`
}

func (o enrollOutput) Header() []string {
	return []string{"USER", "PASSPHRASE", "MATCH", "TRANSCRIPTION"}
}

func (o enrollOutput) Rows() [][]string {
	return [][]string{{o.UserID, o.Passphrase, strconv.FormatBool(o.PassphraseMatch), o.Transcription}}
}

var enrollCmd = &cobra.Command{
	Use:   "enroll <user-id> <audio-file>",
	Short: "Enroll a voice from an audio file",
	Long: `Create or replace the voice profile of a user.

The recording may be WAV, WebM, Ogg, MP3 or MP4; formats other than WAV need
ffmpeg. Use "-" to read the recording from stdin.

Examples:
  emora enroll alice alice.wav
  emora enroll alice alice.webm --passphrase "open my journal"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := strings.TrimSpace(args[0])
		audio, err := readAudio(cmd, args[1])
		if err != nil {
			return err
		}
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			res, err := rt.voice.Enroll(cmd.Context(), voiceauth.EnrollRequest{
				UserID:     userID,
				Audio:      audio,
				Passphrase: enrollPassphrase,
			})
			if err != nil {
				return err
			}
			return output(cmd, enrollOutput{
				UserID:          userID,
				Transcription:   res.Transcription,
				Passphrase:      res.Passphrase,
				PassphraseMatch: res.PassphraseMatch,
			})
		})
	},
}

type verifyOutput struct {
	UserID          string  `json:"user_id" yaml:"user_id"`
	Authenticated   bool    `json:"authenticated" yaml:"authenticated"`
	Confidence      float64 `json:"confidence" yaml:"confidence"`
	Threshold       float64 `json:"threshold" yaml:"threshold"`
	Transcription   string  `json:"transcription" yaml:"transcription"`
	PassphraseMatch bool    `json:"passphrase_match" yaml:"passphrase_match"`
	Message         string  `json:"message" yaml:"message"`
}

func (o verifyOutput) Header() []string {
	return []string{"USER", "RESULT", "CONFIDENCE", "THRESHOLD", "PASSPHRASE"}
}

func (o verifyOutput) Rows() [][]string {
	return [][]string{{
		o.UserID,
		o.Message,
		cli.FormatConfidence(o.Confidence),
		cli.FormatConfidence(o.Threshold),
		strconv.FormatBool(o.PassphraseMatch),
	}}
}

var verifyCmd = &cobra.Command{
	Use:   "verify <user-id> <audio-file>",
	Short: "Verify a recording against an enrolled voice",
	Long: `Compare a recording with the stored voice profile of a user.

A rejected voice is reported, not treated as a failure; the exit status is
non-zero only when verification could not run.

Examples:
  emora verify alice attempt.wav
  emora verify alice attempt.wav --format json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := strings.TrimSpace(args[0])
		audio, err := readAudio(cmd, args[1])
		if err != nil {
			return err
		}
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			res, err := rt.voice.Verify(cmd.Context(), voiceauth.VerifyRequest{UserID: userID, Audio: audio})
			if err != nil {
				return err
			}
			return output(cmd, verifyOutput{
				UserID:          userID,
				Authenticated:   res.Authenticated,
				Confidence:      res.Confidence,
				Threshold:       res.Threshold,
				Transcription:   res.Transcription,
				PassphraseMatch: res.PassphraseMatch,
				Message:         res.Message(),
			})
		})
	},
}

var refineCmd = &cobra.Command{
	Use:   "refine <user-id> <audio-file>",
	Short: "Blend another recording into a voice profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := strings.TrimSpace(args[0])
		audio, err := readAudio(cmd, args[1])
		if err != nil {
			return err
		}
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			res, err := rt.voice.Refine(cmd.Context(), voiceauth.EnrollRequest{UserID: userID, Audio: audio})
			if err != nil {
				return err
			}
			return output(cmd, enrollOutput{
				UserID:          userID,
				Transcription:   res.Transcription,
				Passphrase:      res.Passphrase,
				PassphraseMatch: res.PassphraseMatch,
			})
		})
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect, list and delete voice profiles",
}

// profileList renders profile summaries as a table.
type profileList []*voiceauth.ProfileInfo

func (l profileList) Header() []string {
	return []string{"USER", "PASSPHRASE", "SCHEMA", "UPDATED"}
}

func (l profileList) Rows() [][]string {
	rows := make([][]string, len(l))
	for i, p := range l {
		rows[i] = []string{
			p.UserID,
			p.Passphrase,
			strconv.Itoa(p.SchemaVersion),
			p.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
	}
	return rows
}

var profileGetCmd = &cobra.Command{
	Use:   "get <user-id>",
	Short: "Show a voice profile summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := strings.TrimSpace(args[0])
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			info, err := rt.voice.ProfileInfo(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if outputFormat() == cli.FormatTable {
				return output(cmd, profileList{info})
			}
			return output(cmd, info)
		})
	},
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List voice profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			infos, err := rt.voice.ListProfiles(cmd.Context())
			if err != nil {
				return err
			}
			if len(infos) == 0 && outputFormat() == cli.FormatTable {
				fmt.Fprintln(cmd.OutOrStdout(), "No voice profiles enrolled.")
				return nil
			}
			return output(cmd, profileList(infos))
		})
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:     "delete <user-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a voice profile",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := strings.TrimSpace(args[0])
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			deleted, err := rt.voice.DeleteProfile(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if !deleted {
				cli.PrintWarning(cmd.OutOrStdout(), "No voice profile for %q", userID)
				return nil
			}
			cli.PrintSuccess(cmd.OutOrStdout(), "Voice profile %q deleted", userID)
			return nil
		})
	},
}

func init() {
	enrollCmd.Flags().StringVarP(&enrollPassphrase, "passphrase", "p", "", "expected passphrase (default from server.yaml)")

	profileCmd.AddCommand(profileGetCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileDeleteCmd)

	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(refineCmd)
	rootCmd.AddCommand(profileCmd)
}
