package commands

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/emora/voiceauth/pkg/accounts"
	"github.com/emora/voiceauth/pkg/cli"
)

var (
	accountName          string
	accountPassword      string
	accountPasswordStdin bool
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage password accounts",
	Long: `Manage the password sign-in channel.

Passwords are read from --password or, with --password-stdin, from the first
line of standard input.

Examples:
  emora account register bob --name Bob --password-stdin < pw.txt
  emora account login bob --password 'correct horse'
  emora account delete bob`,
}

// password returns the password from the flags or stdin.
func password(cmd *cobra.Command) (string, error) {
	if !accountPasswordStdin {
		if accountPassword == "" {
			return "", errors.New("a password is required (--password or --password-stdin)")
		}
		return accountPassword, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var accountRegisterCmd = &cobra.Command{
	Use:   "register <user-id>",
	Short: "Create a password account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := strings.TrimSpace(args[0])
		pw, err := password(cmd)
		if err != nil {
			return err
		}
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			a, err := rt.accounts.Register(cmd.Context(), userID, accountName, pw)
			if err != nil {
				return err
			}
			cli.PrintSuccess(cmd.OutOrStdout(), "Account %q registered", a.UserID)
			return nil
		})
	},
}

type loginOutput struct {
	UserID    string    `json:"user_id" yaml:"user_id"`
	Token     string    `json:"token" yaml:"token"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
}

func (o loginOutput) Header() []string { return []string{"USER", "EXPIRES", "TOKEN"} }

func (o loginOutput) Rows() [][]string {
	return [][]string{{o.UserID, o.ExpiresAt.Format(time.RFC3339), o.Token}}
}

var accountLoginCmd = &cobra.Command{
	Use:   "login <user-id>",
	Short: "Check a password and print a session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := strings.TrimSpace(args[0])
		pw, err := password(cmd)
		if err != nil {
			return err
		}
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			a, err := rt.accounts.Authenticate(cmd.Context(), userID, pw)
			if err != nil {
				return err
			}
			token, err := rt.tokens.Issue(a.UserID, accounts.MethodPassword)
			if err != nil {
				return err
			}
			claims, err := rt.tokens.Parse(token)
			if err != nil {
				return err
			}
			return output(cmd, loginOutput{
				UserID:    a.UserID,
				Token:     token,
				ExpiresAt: claims.ExpiresAt.Time,
			})
		})
	},
}

var accountDeleteCmd = &cobra.Command{
	Use:     "delete <user-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a password account",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := strings.TrimSpace(args[0])
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			deleted, err := rt.accounts.Delete(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if !deleted {
				cli.PrintWarning(cmd.OutOrStdout(), "No account for %q", userID)
				return nil
			}
			cli.PrintSuccess(cmd.OutOrStdout(), "Account %q deleted", userID)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{accountRegisterCmd, accountLoginCmd} {
		c.Flags().StringVar(&accountPassword, "password", "", "account password")
		c.Flags().BoolVar(&accountPasswordStdin, "password-stdin", false, "read the password from stdin")
	}
	accountRegisterCmd.Flags().StringVar(&accountName, "name", "", "display name")

	accountCmd.AddCommand(accountRegisterCmd)
	accountCmd.AddCommand(accountLoginCmd)
	accountCmd.AddCommand(accountDeleteCmd)
	rootCmd.AddCommand(accountCmd)
}
