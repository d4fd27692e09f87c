package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/emora/voiceauth/cmd/emora/internal/config"
	"github.com/emora/voiceauth/pkg/kv"
)

// setupTestEnv points the CLI at a fresh config root and an in-memory
// store.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvDir, dir)

	mem := kv.NewMemory(nil)
	testKVOverride = mem
	t.Cleanup(func() {
		testKVOverride = nil
		mem.Close()
	})
	return dir
}

func runCmd(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	resetFlags(rootCmd)
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("emora %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestVersion(t *testing.T) {
	setupTestEnv(t)
	out := mustRun(t, "version")
	if !strings.Contains(out, "emora") {
		t.Fatalf("expected 'emora', got: %s", out)
	}
}

func TestVersionJSON(t *testing.T) {
	setupTestEnv(t)
	out := mustRun(t, "version", "--format", "json")
	if !strings.Contains(out, `"version"`) {
		t.Fatalf("expected JSON, got: %s", out)
	}
}

func TestUnknownFormat(t *testing.T) {
	setupTestEnv(t)
	if _, err := runCmd(t, "version", "--format", "xml"); err == nil {
		t.Fatal("expected error for --format xml")
	}
}

func TestContexts(t *testing.T) {
	setupTestEnv(t)

	out := mustRun(t, "config", "list-contexts")
	if !strings.Contains(out, "No contexts") {
		t.Fatalf("list-contexts = %q", out)
	}
	out = mustRun(t, "config", "add-context", "dev")
	if !strings.Contains(out, "created") || !strings.Contains(out, "Switched") {
		t.Fatalf("add-context = %q", out)
	}
	if _, err := runCmd(t, "config", "add-context", "dev"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("duplicate add-context err = %v", err)
	}
	mustRun(t, "config", "add-context", "prod")

	if out := mustRun(t, "config", "current-context"); strings.TrimSpace(out) != "dev" {
		t.Fatalf("current-context = %q", out)
	}
	mustRun(t, "config", "use-context", "prod")
	if out := mustRun(t, "config", "current-context"); strings.TrimSpace(out) != "prod" {
		t.Fatalf("current-context = %q", out)
	}
	mustRun(t, "config", "delete-context", "prod")
	if out := mustRun(t, "config", "current-context"); !strings.Contains(out, "No current context") {
		t.Fatalf("current-context after delete = %q", out)
	}
	if _, err := runCmd(t, "config", "use-context", "../etc"); err == nil {
		t.Fatal("expected error for path-like context name")
	}
}

func TestConfigSetGet(t *testing.T) {
	setupTestEnv(t)
	mustRun(t, "config", "add-context", "dev")

	mustRun(t, "config", "set", "threshold", "0.9")
	mustRun(t, "config", "set", "transcriber.provider", "static")
	mustRun(t, "config", "set", "transcriber.api_key", "sk-0123456789")

	if out := mustRun(t, "config", "get", "threshold"); strings.TrimSpace(out) != "0.9" {
		t.Fatalf("get threshold = %q", out)
	}
	if out := mustRun(t, "config", "get", "transcriber.provider"); strings.TrimSpace(out) != "static" {
		t.Fatalf("get transcriber.provider = %q", out)
	}
	if _, err := runCmd(t, "config", "get", "archive.bucket"); err == nil {
		t.Fatal("expected error for unset key")
	}

	tests := []struct {
		name string
		args []string
	}{
		{"threshold out of range", []string{"threshold", "2"}},
		{"unknown key", []string{"no_such_setting", "x"}},
		{"scalar as section", []string{"threshold.x", "1"}},
		{"empty segment", []string{"transcriber..model", "x"}},
		{"bad archive kind", []string{"archive.kind", "ftp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, append([]string{"config", "set"}, tt.args...)...); err == nil {
				t.Fatalf("set %v: expected error", tt.args)
			}
		})
	}
	if out := mustRun(t, "config", "get", "threshold"); strings.TrimSpace(out) != "0.9" {
		t.Fatalf("rejected set changed threshold: %q", out)
	}

	out := mustRun(t, "config", "view")
	if strings.Contains(out, "sk-0123456789") || !strings.Contains(out, "sk-0****") {
		t.Fatalf("view leaks or misses api key:\n%s", out)
	}
}

func TestEnrollVerifyCommands(t *testing.T) {
	setupTestEnv(t)
	mustRun(t, "config", "add-context", "dev")
	mustRun(t, "config", "set", "transcriber.provider", "static")
	mustRun(t, "config", "set", "transcriber.text", "hello emora")

	audioDir := t.TempDir()
	alice := filepath.Join(audioDir, "alice.wav")
	quiet := filepath.Join(audioDir, "quiet.wav")
	mustRun(t, "synth", alice, "--voice", "alice")
	mustRun(t, "synth", quiet, "--voice", "silence")

	out := mustRun(t, "enroll", "alice", alice, "--format", "json")
	var enr enrollOutput
	if err := json.Unmarshal([]byte(out), &enr); err != nil {
		t.Fatalf("enroll output %q: %v", out, err)
	}
	if enr.Passphrase != "Hello Emora" || !enr.PassphraseMatch {
		t.Fatalf("enroll = %+v", enr)
	}

	out = mustRun(t, "verify", "alice", alice, "--format", "json")
	var ver verifyOutput
	if err := json.Unmarshal([]byte(out), &ver); err != nil {
		t.Fatalf("verify output %q: %v", out, err)
	}
	if !ver.Authenticated || ver.Message != "Voice verified" || ver.Confidence < ver.Threshold {
		t.Fatalf("verify = %+v", ver)
	}

	if _, err := runCmd(t, "verify", "alice", quiet); err == nil {
		t.Fatal("expected error verifying silence")
	}

	out = mustRun(t, "profile", "list", "--format", "table")
	if !strings.Contains(out, "USER") || !strings.Contains(out, "alice") {
		t.Fatalf("profile list = %q", out)
	}
	out = mustRun(t, "profile", "get", " alice ")
	if !strings.Contains(out, "user_id: alice\n") {
		t.Fatalf("profile get = %q", out)
	}

	out = mustRun(t, "refine", "alice ", alice, "--format", "json")
	if err := json.Unmarshal([]byte(out), &enr); err != nil || enr.UserID != "alice" {
		t.Fatalf("refine = %q, %v", out, err)
	}

	if out := mustRun(t, "profile", "delete", "alice"); !strings.Contains(out, "deleted") {
		t.Fatalf("profile delete = %q", out)
	}
	if out := mustRun(t, "profile", "delete", "alice"); !strings.Contains(out, "No voice profile") {
		t.Fatalf("second delete = %q", out)
	}
	if _, err := runCmd(t, "verify", "alice", alice); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("verify after delete err = %v", err)
	}
}

func TestAccountCommands(t *testing.T) {
	setupTestEnv(t)
	mustRun(t, "config", "add-context", "dev")
	mustRun(t, "config", "set", "jwt_secret", "cli-test-secret-0123456789")

	mustRun(t, "account", "register", "bob", "--name", "Bob", "--password", "test_password_123")
	if _, err := runCmd(t, "account", "register", "bob", "--password", "test_password_123"); err == nil {
		t.Fatal("expected duplicate register to fail")
	}

	rootCmd.SetIn(strings.NewReader("test_password_123\n"))
	out := mustRun(t, "account", "login", "bob", "--password-stdin", "--format", "json")
	rootCmd.SetIn(nil)
	var login loginOutput
	if err := json.Unmarshal([]byte(out), &login); err != nil {
		t.Fatalf("login output %q: %v", out, err)
	}
	if login.UserID != "bob" || login.Token == "" || login.ExpiresAt.IsZero() {
		t.Fatalf("login = %+v", login)
	}

	if _, err := runCmd(t, "account", "login", "bob", "--password", "wrong-password"); err == nil {
		t.Fatal("expected wrong password to fail")
	}
	if _, err := runCmd(t, "account", "login", "bob"); err == nil {
		t.Fatal("expected missing password to fail")
	}
	if out := mustRun(t, "account", "delete", "bob"); !strings.Contains(out, "deleted") {
		t.Fatalf("delete = %q", out)
	}
}

func TestSynthRejectsUnknownVoice(t *testing.T) {
	setupTestEnv(t)
	if _, err := runCmd(t, "synth", filepath.Join(t.TempDir(), "x.wav"), "--voice", "carol"); err == nil {
		t.Fatal("expected error for unknown voice")
	}
}
