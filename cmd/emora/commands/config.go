package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/emora/voiceauth/cmd/emora/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage contexts and their server.yaml.

A context is a named directory holding server.yaml and, by default, the
data directory of the service. set and get address server.yaml of the
current context (or --context) with dotted keys.

Examples:
  emora config add-context dev
  emora config use-context dev
  emora config set threshold 0.9
  emora config set transcriber.provider openai
  emora config set transcriber.api_key sk-xxx
  emora config get transcriber.provider
  emora config view`,
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"ls"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		names, err := cfg.ListContexts()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "No contexts configured.")
			fmt.Fprintln(out, "Create one with: emora config add-context <name>")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tCONFIGURED")
		for _, name := range names {
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			configured := "no"
			if _, err := os.Stat(filepath.Join(cfg.ContextDir(name), config.ServerService+".yaml")); err == nil {
				configured = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", current, name, configured)
		}
		return w.Flush()
	},
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Create a new context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.AddContext(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q created.\n", args[0])
		if cfg.CurrentContext == "" {
			if err := cfg.UseContext(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
		}
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context, its server.yaml and its default data directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted.\n", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
		return nil
	},
}

var configCurrentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Display the current context name",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No current context set.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
		return nil
	},
}

// selectedContextDir resolves --context or the current context.
func selectedContextDir() (string, error) {
	cfg, err := GetConfig()
	if err != nil {
		return "", err
	}
	return cfg.ResolveContext(contextName)
}

// loadServerMap reads server.yaml as a generic map. A missing or empty
// file yields an empty map.
func loadServerMap(dir string) (map[string]any, error) {
	if _, err := os.Stat(filepath.Join(dir, config.ServerService+".yaml")); os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	m, err := config.LoadService[map[string]any](dir, config.ServerService)
	if err != nil {
		return nil, err
	}
	if *m == nil {
		return map[string]any{}, nil
	}
	return *m, nil
}

// splitKey validates a dotted key.
func splitKey(key string) ([]string, error) {
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid key %q", key)
		}
	}
	return parts, nil
}

// setPath stores value at the dotted path, creating intermediate maps.
func setPath(m map[string]any, path []string, value any) error {
	for i, p := range path[:len(path)-1] {
		next, ok := m[p]
		if !ok || next == nil {
			child := map[string]any{}
			m[p] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is not a section", strings.Join(path[:i+1], "."))
		}
		m = child
	}
	m[path[len(path)-1]] = value
	return nil
}

func getPath(m map[string]any, path []string) (any, bool) {
	var cur any = m
	for _, p := range path {
		section, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = section[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// parseScalar reads a command-line value as a YAML scalar so that numbers
// and booleans keep their type.
func parseScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	switch v.(type) {
	case map[string]any, []any:
		return s
	}
	return v
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a server.yaml value",
	Long: `Set a value in server.yaml of the selected context. The resulting file
is validated before it is written.

Keys:
  addr, data_dir, threshold, default_passphrase, require_passphrase,
  ffmpeg_path, jwt_secret, token_ttl, log_level, log_format,
  transcriber.{provider,api_key,model,base_url,language,text},
  archive.{kind,dir,bucket,prefix,region,endpoint,access_key,secret_key}`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := selectedContextDir()
		if err != nil {
			return err
		}
		path, err := splitKey(args[0])
		if err != nil {
			return err
		}
		m, err := loadServerMap(dir)
		if err != nil {
			return err
		}
		if err := setPath(m, path, parseScalar(args[1])); err != nil {
			return err
		}

		data, err := yaml.Marshal(m)
		if err != nil {
			return err
		}
		var s config.Server
		if err := yaml.UnmarshalWithOptions(data, &s, yaml.DisallowUnknownField()); err != nil {
			return fmt.Errorf("invalid %s: %w", args[0], err)
		}
		if err := s.Validate(); err != nil {
			return err
		}
		if err := config.SaveService(dir, config.ServerService, &m); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s (context: %s)\n", args[0], filepath.Base(dir))
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a server.yaml value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := selectedContextDir()
		if err != nil {
			return err
		}
		path, err := splitKey(args[0])
		if err != nil {
			return err
		}
		m, err := loadServerMap(dir)
		if err != nil {
			return err
		}
		v, ok := getPath(m, path)
		if !ok {
			return fmt.Errorf("key %q not set in %s.yaml", args[0], config.ServerService)
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the effective server settings of the selected context",
	Long: `Show server.yaml with defaults applied. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := selectedContextDir()
		if err != nil {
			return err
		}
		s, err := config.LoadServer(dir)
		if err != nil {
			return err
		}
		masked := *s
		masked.JWTSecret = mask(masked.JWTSecret)
		masked.Transcriber.APIKey = mask(masked.Transcriber.APIKey)
		masked.Archive.SecretKey = mask(masked.Archive.SecretKey)
		return output(cmd, masked)
	},
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

func init() {
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configCurrentContextCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configViewCmd)
	rootCmd.AddCommand(configCmd)
}
