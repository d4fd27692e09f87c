// Package config implements the emora CLI configuration contexts.
//
// Configuration lives under os.UserConfigDir()/emora, or under
// $EMORA_CONFIG_DIR when set:
//
//	emora/
//	├── current-context          # plain text: name of current context
//	└── contexts/
//	    ├── dev/
//	    │   └── server.yaml
//	    └── prod/
//	        └── server.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// EnvDir overrides the configuration root.
	EnvDir = "EMORA_CONFIG_DIR"

	appDir             = "emora"
	currentContextFile = "current-context"
	contextsDir        = "contexts"
)

// Config holds the root configuration state.
type Config struct {
	// Dir is the root configuration directory.
	Dir string

	// CurrentContext is the name of the active context.
	CurrentContext string
}

// Load loads the configuration from $EMORA_CONFIG_DIR or the OS default.
func Load() (*Config, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		return LoadFrom(dir)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine config directory: %w", err)
	}
	return LoadFrom(filepath.Join(base, appDir))
}

// LoadFrom loads the configuration from a specific root directory.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{Dir: dir}
	data, err := os.ReadFile(filepath.Join(dir, currentContextFile))
	switch {
	case err == nil:
		cfg.CurrentContext = strings.TrimSpace(string(data))
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read current context: %w", err)
	}
	return cfg, nil
}

// ValidateContextName rejects names that are not a single path segment.
func ValidateContextName(name string) error {
	switch {
	case name == "":
		return errors.New("context name cannot be empty")
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("context name %q must not contain path separators", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("context name %q must not start with '.'", name)
	}
	return nil
}

// ContextDir returns the directory path for a named context.
func (c *Config) ContextDir(name string) string {
	return filepath.Join(c.Dir, contextsDir, name)
}

// ResolveContext returns the directory of the named context, or of the
// current context when name is empty.
func (c *Config) ResolveContext(name string) (string, error) {
	if name == "" {
		if c.CurrentContext == "" {
			return "", errors.New("no current context set; use 'emora config use-context <name>'")
		}
		name = c.CurrentContext
	}
	if err := ValidateContextName(name); err != nil {
		return "", err
	}
	dir := c.ContextDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("context %q not found", name)
	}
	return dir, nil
}

// ListContexts returns the names of all contexts.
func (c *Config) ListContexts() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(c.Dir, contextsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// AddContext creates a new, empty context.
func (c *Config) AddContext(name string) error {
	if err := ValidateContextName(name); err != nil {
		return err
	}
	dir := c.ContextDir(name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("context %q already exists", name)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create context %q: %w", name, err)
	}
	return nil
}

// DeleteContext removes a context and its files.
func (c *Config) DeleteContext(name string) error {
	if err := ValidateContextName(name); err != nil {
		return err
	}
	dir := c.ContextDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("context %q not found", name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete context %q: %w", name, err)
	}
	if c.CurrentContext == name {
		c.CurrentContext = ""
		return c.saveCurrentContext()
	}
	return nil
}

// UseContext switches the current context.
func (c *Config) UseContext(name string) error {
	if err := ValidateContextName(name); err != nil {
		return err
	}
	if _, err := os.Stat(c.ContextDir(name)); os.IsNotExist(err) {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.saveCurrentContext()
}

func (c *Config) saveCurrentContext() error {
	if err := os.MkdirAll(c.Dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(c.Dir, currentContextFile)
	return os.WriteFile(path, []byte(c.CurrentContext+"\n"), 0o600)
}
