package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	FormatYAML  OutputFormat = "yaml"
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
)

// ParseFormat validates a --format flag value. Empty means YAML.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatYAML, nil
	case FormatYAML, FormatJSON, FormatTable:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format %q (want yaml, json or table)", s)
}

// Tabular is implemented by results that can render as a table.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// OutputOptions configures Output.
type OutputOptions struct {
	Format OutputFormat
	// File receives the output instead of Writer when set.
	File string
	// Writer defaults to os.Stdout.
	Writer io.Writer
}

// Output renders result in the requested format.
func Output(result any, opts OutputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML, "":
		data, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("format output: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatTable:
		t, ok := result.(Tabular)
		if !ok {
			return fmt.Errorf("result of type %T cannot be shown as a table", result)
		}
		return writeTable(w, t)
	}
	return fmt.Errorf("unsupported output format: %s", opts.Format)
}

func writeTable(w io.Writer, t Tabular) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Header(), "\t"))
	for _, row := range t.Rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// PrintSuccess prints a success line to w.
func PrintSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "✓ "+format+"\n", args...)
}

// PrintWarning prints a warning line to w.
func PrintWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "⚠ "+format+"\n", args...)
}
