// Package cli holds the terminal helpers shared by the emora commands:
// result rendering in YAML, JSON or a plain table, human-readable value
// formatting, and slog handler construction from flag values.
//
//	log, err := cli.NewLogger(os.Stderr, "debug", "json")
//	err = cli.Output(info, cli.OutputOptions{Format: cli.FormatJSON})
package cli
