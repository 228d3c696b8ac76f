// Package cli implements the sheetdiff command-line interface.
//
// # Commands
//
//   - compare: pair two drawing sets by sheet identifier and write diff overlays
//   - config: print the effective configuration as TOML
//   - version: print build information
//
// All commands accept --verbose (-v) for debug-level logging.
package cli

import (
	"fmt"
	"io"

	"sheetdiff/internal/version"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Out    io.Writer // Command output, separate from the log stream
}

// New creates a CLI that prints results to out and logs to logw.
func New(out, logw io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(logw, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
		Out: out,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "sheetdiff",
		Short:         "Visual diff of two revisions of a drawing set",
		Long:          `sheetdiff pairs the sheets of two drawing-set revisions by identifier, aligns each pair and writes a colour overlay of removed, added and unchanged content.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				c.SetLogLevel(LogDebug)
			}
		},
	}
	root.SetVersionTemplate(version.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.compareCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.versionCommand())
	return root
}

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(c.Out, version.String())
		},
	}
}
