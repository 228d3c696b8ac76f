package cli

import (
	"sheetdiff/internal/config"

	"github.com/spf13/cobra"
)

func (c *CLI) configCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Long:  `Print the defaults, or the result of applying --config on top of them, in TOML form suitable as a starting configuration file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			return cfg.Encode(c.Out)
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "TOML configuration file")
	return cmd
}

// loadConfig returns the defaults when path is empty.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
