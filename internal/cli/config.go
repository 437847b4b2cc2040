package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/satchel/internal/config"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

func (a *App) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View and initialize satchel configuration.`,
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a default configuration to config.yaml in the satchel home directory.
An existing file is kept unless --force is given.

Example:
  satchel config init
  satchel config init --force`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := config.Path(a.cfg.Home)
			if _, err := os.Stat(path); err == nil && !force {
				return satchelerr.WithSuggestion(
					satchelerr.WithDetails(satchelerr.ErrInvalidInput, map[string]string{"file": path, "reason": "already exists"}),
					"Use --force to overwrite it",
				)
			}
			defaults := config.Defaults()
			defaults.Home = a.cfg.Home
			if err := config.Save(defaults, path); err != nil {
				return satchelerr.Wrap(err, "writing %s", path)
			}
			return a.formatter.Emit(map[string]string{"file": path, "status": "created"}, func(io.Writer) error {
				a.msg.Successf("Configuration written to %s", path)
				return nil
			})
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the configuration in effect after the file, SATCHEL_* environment
variables and flags are applied.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.formatter.Emit(a.cfg, func(w io.Writer) error {
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(a.cfg); err != nil {
					return err
				}
				return enc.Close()
			})
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
