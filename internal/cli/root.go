package cli

import (
	"github.com/pliu/engihub/internal/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

func (o *RootOptions) load() (*config.Config, error) {
	return config.Load(o.ConfigPath)
}

// NewRootCommand creates the root command for the engihub CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "engihub",
		Short: "EngiHub community server",
		Long: `EngiHub serves the task board, chat and notifications of the student
community, including the EngiCoin escrow for task bounties.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "",
		"path to the TOML config file (default $"+config.EnvPath+")")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewInitConfigCommand(opts))

	return cmd
}
