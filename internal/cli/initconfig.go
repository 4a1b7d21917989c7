package cli

import (
	"fmt"
	"os"

	"github.com/pliu/engihub/internal/config"
	"github.com/spf13/cobra"
)

func NewInitConfigCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a config file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "engihub.toml"
			if rootOpts.ConfigPath != "" {
				path = rootOpts.ConfigPath
			}
			if len(args) == 1 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			cfg := config.Default()
			secret, err := config.NewSecret()
			if err != nil {
				return err
			}
			cfg.Auth.CookieSecret = secret
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}
