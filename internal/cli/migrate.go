package cli

import (
	"fmt"

	"github.com/pliu/engihub/internal/store/sqlstore"
	"github.com/spf13/cobra"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}

			st, err := sqlstore.New(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			result, err := st.Migrate()
			if err != nil {
				return err
			}
			if result.Changed {
				fmt.Fprintf(cmd.OutOrStdout(), "migrated to version %d\n", result.Version)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "already at version %d\n", result.Version)
			}
			return nil
		},
	}
}
