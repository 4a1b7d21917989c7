package cli

import (
	"github.com/pliu/engihub/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			app := fx.New(server.Module(cfg))
			if err := app.Err(); err != nil {
				return err
			}
			// Run blocks until SIGINT or SIGTERM.
			app.Run()
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}
