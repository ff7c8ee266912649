package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/haven/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := opts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			addr := app.Config.Server.Addr
			srv := server.New(app.Responder, app.Observer, app.Metrics.Handler())
			fmt.Fprintf(cmd.OutOrStdout(), "Haven listening on http://%s\n", addr)
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:8000)")
	bindFlag(opts.v, "server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
