package cli

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/haven/internal/responder"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check that the chat model answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			h := app.Responder.CheckHealth(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				if err := json.NewEncoder(out).Encode(h); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "status: %s\n", h.Status)
				if h.Model != "" {
					fmt.Fprintf(out, "model:  %s\n", h.Model)
				}
				if h.Detail != "" {
					fmt.Fprintf(out, "error:  %s\n", h.Detail)
				}
			}
			if h.Status != responder.StatusConnected {
				return fmt.Errorf("chat model unavailable")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "output-json", false, "Print the health report as JSON")
	return cmd
}
