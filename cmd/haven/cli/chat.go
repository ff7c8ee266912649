package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/haven/internal/provider"
	"github.com/felixgeelhaar/haven/internal/ui"
	"github.com/spf13/cobra"
)

// handler is the slice of the Responder the chat loop needs.
type handler interface {
	Handle(ctx context.Context, conversation []provider.Message) (string, error)
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat in the terminal, or send a single message",
		Long: `Without arguments chat starts an interactive session that keeps the
conversation until /quit or end of input. With arguments the words are sent
as one message and the reply is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if len(args) > 0 {
				reply, err := app.Responder.Handle(cmd.Context(), []provider.Message{
					{Role: provider.RoleUser, Content: strings.Join(args, " ")},
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply)
				return nil
			}
			return runChat(cmd.Context(), app.Responder, ui.NewConsole(cmd.OutOrStdout()), cmd.InOrStdin())
		},
	}
}

// runChat reads one message per line. Failed turns are reported and
// dropped from the history so the user can retry.
func runChat(ctx context.Context, h handler, u ui.UI, in io.Reader) error {
	u.Banner("Haven")
	u.Status("Share what is on your mind. Type /quit to leave.")

	var history []provider.Message
	sc := bufio.NewScanner(in)
	for {
		u.Prompt()
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		history = append(history, provider.Message{Role: provider.RoleUser, Content: line})
		reply, err := h.Handle(ctx, history)
		if err != nil {
			u.Error(err)
			history = history[:len(history)-1]
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		u.Reply(reply)
		history = append(history, provider.Message{Role: provider.RoleAssistant, Content: reply})
	}
	return sc.Err()
}
