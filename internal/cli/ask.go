package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/orgai/internal/chat"
	"github.com/suPer8Hu/orgai/internal/client"
)

var (
	askMode   string
	askStream bool
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Ask a question, or start an interactive session",
	Long: `Ask a question in one of the modes: policy, schema (alias etl),
documentation (alias docs) or auto.

Without a prompt, reads questions line by line. In that session
"/mode <name>" switches mode, "/clear" drops the history and "/quit" exits.

Examples:
  orgai ask "What credit score do auto loans need?" --mode policy
  orgai ask "Which columns does Customers have?" -m schema --stream
  orgai ask`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askMode, "mode", "m", "auto", "policy | schema | documentation | auto")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "print the answer as it is generated")
}

func runAsk(cmd *cobra.Command, args []string) error {
	c := newClient()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if len(args) == 1 {
		return askOnce(ctx, c, cmd.OutOrStdout(), chat.Request{User: userID, Prompt: args[0], Mode: askMode}, askStream)
	}
	return interactive(ctx, c, cmd.InOrStdin(), cmd.OutOrStdout(), askMode, askStream)
}

func askOnce(ctx context.Context, c *client.Client, out io.Writer, req chat.Request, stream bool) error {
	if stream {
		var failed *chat.StreamEvent
		err := c.Stream(ctx, req,
			func(m client.Meta) {
				fmt.Fprintf(out, "[job %s, #%d, %s]\n", m.JobID, m.QueueNo, m.Mode)
			},
			func(ev chat.StreamEvent) {
				switch ev.Type {
				case chat.EventStatus:
					fmt.Fprintf(out, "... %s\n", ev.Message)
				case chat.EventChunk:
					fmt.Fprint(out, ev.Content)
				case chat.EventDone:
					fmt.Fprintln(out)
				case chat.EventError:
					e := ev
					failed = &e
				}
			})
		if err != nil {
			return err
		}
		if failed != nil {
			fmt.Fprintln(out)
			return fmt.Errorf("%s: %s", failed.Code, failed.Message)
		}
		return nil
	}

	ans, err := c.Ask(ctx, req)
	if ans != nil && ans.Response != "" {
		fmt.Fprintln(out, ans.Response)
	}
	if err != nil {
		return err
	}
	if len(ans.Sources) > 0 {
		ids := make([]string, 0, len(ans.Sources))
		for _, s := range ans.Sources {
			ids = append(ids, s.ID)
		}
		fmt.Fprintf(out, "\n[%s mode, sources: %s]\n", ans.Mode, strings.Join(ids, ", "))
	}
	return nil
}

func interactive(ctx context.Context, c *client.Client, in io.Reader, out io.Writer, mode string, stream bool) error {
	fmt.Fprintf(out, "orgai (%s mode). /mode <name>, /clear, /quit\n", mode)
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/clear":
			if err := c.Clear(ctx, userID); err != nil {
				fmt.Fprintf(out, "clear failed: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "history cleared")
			continue
		case strings.HasPrefix(line, "/mode"):
			if m := strings.TrimSpace(strings.TrimPrefix(line, "/mode")); m != "" {
				mode = m
			}
			fmt.Fprintf(out, "mode: %s\n", mode)
			continue
		}

		err := askOnce(ctx, c, out, chat.Request{User: userID, Prompt: line, Mode: mode}, stream)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				fmt.Fprintf(out, "error: %s\n", apiErr.Message)
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}
