package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/orgai/internal/auth"
	"github.com/suPer8Hu/orgai/internal/client"
	"github.com/suPer8Hu/orgai/internal/store/rabbitmq"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the conversation history of --user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
		defer cancel()
		if err := newClient().Clear(ctx, userID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "history cleared for %s\n", userID)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show queue and corpus status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
		defer cancel()
		h, err := newClient().Health(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, h)
	},
}

var refreshVia string

var refreshCmd = &cobra.Command{
	Use:   "refresh <policy|schema|documentation>",
	Short: "Refresh one corpus from its live source",
	Long: `Refresh one corpus. With --via http (default) the call waits for the
refresh and prints the corpus status; it needs an admin token (--token, or
one signed from ADMIN_JWT_SECRET). With --via rabbit a refresh command is
queued for the server and the call returns at once.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch refreshVia {
		case "rabbit":
			ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
			defer cancel()
			if err := rabbitmq.PublishRefresh(ctx, cfg.RabbitURL, cfg.RabbitRefreshQueue,
				rabbitmq.RefreshCommand{Mode: args[0], RequestedBy: userID}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refresh of %s queued\n", args[0])
			return nil

		case "http":
			tok := token
			if tok == "" {
				var err error
				tok, err = auth.SignJWT(userID, auth.RoleAdmin, cfg.AdminJWTSecret, 5*time.Minute)
				if err != nil {
					return fmt.Errorf("sign admin token: %w", err)
				}
			}
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
			defer cancel()
			out, err := client.New(serverURL, nil).WithToken(tok).Refresh(ctx, args[0])
			if out != nil {
				_ = printJSON(cmd, out)
			}
			return err

		default:
			return fmt.Errorf("unknown --via %q (want http or rabbit)", refreshVia)
		}
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign an admin token with ADMIN_JWT_SECRET",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := auth.SignJWT(userID, auth.RoleAdmin, cfg.AdminJWTSecret, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshVia, "via", "http", "http | rabbit")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
