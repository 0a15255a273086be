package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"constructflow/internal/app"
)

func newNotifyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Direct notifications",
	}

	var (
		userID int64
		title  string
		body   string
	)
	send := &cobra.Command{
		Use:   "send",
		Short: "Send a message to a user over Telegram and/or e-mail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 || title == "" {
				return fmt.Errorf("--user and --title are required")
			}
			return withRuntime(cmd, opts, func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.Notifier.Send(ctx, userID, title, body); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent to user %d\n", userID)
				return nil
			})
		},
	}
	send.Flags().Int64Var(&userID, "user", 0, "recipient user id")
	send.Flags().StringVar(&title, "title", "", "message title")
	send.Flags().StringVar(&body, "body", "", "message body")

	cmd.AddCommand(send)
	return cmd
}
