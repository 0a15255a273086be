package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"constructflow/internal/authz"
	"constructflow/internal/utils"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Access tokens for the HTTP API",
	}

	var (
		userID int
		role   string
		ttl    time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roleID, ok := authz.Parse(role)
			if !ok {
				return fmt.Errorf("unknown role %q (want admin|director|employee)", role)
			}
			if userID <= 0 {
				return fmt.Errorf("--user is required")
			}
			tok, err := utils.IssueAccessToken([]byte(opts.cfg.JWT.Secret), userID, roleID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	issue.Flags().IntVar(&userID, "user", 0, "user id")
	issue.Flags().StringVar(&role, "role", "employee", "admin|director|employee")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	cmd.AddCommand(issue)
	return cmd
}
