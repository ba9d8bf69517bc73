package main

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/appointly/libs/auth"
	"github.com/md-rashed-zaman/appointly/libs/config"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
	"github.com/spf13/cobra"
)

// tokenCmd issues an HS256 token for local testing against the API.
func tokenCmd() *cobra.Command {
	var (
		user   string
		role   string
		acting string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development JWT",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := config.RequiredString("JWT_SECRET")
			if err != nil {
				return err
			}
			persisted, err := model.ParseRole(role)
			if err != nil {
				return err
			}
			id := auth.Identity{UserID: user, Role: persisted.String()}
			if acting != "" {
				target, err := model.ParseRole(acting)
				if err != nil {
					return err
				}
				eff, err := model.Persisted(persisted).SwitchTo(target)
				if err != nil {
					return err
				}
				if eff.IsDowngraded() {
					id.ActingRole = eff.Current().String()
				}
			}
			signer := auth.NewSigner(secret, config.String("JWT_ISSUER", "appointly"), ttl)
			token, err := signer.Issue(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "subject user id")
	cmd.Flags().StringVar(&role, "role", "customer", "persisted role (admin, owner, staff, customer)")
	cmd.Flags().StringVar(&acting, "act-as", "", "optional lower role for the session")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
