package cmd

import (
	"fmt"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/jcodog/Cleo-Dashboard-sub001/log"
	"github.com/spf13/cobra"
)

// tokenStatus is printed by "token check". The token itself is always redacted.
type tokenStatus struct {
	User      string            `json:"user" yaml:"user"`
	Provider  domain.ProviderID `json:"provider" yaml:"provider"`
	Token     string            `json:"token" yaml:"token"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Scope     string            `json:"scope,omitempty" yaml:"scope,omitempty"`
}

func newTokenCmd(opts *options) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect provider access tokens",
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Make sure the stored access token is usable, refreshing it if needed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireFlag(cmd, "user")
			if err != nil {
				return err
			}
			name, err := requireFlag(cmd, "provider")
			if err != nil {
				return err
			}
			provider, err := domain.ParseProviderID(name)
			if err != nil {
				return err
			}

			svc, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.close()

			cred, err := svc.manager.EnsureFresh(cmd.Context(), userID, provider)
			if err != nil {
				return fmt.Errorf("%s token for %s (%s): %w", provider, userID, domain.Classify(err), err)
			}

			return printObject(cmd.OutOrStdout(), opts.output, tokenStatus{
				User:      userID,
				Provider:  provider,
				Token:     log.RedactToken(cred.AccessToken),
				ExpiresAt: cred.AccessTokenExpiresAt,
				Scope:     cred.Scope,
			})
		},
	}
	checkCmd.Flags().String("user", "", "internal user id")
	checkCmd.Flags().String("provider", "", "provider (discord or kick)")

	tokenCmd.AddCommand(checkCmd)
	return tokenCmd
}
