package cmd

import (
	"fmt"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/spf13/cobra"
)

func newLinksCmd(opts *options) *cobra.Command {
	linksCmd := &cobra.Command{
		Use:     "links",
		Short:   "Manage a user's linked providers",
		Aliases: []string{"link"},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every provider and whether the user has linked it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireFlag(cmd, "user")
			if err != nil {
				return err
			}

			svc, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.close()

			summary, err := svc.registry.ListLinked(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("list links for %s: %w", userID, err)
			}
			return printObject(cmd.OutOrStdout(), opts.output, summary)
		},
	}
	listCmd.Flags().String("user", "", "internal user id")

	unlinkCmd := &cobra.Command{
		Use:   "unlink",
		Short: "Remove a provider link; the last linked provider cannot be removed",
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

			if err := svc.registry.Unlink(cmd.Context(), userID, provider); err != nil {
				return fmt.Errorf("unlink %s for %s: %w", provider, userID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unlinked %s from user %s\n", provider, userID)
			return nil
		},
	}
	unlinkCmd.Flags().String("user", "", "internal user id")
	unlinkCmd.Flags().String("provider", "", "provider to unlink (discord or kick)")

	linksCmd.AddCommand(listCmd, unlinkCmd)
	return linksCmd
}
