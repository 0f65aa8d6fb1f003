package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deorganized/sessionkit/core"
	"github.com/deorganized/sessionkit/service"
)

func setupCmd() *cobra.Command {
	var form service.SetupForm
	var role string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the account for the pending wallet",
		Long: `Setup finishes registration for a wallet that "sessionkit connect"
reported as new. Field errors from the server are printed per field so
the flags can be corrected and the command re-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			form.Role = core.Role(role)
			if !form.Role.Valid() {
				return fmt.Errorf("invalid role %q, want %q or %q", role, core.RoleUser, core.RoleCreator)
			}

			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			user, err := a.manager.CompleteSetup(cmd.Context(), form)
			if err != nil {
				var valErr *core.ValidationError
				if errors.As(err, &valErr) {
					for field, messages := range valErr.Fields {
						for _, msg := range messages {
							fmt.Printf("  %s: %s\n", field, msg)
						}
					}
					return errors.New("the server rejected the form, fix the fields above and retry")
				}
				if errors.Is(err, core.ErrNoPendingWallet) {
					return errors.New("no pending wallet, run \"sessionkit connect\" first")
				}
				return err
			}

			fmt.Printf("Account created, signed in as %s (%s)\n", user.Username, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(core.RoleUser), "Account role: user or creator")
	cmd.Flags().StringVar(&form.Username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&form.Bio, "bio", "", "Profile bio")
	cmd.Flags().StringVar(&form.Website, "website", "", "Website URL")
	cmd.Flags().StringVar(&form.Twitter, "twitter", "", "Twitter handle")
	cmd.Flags().StringVar(&form.Instagram, "instagram", "", "Instagram handle")
	cmd.Flags().StringVar(&form.YouTube, "youtube", "", "YouTube channel")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}
