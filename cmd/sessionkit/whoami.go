package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deorganized/sessionkit/core"
)

func whoamiCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			state, err := a.manager.Restore(ctx)
			if err != nil {
				return err
			}
			if state != core.StateAuthenticated {
				return errors.New("not signed in, run \"sessionkit connect\"")
			}

			user := a.manager.CurrentUser()
			if refresh {
				user, err = a.manager.RefreshUser(ctx)
				if err != nil {
					if errors.Is(err, core.ErrSessionExpired) {
						return errors.New("session expired, run \"sessionkit connect\"")
					}
					return err
				}
			}

			fmt.Printf("Username:  %s\n", user.Username)
			fmt.Printf("Address:   %s\n", user.StacksAddress)
			fmt.Printf("Role:      %s\n", user.Role)
			fmt.Printf("Verified:  %t\n", user.IsVerified)
			fmt.Printf("Followers: %d\n", user.FollowerCount)
			fmt.Printf("Following: %d\n", user.FollowingCount)
			if user.Bio != "" {
				fmt.Printf("Bio:       %s\n", user.Bio)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-fetch the account from the server")

	return cmd
}
