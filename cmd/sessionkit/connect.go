package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deorganized/sessionkit/core"
)

func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect a Stacks wallet and sign in",
		Long: `Connect asks the wallet bridge to open the wallet UI, waits for the
user to approve, and signs in. A wallet without an account is held as
pending; run "sessionkit setup" to create the account.`,
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
			if state == core.StateAuthenticated {
				user := a.manager.CurrentUser()
				fmt.Printf("Already signed in as %s\n", user.Username)
				return nil
			}

			fmt.Println("Waiting for wallet approval...")
			result, err := a.manager.ConnectWallet(ctx)
			if err != nil {
				return err
			}

			if result.Identity.BNSName != "" {
				fmt.Printf("Connected %s (%s)\n", result.Identity.Address, result.Identity.BNSName)
			} else {
				fmt.Printf("Connected %s\n", result.Identity.Address)
			}

			if result.Route == core.RouteSetup {
				fmt.Println("No account yet. Run \"sessionkit setup --username <name>\" to create one.")
				return nil
			}

			fmt.Printf("Signed in as %s\n", result.User.Username)
			return nil
		},
	}
}
