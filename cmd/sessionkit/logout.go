package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Disconnect the wallet and clear the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			if _, err := a.manager.Restore(ctx); err != nil {
				return err
			}
			if err := a.manager.Logout(ctx); err != nil {
				return err
			}

			fmt.Println("Signed out")
			return nil
		},
	}
}
