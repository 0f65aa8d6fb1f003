package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deorganized/sessionkit/core"
)

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token",
		Long: `Token prints a bearer token for scripting against the API. An
expiring stored token is refreshed transparently before printing.`,
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

			access, err := a.manager.ValidAccessToken(ctx)
			if err != nil {
				if errors.Is(err, core.ErrNoSession) || errors.Is(err, core.ErrSessionExpired) {
					return errors.New("not signed in, run \"sessionkit connect\"")
				}
				return err
			}

			fmt.Println(access)
			return nil
		},
	}
}
