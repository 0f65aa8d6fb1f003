package main

import (
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/deorganized/sessionkit/core"
)

func runCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep the session's access token fresh",
		Long: `Run holds the session open and refreshes the access token before it
expires, so other commands and scripts always find a usable token in
the store. Stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			state, err := a.manager.Restore(ctx)
			if err != nil {
				return err
			}
			if state != core.StateAuthenticated {
				return errors.New("not signed in, run \"sessionkit connect\"")
			}

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				srv := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						fmt.Printf("metrics server stopped: %s\n", err)
					}
				}()
				defer srv.Close()
			}

			fmt.Printf("Session held for %s, refreshing every %s\n",
				a.manager.CurrentUser().Username, a.cfg.RefreshInterval)

			a.manager.Run(ctx)

			if a.manager.State() != core.StateAuthenticated {
				return errors.New("session ended, run \"sessionkit connect\"")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9101)")

	return cmd
}
