package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/threadwarden/internal/config"
)

func newHealthcheckCommand() *cobra.Command {
	var (
		ready   bool
		port    int
		host    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local /healthz (or /readyz) endpoint",
		Long:  "Exits 0 when the running daemon answers 200. Suitable as a container HEALTHCHECK.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/healthz"
			mode := "live"
			if ready {
				path = "/readyz"
				mode = "ready"
			}

			url := fmt.Sprintf("http://%s:%d%s", host, port, path)
			client := http.Client{Timeout: timeout}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return withExitCode(1, err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return withExitCode(1, fmt.Errorf("healthcheck failed (network): %w", err))
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return withExitCode(1, fmt.Errorf("healthcheck failed (status): %s", resp.Status))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Healthcheck successful (%s)\n", mode)
			return nil
		},
	}

	cmd.Flags().BoolVar(&ready, "ready", false, "check readiness instead of liveness")
	cmd.Flags().IntVar(&port, "port", config.ParseInt("PORT", config.Defaults().HTTP.Port), "HTTP port of the daemon")
	cmd.Flags().StringVar(&host, "host", "localhost", "host the daemon listens on")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}
