package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pact/internal/httpapi"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or invalidate the query cache of a running `pact serve`",
	}
	cacheCmd.PersistentFlags().StringVar(&addr, "addr", "", "Server address (default api.bind)")

	baseURL := func() (string, error) {
		target := strings.TrimSpace(addr)
		if target == "" {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return "", err
			}
			target = cfg.API.Bind
		}
		if !strings.Contains(target, "://") {
			target = "http://" + target
		}
		return strings.TrimRight(target, "/"), nil
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "invalidate",
		Short: "Drop every cached result and reload metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := baseURL()
			if err != nil {
				return err
			}
			var resp httpapi.InvalidateResponse
			if err := callServer(cmd, http.MethodPost, base+"/v1/cache/invalidate", &resp); err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache invalidated (generation %d)\n", resp.Cache.Generation)
			if resp.Warning != "" {
				fmt.Fprintf(out, "Warning: %s\n", resp.Warning)
			}
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := baseURL()
			if err != nil {
				return err
			}
			var resp httpapi.HealthResponse
			if err := callServer(cmd, http.MethodGet, base+"/v1/health", &resp); err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:    %s\n", resp.SessionID)
			fmt.Fprintf(out, "Entries:    %d\n", resp.Cache.Entries)
			fmt.Fprintf(out, "Hits:       %d\n", resp.Cache.Hits)
			fmt.Fprintf(out, "Misses:     %d\n", resp.Cache.Misses)
			fmt.Fprintf(out, "Generation: %d\n", resp.Cache.Generation)
			return nil
		},
	})

	return cacheCmd
}

func callServer(cmd *cobra.Command, method, url string, into any) error {
	req, err := http.NewRequestWithContext(cmd.Context(), method, url, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("contact pact server: %w; is `pact serve` running?", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr httpapi.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("pact server: %s", apiErr.Error)
		}
		return fmt.Errorf("pact server: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode server response: %w", err)
	}
	return nil
}
