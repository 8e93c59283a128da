// Command propfeed browses catalog listings and bids from the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"propfeed/internal/catalog"
	"propfeed/internal/config"
	"propfeed/internal/currency"
)

// app carries what the commands share.
type app struct {
	httpClient catalog.HTTPClient
	baseURL    string
	verbose    bool
	log        *slog.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "propfeed",
		Short:         "Browse property listings and bids",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			lvl := slog.LevelWarn
			if a.verbose {
				lvl = slog.LevelDebug
			}
			a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
		},
	}
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "catalog API base URL (default: $CATALOG_BASE_URL)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log requests")

	root.AddCommand(
		a.listingsCmd(),
		a.bidsCmd(),
		a.bidCmd(),
		formatCmd(),
	)
	return root
}

// config returns the configuration for catalog commands. --base-url skips
// the environment entirely.
func (a *app) config() (*config.Config, error) {
	if a.baseURL != "" {
		cfg := config.Default()
		cfg.CatalogBaseURL = a.baseURL
		return cfg, nil
	}
	return config.Load()
}

func (a *app) client(cfg *config.Config) *catalog.Client {
	return catalog.New(cfg.CatalogBaseURL, a.httpClientOrDefault(cfg), a.logger(), catalog.WithRetries(cfg.HTTPRetries))
}

func (a *app) httpClientOrDefault(cfg *config.Config) catalog.HTTPClient {
	if a.httpClient != nil {
		return a.httpClient
	}
	return &http.Client{Timeout: cfg.HTTPTimeout}
}

func (a *app) logger() *slog.Logger {
	if a.log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.log
}

func money(cfg *config.Config) currency.Formatter {
	return currency.Formatter{ThousandLabel: cfg.ThousandLabel}
}
