/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/worldview-app/apiserver/config"
	"github.com/worldview-app/apiserver/internal/cache"
	"github.com/worldview-app/apiserver/internal/countries"
	"github.com/worldview-app/apiserver/internal/server"
	"github.com/worldview-app/apiserver/internal/storage"
)

var snapshotPrefix string

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "Query and archive country data",
}

var countriesGetCmd = &cobra.Command{
	Use:       "get all|name|region|alpha [value]",
	Short:     "Fetch countries through the configured cache and print JSON",
	ValidArgs: []string{countries.QueryAll, countries.QueryName, countries.QueryRegion, countries.QueryAlpha},
	Args:      cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()
		client, closeCache, err := newCountryClient(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeCache()

		value := ""
		if len(args) == 2 {
			value = args[1]
		}
		payload, err := queryCountries(cmd.Context(), client, args[0], value)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), payload)
	},
}

var countriesSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Upload the full country list to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()
		ctx := cmd.Context()

		client, closeCache, err := newCountryClient(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeCache()
		payload, err := client.All(ctx)
		if err != nil {
			return err
		}

		backend, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		snapshot, err := storage.NewSnapshotStore(backend, snapshotPrefix).Save(ctx, payload)
		if err != nil {
			return err
		}

		logger.Info("snapshot stored",
			slog.String("bucket", snapshot.Bucket),
			slog.String("key", snapshot.Key),
			slog.Int("bytes", snapshot.Size),
		)
		return nil
	},
}

var countriesLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the most recent stored snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _ := loadRuntime()
		backend, err := storage.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		payload, err := storage.NewSnapshotStore(backend, snapshotPrefix).Latest(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), payload)
	},
}

func init() {
	rootCmd.AddCommand(countriesCmd)
	countriesCmd.AddCommand(countriesGetCmd, countriesSnapshotCmd)
	countriesSnapshotCmd.AddCommand(countriesLatestCmd)
	countriesSnapshotCmd.PersistentFlags().StringVar(&snapshotPrefix, "prefix", "countries", "object key prefix for snapshots")
}

// newCountryClient builds a client over the configured cache. The returned
// func releases the cache connection, if any.
func newCountryClient(ctx context.Context, cfg config.Config, logger *slog.Logger) (*countries.Client, func(), error) {
	responseCache, err := server.NewCache(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, nil, err
	}
	client := countries.NewClient(
		cfg.Countries.BaseURL,
		responseCache,
		countries.WithCacheTTL(cfg.Countries.CacheTTL),
		countries.WithHTTPClient(&http.Client{Timeout: cfg.Countries.HTTPTimeout}),
	)
	return client, cacheCloser(responseCache, logger), nil
}

func cacheCloser(responseCache cache.Cache, logger *slog.Logger) func() {
	closer, ok := responseCache.(io.Closer)
	if !ok {
		return func() {}
	}
	return func() {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close cache", slog.Any("error", err))
		}
	}
}

func queryCountries(ctx context.Context, client *countries.Client, query, value string) (json.RawMessage, error) {
	switch query {
	case countries.QueryAll:
		return client.All(ctx)
	case countries.QueryName:
		return client.ByName(ctx, value)
	case countries.QueryRegion:
		return client.ByRegion(ctx, value)
	case countries.QueryAlpha:
		return client.ByCode(ctx, value)
	default:
		return nil, fmt.Errorf("unknown query %q", query)
	}
}

func printJSON(w io.Writer, payload json.RawMessage) error {
	var out bytes.Buffer
	if err := json.Indent(&out, payload, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}
