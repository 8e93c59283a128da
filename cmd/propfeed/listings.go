package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"propfeed/internal/bot"
	"propfeed/internal/catalog"
	"propfeed/internal/feed"
	"propfeed/internal/filter"
	"propfeed/internal/partition"
)

func (a *app) listingsCmd() *cobra.Command {
	var (
		bucket string
		pages  int
		search string
	)
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Print one bucket of listings",
		Long: `Fetch listing pages and print one bucket.

Buckets: sale, rent, featured. Pages are fetched in order and
deduplicated; fetching stops early once the catalog runs out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := partition.Parse(bucket)
			if err != nil {
				return err
			}
			q, err := filter.Parse(search)
			if err != nil {
				return fmt.Errorf("invalid search: %w", err)
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}

			var src feed.PageSource = a.client(cfg)
			if cfg.CatalogFeedURL != "" && a.baseURL == "" {
				src = catalog.NewFeedSource(cfg.CatalogFeedURL, a.httpClientOrDefault(cfg), a.logger())
			}

			agg := feed.New(src, a.logger(), feed.WithPageSize(cfg.PageSize), feed.WithDebounce(0))
			defer agg.Close()

			if err := agg.Refresh(cmd.Context()); err != nil {
				return err
			}
			for i := 1; i < pages; i++ {
				if !agg.LoadMore() {
					break
				}
				agg.Wait()
			}

			bk := agg.Bucket(name)
			if bk.LastError != nil {
				return bk.LastError
			}
			fmt.Fprintln(cmd.OutOrStdout(), bot.FormatBucket(name, bk, 0, q, money(cfg)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&bucket, "bucket", "b", string(partition.Sale), "bucket to print")
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "number of pages to fetch")
	cmd.Flags().StringVarP(&search, "search", "s", "", "search terms")
	return cmd
}
