package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"wayback-news/internal/app"
	"wayback-news/internal/keyword"
	"wayback-news/internal/normalize"
)

func newQueryCmd() *cobra.Command {
	var (
		timestamp   string
		keywords    string
		include     string
		sourceNames []string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run one search and print the JSON result",
		Long: `Query resolves the snapshot closest to --timestamp for each source and
prints the matching articles.

Examples:
  wayback-news query --timestamp "2020-01-02 03:04:05" --keywords climate,summit
  wayback-news query --timestamp 20200102 --keywords covid,election --include one --sources time,reuters`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := app.GracefulShutdown(rt.logger)
			defer cancel()
			ctx, cancelTimeout := context.WithTimeout(ctx, rt.cfg.GetRequestTimeout())
			defer cancelTimeout()

			res, err := rt.pipeline.Run(ctx, app.Request{
				Timestamp: timestamp,
				Keywords:  normalize.Keywords(keywords),
				Include:   include,
				Sources:   sourceNames,
			})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().StringVarP(&timestamp, "timestamp", "t", "", "timestamp, e.g. \"2020-01-02 03:04:05\" or 20200102")
	cmd.Flags().StringVarP(&keywords, "keywords", "k", "", "comma-separated keywords")
	cmd.Flags().StringVarP(&include, "include", "i", string(keyword.ModeAll), "match mode: all or one")
	cmd.Flags().StringSliceVarP(&sourceNames, "sources", "s", nil, "sources to search (default all)")
	_ = cmd.MarkFlagRequired("timestamp")

	return cmd
}
