package main

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/mediclaim/internal/app"
	"github.com/joseph-ayodele/mediclaim/internal/corpus"
)

type searchOptions struct {
	limit   int
	ranking string
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search <keyword>...",
		Short: "List corpus packages matching any of the keywords",
		Long: `Runs candidate retrieval without a model: a package matches when any keyword
occurs, case-insensitively, in its name, procedure or speciality. Results are
unique by package code and printed as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if opts.ranking != "" {
				cfg.Retrieval.Ranking = opts.ranking
			}
			_, r, err := app.NewSearch(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			packages := r.Search(args, opts.limit)
			if packages == nil {
				packages = []corpus.Record{}
			}
			return writeJSON(cmd.OutOrStdout(), packages)
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum results (default: retrieval.limit)")
	cmd.Flags().StringVar(&opts.ranking, "ranking", "", "ranking policy: discovery or hits (default: retrieval.ranking)")
	return cmd
}
