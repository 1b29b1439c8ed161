package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/mediclaim/internal/llm/gemini"
)

func newModelsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List Gemini models available to the configured key that support generateContent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cfg.LLM.Provider != "gemini" {
				return fmt.Errorf("models lists Gemini models; llm.provider is %q", cfg.LLM.Provider)
			}
			client, err := gemini.NewClient(cmd.Context(), gemini.Config{APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model}, logger)
			if err != nil {
				return err
			}
			models, err := client.ListGenerativeModels(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDISPLAY NAME")
			for _, m := range models {
				fmt.Fprintf(tw, "%s\t%s\n", m.Name, m.DisplayName)
			}
			return tw.Flush()
		},
	}
}
