package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/mediclaim/internal/common"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "mediclaim:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "mediclaim",
		Short: "Analyze discharge summaries against the insurance package corpus",
		Long: `mediclaim extracts clinical keywords from a discharge summary, retrieves
candidate packages from the reference corpus and asks the model to choose among
them. Every recommended package code is guaranteed to come from the candidates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file (default $MEDICLAIM_CONFIG)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newSearchCmd(opts),
		newModelsCmd(opts),
	)
	return root
}

// load reads config and builds a console logger on stderr.
func (o *rootOptions) load() (*common.Config, *zap.Logger, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("MEDICLAIM_CONFIG")
	}
	cfg, err := common.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.Log.Level
	if o.verbose {
		level = "debug"
	}
	logger, err := common.NewLogger(level, "console")
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
