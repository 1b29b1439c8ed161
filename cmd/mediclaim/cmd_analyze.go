package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/mediclaim/internal/app"
	"github.com/joseph-ayodele/mediclaim/internal/ingest"
	"github.com/joseph-ayodele/mediclaim/internal/pipeline"
)

type analyzeOptions struct {
	xlsx       string
	full       bool
	skipHidden bool
}

type batchEntry struct {
	Path        string             `json:"path"`
	SHA256      string             `json:"sha256,omitempty"`
	DuplicateOf string             `json:"duplicate_of,omitempty"`
	Analysis    *pipeline.Analysis `json:"analysis,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file-or-dir>",
		Short: "Analyze a discharge summary (pdf, jpeg, png) or every one under a directory",
		Long: `Runs keyword extraction, candidate retrieval and constrained reasoning over
the document and prints the analysis as JSON.

For a directory, each accepted document is analyzed in turn; failures are
reported per file and do not stop the batch. Byte-identical documents are
analyzed once; later copies are reported as duplicates of the first. With
--xlsx, a single file writes the workbook to the given path and a directory
writes one workbook per document into the given directory, mirroring the
document's path relative to the scanned root (a/x.pdf becomes a/x.pdf.xlsx).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.xlsx, "xlsx", "", "also write the analysis as an XLSX workbook")
	cmd.Flags().BoolVar(&opts.full, "full", false, "include keywords and candidates in the output")
	cmd.Flags().BoolVar(&opts.skipHidden, "skip-hidden", true, "skip hidden files and directories when analyzing a directory")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, target string) error {
	cfg, logger, err := root.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !info.IsDir() {
		doc, err := ingest.ReadDocument(target)
		if err != nil {
			return err
		}
		res, err := a.Processor.Analyze(ctx, doc)
		if err != nil {
			return err
		}
		if opts.xlsx != "" {
			if err := writeWorkbook(a, res, opts.xlsx); err != nil {
				return err
			}
		}
		if opts.full {
			return writeJSON(out, res)
		}
		return writeJSON(out, res.Result)
	}

	files, stats, err := ingest.ScanDirectory(target, opts.skipHidden)
	if err != nil {
		return err
	}
	logger.Info("cli.analyze.scan",
		zap.String("root", target),
		zap.Uint32("scanned", stats.Scanned),
		zap.Uint32("matched", stats.Matched),
		zap.Uint32("failed", stats.Failed),
	)
	if opts.xlsx != "" {
		if err := os.MkdirAll(opts.xlsx, 0o755); err != nil {
			return err
		}
	}

	entries := make([]batchEntry, 0, len(files))
	seen := make(map[string]string, len(files))
	failed := 0
	for _, f := range files {
		entry := batchEntry{Path: f.Path, SHA256: f.HashHex}
		if f.Err != "" {
			entry.Error = f.Err
			entries = append(entries, entry)
			failed++
			continue
		}
		if first, ok := seen[f.HashHex]; ok {
			logger.Info("cli.analyze.duplicate", zap.String("path", f.Path), zap.String("duplicate_of", first))
			entry.DuplicateOf = first
			entries = append(entries, entry)
			continue
		}
		seen[f.HashHex] = f.Path

		res, err := analyzeFile(cmd, a, f.Path)
		if err != nil {
			logger.Warn("cli.analyze.file_failed", zap.String("path", f.Path), zap.Error(err))
			entry.Error = err.Error()
			failed++
		} else {
			entry.Analysis = res
			if opts.xlsx != "" {
				if err := writeBatchWorkbook(a, res, target, f.Path, opts.xlsx); err != nil {
					entry.Error = err.Error()
					failed++
				}
			}
		}
		entries = append(entries, entry)
	}

	if err := writeJSON(out, entries); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(files))
	}
	return nil
}

func analyzeFile(cmd *cobra.Command, a *app.App, path string) (*pipeline.Analysis, error) {
	doc, err := ingest.ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return a.Processor.Analyze(cmd.Context(), doc)
}

// writeBatchWorkbook writes the workbook for path under outDir, keeping the
// document's location relative to root and its extension so names never collide.
func writeBatchWorkbook(a *app.App, res *pipeline.Analysis, root, path, outDir string) error {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(path)
	}
	dest := filepath.Join(outDir, rel+".xlsx")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return writeWorkbook(a, res, dest)
}

func writeWorkbook(a *app.App, res *pipeline.Analysis, path string) error {
	b, err := a.Exporter.AnalysisXLSX(res)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
