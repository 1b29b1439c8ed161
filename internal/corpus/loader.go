package corpus

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Source kinds understood by Load.
const (
	KindCSV      = "csv"
	KindTSV      = "tsv"
	KindXLSX     = "xlsx"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

// ErrUnknownSource is reported for sources whose kind cannot be detected.
var ErrUnknownSource = errors.New("unknown corpus source kind")

// Options configures how sources are read.
type Options struct {
	Columns Columns
	// Table is read from SQLite and Postgres sources.
	Table string
	// Sheet is read from XLSX sources; empty means the first sheet.
	Sheet string
}

func (o Options) withDefaults() Options {
	o.Columns = o.Columns.withDefaults()
	if strings.TrimSpace(o.Table) == "" {
		o.Table = "packages"
	}
	return o
}

// SourceStatus reports the outcome of loading one source.
type SourceStatus struct {
	Source      string `json:"source"`
	Kind        string `json:"kind,omitempty"`
	Loaded      bool   `json:"loaded"`
	Rows        int    `json:"rows"`
	SkippedRows int    `json:"skipped_rows,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Corpus is the immutable, in-memory union of all loaded sources in load order.
// It is safe for concurrent readers.
type Corpus struct {
	records []Record
	sources []SourceStatus
}

// New builds a corpus directly from records, preserving their order.
func New(records []Record) *Corpus {
	out := make([]Record, len(records))
	copy(out, records)
	for i := range out {
		out[i].index()
	}
	return &Corpus{records: out}
}

// Records returns the rows in load order. Callers must not modify the slice.
func (c *Corpus) Records() []Record {
	if c == nil {
		return nil
	}
	return c.records
}

// Len returns the number of loaded rows.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Sources returns the per-source load report.
func (c *Corpus) Sources() []SourceStatus {
	if c == nil {
		return nil
	}
	out := make([]SourceStatus, len(c.sources))
	copy(out, c.sources)
	return out
}

// table is the uniform shape every reader produces.
type table struct {
	header  []string
	rows    [][]string
	skipped int
}

// Load reads every source in order and concatenates their rows. A source that
// cannot be opened or parsed is skipped with a warning; Load never fails as a
// whole and may return an empty corpus.
func Load(ctx context.Context, sources []string, opts Options, logger *zap.Logger) *Corpus {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	c := &Corpus{}

	for _, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		start := time.Now()
		kind := DetectKind(src)
		status := SourceStatus{Source: displaySource(src, kind), Kind: kind}

		tbl, err := readSource(ctx, src, kind, opts)
		if err != nil {
			status.Error = err.Error()
			c.sources = append(c.sources, status)
			logger.Warn("corpus.source.skipped",
				zap.String("source", status.Source),
				zap.String("kind", kind),
				zap.Error(err))
			continue
		}

		records := buildRecords(tbl.header, tbl.rows, status.Source, opts.Columns)
		c.records = append(c.records, records...)
		status.Loaded = true
		status.Rows = len(records)
		status.SkippedRows = tbl.skipped
		c.sources = append(c.sources, status)

		logger.Info("corpus.source.loaded",
			zap.String("source", status.Source),
			zap.String("kind", kind),
			zap.Int("rows", status.Rows),
			zap.Int("skipped_rows", status.SkippedRows),
			zap.Duration("duration", time.Since(start)))
	}

	logger.Info("corpus.load.completed",
		zap.Int("sources", len(c.sources)),
		zap.Int("records", len(c.records)))
	return c
}

// DetectKind classifies a source by scheme or file extension. It returns "" when unknown.
func DetectKind(src string) string {
	lower := strings.ToLower(src)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return KindPostgres
	}
	switch filepath.Ext(lower) {
	case ".csv":
		return KindCSV
	case ".tsv", ".tab":
		return KindTSV
	case ".xlsx", ".xlsm":
		return KindXLSX
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite
	}
	return ""
}

func readSource(ctx context.Context, src, kind string, opts Options) (*table, error) {
	if kind != KindPostgres {
		info, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("stat source: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("source %q is a directory", src)
		}
	}

	switch kind {
	case KindCSV:
		return readDelimited(src, ',')
	case KindTSV:
		return readDelimited(src, '\t')
	case KindXLSX:
		return readXLSX(src, opts.Sheet)
	case KindSQLite:
		return readSQLite(ctx, src, opts.Table)
	case KindPostgres:
		return readPostgres(ctx, src, opts.Table)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, src)
	}
}

// displaySource strips credentials from DSNs so they never reach logs or prompts.
func displaySource(src, kind string) string {
	if kind != KindPostgres {
		return src
	}
	u, err := url.Parse(src)
	if err != nil {
		return "postgres"
	}
	return u.Redacted()
}
