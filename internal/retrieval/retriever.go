package retrieval

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/mediclaim/constants"
	"github.com/joseph-ayodele/mediclaim/internal/corpus"
)

// Retriever filters the corpus down to a bounded, code-unique candidate list.
// It holds no mutable state and is safe for concurrent use.
type Retriever struct {
	corpus       *corpus.Corpus
	ranking      string
	defaultLimit int
	logger       *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithRanking selects the ordering policy ("discovery" or "hits"). Blank keeps the default.
func WithRanking(policy string) Option {
	return func(r *Retriever) {
		if p := strings.ToLower(strings.TrimSpace(policy)); p != "" {
			r.ranking = p
		}
	}
}

// WithDefaultLimit sets the limit used when Search is called with limit <= 0.
func WithDefaultLimit(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.defaultLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRetriever builds a retriever over c.
func NewRetriever(c *corpus.Corpus, opts ...Option) (*Retriever, error) {
	r := &Retriever{
		corpus:       c,
		ranking:      constants.RankingDiscovery,
		defaultLimit: constants.DefaultCandidateLimit,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	switch r.ranking {
	case constants.RankingDiscovery, constants.RankingHits:
	default:
		return nil, fmt.Errorf("unknown ranking policy %q", r.ranking)
	}
	return r, nil
}

// Ranking returns the active ordering policy.
func (r *Retriever) Ranking() string { return r.ranking }

// Search returns records whose name, procedure or speciality contains any of the
// keywords (case-insensitive). Records without a code are never returned and the
// first record seen for a code wins. An empty keyword set returns nil without
// scanning.
func (r *Retriever) Search(keywords []string, limit int) []corpus.Record {
	terms := foldKeywords(keywords)
	if len(terms) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = r.defaultLimit
	}

	var out []corpus.Record
	if r.ranking == constants.RankingHits {
		out = r.searchByHits(terms, limit)
	} else {
		out = r.searchDiscovery(terms, limit)
	}

	r.logger.Debug("retrieval.search",
		zap.Strings("keywords", terms),
		zap.String("ranking", r.ranking),
		zap.Int("limit", limit),
		zap.Int("candidates", len(out)))
	return out
}

func (r *Retriever) searchDiscovery(terms []string, limit int) []corpus.Record {
	seen := make(map[string]struct{})
	var out []corpus.Record
	for _, rec := range r.corpus.Records() {
		if !rec.HasCode() {
			continue
		}
		if _, dup := seen[rec.Code]; dup {
			continue
		}
		if countHits(rec.SearchText(), terms) == 0 {
			continue
		}
		seen[rec.Code] = struct{}{}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out
}

type scored struct {
	rec  corpus.Record
	hits int
}

func (r *Retriever) searchByHits(terms []string, limit int) []corpus.Record {
	seen := make(map[string]struct{})
	var matches []scored
	for _, rec := range r.corpus.Records() {
		if !rec.HasCode() {
			continue
		}
		if _, dup := seen[rec.Code]; dup {
			continue
		}
		n := countHits(rec.SearchText(), terms)
		if n == 0 {
			continue
		}
		seen[rec.Code] = struct{}{}
		matches = append(matches, scored{rec: rec, hits: n})
	}

	slices.SortStableFunc(matches, func(a, b scored) int { return b.hits - a.hits })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]corpus.Record, len(matches))
	for i, m := range matches {
		out[i] = m.rec
	}
	return out
}

// countHits counts the distinct terms found in text.
func countHits(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

// foldKeywords folds keywords and drops blanks and duplicates, keeping first-seen order.
func foldKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		f := corpus.Fold(kw)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
