// Package search gathers web evidence for claims
package search

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/ppiankov/veritas/internal/cache"
	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
)

// Searcher returns up to n evidence snippets for a query
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]model.Evidence, error)
}

// ChunkSize is the widest paragraph Prettify produces
const ChunkSize = 1000

// Prettify wraps text into paragraphs of at most ChunkSize characters, keeping
// the first maxChunks (all when maxChunks <= 0). Each paragraph keeps only
// letters, digits and single spaces.
func Prettify(text string, maxChunks int) []string {
	var paragraphs []string
	for _, chunk := range wrap(text, ChunkSize) {
		if maxChunks > 0 && len(paragraphs) == maxChunks {
			break
		}
		if cleaned := clean(chunk); cleaned != "" {
			paragraphs = append(paragraphs, cleaned)
		}
	}
	return paragraphs
}

// wrap splits text on whitespace into lines no wider than width runes.
// Words longer than width are broken.
func wrap(text string, width int) []string {
	var (
		lines []string
		line  []rune
	)
	flush := func() {
		if len(line) > 0 {
			lines = append(lines, string(line))
			line = line[:0]
		}
	}

	for _, word := range strings.Fields(text) {
		w := []rune(word)
		for len(w) > width {
			flush()
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		if len(line) > 0 && len(line)+1+len(w) > width {
			flush()
		}
		if len(line) > 0 {
			line = append(line, ' ')
		}
		line = append(line, w...)
	}
	flush()

	return lines
}

func clean(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// Cached memoizes a Searcher's successful, non-empty results
type Cached struct {
	inner  Searcher
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps inner. ttl 0 uses the cache's default.
func NewCached(inner Searcher, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Cached {
	if c == nil {
		c = cache.Nop{}
	}
	return &Cached{inner: inner, cache: c, ttl: ttl, logger: logging.OrNop(logger)}
}

// Search returns the cached result for (query, n) or asks the wrapped searcher
func (c *Cached) Search(ctx context.Context, query string, n int) ([]model.Evidence, error) {
	key := cache.Key("search", strings.TrimSpace(query), strconv.Itoa(n))

	var evidence []model.Evidence
	if cache.GetJSON(c.cache, key, &evidence) {
		c.logger.Debug("search cache hit", zap.String("query", query))
		return evidence, nil
	}

	evidence, err := c.inner.Search(ctx, query, n)
	if err != nil || len(evidence) == 0 {
		return evidence, err
	}

	if err := cache.SetJSON(c.cache, key, evidence, c.ttl); err != nil {
		c.logger.Warn("search cache write failed", zap.Error(err))
	}
	return evidence, nil
}
