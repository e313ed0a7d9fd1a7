package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/ppiankov/veritas/internal/cache"
	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/search"
	"github.com/ppiankov/veritas/internal/textract"
	"github.com/ppiankov/veritas/internal/util"
	"github.com/ppiankov/veritas/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids reading a page
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Page is the readable text of one linked page
type Page struct {
	URL      string `json:"url"`
	FinalURL string `json:"final_url"`
	Title    string `json:"title,omitempty"`
	Text     string `json:"text"`
}

// PageReader turns URLs mentioned in a submission into evidence
type PageReader struct {
	fetcher   *Fetcher
	robots    *util.RobotsChecker
	limiter   *worker.HostLimiter
	authority *search.AuthorityClassifier
	cache     cache.Cache
	maxPages  int
	maxChars  int
	logger    *zap.Logger
}

// ReaderDeps are the optional collaborators of a PageReader
type ReaderDeps struct {
	Robots    *util.RobotsChecker // nil = robots.txt not consulted
	Limiter   *worker.HostLimiter
	Authority *search.AuthorityClassifier
	Cache     cache.Cache
	Logger    *zap.Logger
}

// NewPageReader creates a reader over fetcher
func NewPageReader(cfg model.FetchConfig, fetcher *Fetcher, deps ReaderDeps) *PageReader {
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 3
	}
	maxChars := cfg.MaxTextChars
	if maxChars <= 0 {
		maxChars = 4000
	}

	return &PageReader{
		fetcher:   fetcher,
		robots:    deps.Robots,
		limiter:   deps.Limiter,
		authority: deps.Authority,
		cache:     deps.Cache,
		maxPages:  maxPages,
		maxChars:  maxChars,
		logger:    logging.OrNop(deps.Logger),
	}
}

// Evidence reads up to maxPages URLs found in text. Pages that fail are
// skipped; their errors are joined into the returned error.
func (r *PageReader) Evidence(ctx context.Context, text string) ([]model.Evidence, error) {
	urls := llm.ExtractURLs(text)
	if len(urls) > r.maxPages {
		urls = urls[:r.maxPages]
	}

	var (
		evidence []model.Evidence
		errs     []error
	)
	for _, u := range urls {
		page, err := r.Read(ctx, u)
		if err != nil {
			r.logger.Warn("linked page skipped", zap.String("url", u), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
			continue
		}
		if page.Text == "" {
			continue
		}
		evidence = append(evidence, model.Evidence{
			Text:   page.Text,
			URL:    page.URL,
			Origin: model.OriginLinkedPage,
		})
	}

	if r.authority != nil {
		r.authority.Annotate(evidence)
	}
	return evidence, errors.Join(errs...)
}

// Read returns the readable text of one page, from cache when possible
func (r *PageReader) Read(ctx context.Context, rawURL string) (*Page, error) {
	key := cache.Key("page", rawURL)
	var cached Page
	if cache.GetJSON(r.cache, key, &cached) {
		return &cached, nil
	}

	var delay time.Duration
	if r.robots != nil {
		allowed, crawlDelay, err := r.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrDisallowed
		}
		delay = crawlDelay
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, rawURL, delay); err != nil {
			return nil, err
		}
	}

	result, err := r.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	page, err := readable(result)
	if err != nil {
		return nil, err
	}
	page.URL = rawURL
	page.Text = truncate(page.Text, r.maxChars)

	if err := cache.SetJSON(r.cache, key, page, 0); err != nil {
		r.logger.Warn("page cache write failed", zap.Error(err))
	}
	return page, nil
}

// readable extracts the main text of a fetched page
func readable(result *FetchResult) (*Page, error) {
	mediaType, _, _ := mime.ParseMediaType(result.ContentType)
	page := &Page{FinalURL: result.FinalURL}

	switch {
	case mediaType == "text/plain":
		page.Text = collapse(string(result.Body))
		return page, nil
	case mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml":
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}

	finalURL, err := url.Parse(result.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("parse final URL: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(result.Body), finalURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		page.Title = strings.TrimSpace(article.Title)
		page.Text = collapse(article.TextContent)
		return page, nil
	}

	// Pages readability cannot score still have visible text
	doc, perr := html.Parse(bytes.NewReader(result.Body))
	if perr != nil {
		return nil, fmt.Errorf("parse content: %w", errors.Join(err, perr))
	}
	page.Text = collapse(textract.VisibleText(doc))
	return page, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n runes, preferring a word boundary
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
