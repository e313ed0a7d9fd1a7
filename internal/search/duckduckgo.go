package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/worker"
)

const (
	defaultEndpoint = "https://html.duckduckgo.com/html/"
	maxResultsBytes = 2 << 20
)

// DuckDuckGo searches the DuckDuckGo HTML endpoint
type DuckDuckGo struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	limiter    *worker.HostLimiter
	authority  *AuthorityClassifier
	logger     *zap.Logger
}

// NewDuckDuckGo creates a searcher from cfg. limiter and authority may be nil.
func NewDuckDuckGo(cfg model.SearchConfig, httpClient *http.Client, limiter *worker.HostLimiter, authority *AuthorityClassifier, logger *zap.Logger) *DuckDuckGo {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &DuckDuckGo{
		endpoint:   endpoint,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		limiter:    limiter,
		authority:  authority,
		logger:     logging.OrNop(logger),
	}
}

// Search returns up to n cleaned result snippets, primary sources first
func (d *DuckDuckGo) Search(ctx context.Context, query string, n int) ([]model.Evidence, error) {
	query = strings.TrimSpace(query)
	if query == "" || n <= 0 {
		return nil, nil
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, d.endpoint, 0); err != nil {
			return nil, err
		}
	}

	reqURL := d.endpoint + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	results, err := ParseResults(io.LimitReader(resp.Body, maxResultsBytes))
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	evidence := make([]model.Evidence, 0, n)
	for _, r := range results {
		paragraphs := Prettify(r.Snippet, 1)
		if len(paragraphs) == 0 {
			continue
		}
		evidence = append(evidence, model.Evidence{
			Text:   paragraphs[0],
			URL:    r.URL,
			Origin: model.OriginSearch,
		})
		if len(evidence) == n {
			break
		}
	}

	if d.authority != nil {
		d.authority.Annotate(evidence)
		SortByAuthority(evidence)
	}

	d.logger.Debug("search complete",
		zap.String("query", query),
		zap.Int("results", len(results)),
		zap.Int("evidence", len(evidence)),
	)

	return evidence, nil
}

// Result is one organic hit from a results page
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// ParseResults extracts organic results from a DuckDuckGo HTML page, skipping ads
func ParseResults(r io.Reader) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var results []Result
	current := -1

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result--ad"):
				return
			case hasClass(n, "result__a"):
				results = append(results, Result{
					Title: nodeText(n),
					URL:   resolveLink(attr(n, "href")),
				})
				current = len(results) - 1
				return
			case hasClass(n, "result__snippet"):
				if current >= 0 && results[current].Snippet == "" {
					results[current].Snippet = nodeText(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// Drop hits that never got a snippet
	out := results[:0]
	for _, r := range results {
		if r.Snippet != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// resolveLink unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...)
func resolveLink(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
