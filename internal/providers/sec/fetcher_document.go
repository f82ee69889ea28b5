package sec

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/filingret/internal/infra"
	"github.com/seenimoa/filingret/internal/provider"
)

// maxSectionChars bounds an extracted section; anything longer is almost
// always a missed end heading swallowing the rest of the document.
const maxSectionChars = 120_000

// ---- FilingDocument fetcher ----
// Downloads a filing's primary HTML document and extracts its plain text
// plus the MD&A and Risk Factors sections.

type filingDocumentFetcher struct {
	provider.BaseFetcher
	client *edgarClient
}

func newFilingDocumentFetcher(c *edgarClient, limiter *infra.RateLimiter) *filingDocumentFetcher {
	return &filingDocumentFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.FetcherSpec{
			Model:       provider.ModelFilingDocument,
			Description: "Plain text and key sections of a filing's primary document",
			Required:    []string{provider.ParamURL},
			CacheTTL:    time.Hour,
			Limiter:     limiter,
		}),
		client: c,
	}
}

func (f *filingDocumentFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	u := f.client.rebase(params[provider.ParamURL])
	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return newCachedResult(cached), nil
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	data, err := f.client.fetchRaw(ctx, u, "text/html")
	if err != nil {
		return nil, fmt.Errorf("sec filing document: %w", err)
	}
	text, err := documentText(data)
	if err != nil {
		return nil, fmt.Errorf("parse filing document %s: %w", u, err)
	}

	doc := &provider.FilingText{
		URL:         u,
		Text:        text,
		MDA:         extractSection(text, reMDAStart),
		RiskFactors: extractSection(text, reRiskStart),
	}
	f.CacheSet(cacheKey, doc)
	return newResult(doc), nil
}

// rebase points archive URLs at the configured www host so tests and
// mirrors can serve them.
func (c *edgarClient) rebase(u string) string {
	const public = "https://www.sec.gov"
	if c.opts.WWWURL != public && strings.HasPrefix(u, public) {
		return c.opts.WWWURL + strings.TrimPrefix(u, public)
	}
	return u
}

var (
	reBlankRun  = regexp.MustCompile(`[ \t\x{00a0}]+`)
	reMDAStart  = regexp.MustCompile(`(?im)^\s*item\s*[27]\s*[.:]?\s*management.{0,3}s\s+discussion`)
	reRiskStart = regexp.MustCompile(`(?im)^\s*item\s*1a\s*[.:]?\s*risk\s+factors`)
	reItemStart = regexp.MustCompile(`(?im)^\s*item\s*\d+[a-z]?\s*[.:]`)
)

// documentText renders HTML to newline-separated plain text. Inline XBRL
// headers and scripts are dropped.
func documentText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, head, ix\\:header").Remove()
	doc.Find("p, div, br, tr, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.TrimSpace(reBlankRun.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// extractSection returns the longest span that starts at a heading matching
// start and runs to the next "Item N." heading. The table of contents also
// matches start but yields a short span, so the longest candidate wins.
func extractSection(text string, start *regexp.Regexp) string {
	best := ""
	for _, loc := range start.FindAllStringIndex(text, -1) {
		body := text[loc[1]:]
		end := len(body)
		if next := reItemStart.FindStringIndex(body); next != nil {
			end = next[0]
		}
		section := strings.TrimSpace(text[loc[0] : loc[1]+end])
		if len(section) > len(best) {
			best = section
		}
	}
	if len(best) > maxSectionChars {
		best = best[:maxSectionChars]
	}
	return best
}
