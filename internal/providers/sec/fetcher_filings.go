package sec

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/filingret/internal/infra"
	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/models"
)

const defaultForms = "10-Q,10-K"

// parseForms splits a comma-separated form_type parameter.
func parseForms(s string) map[string]bool {
	if strings.TrimSpace(s) == "" {
		s = defaultForms
	}
	forms := make(map[string]bool)
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
			forms[f] = true
		}
	}
	return forms
}

func sortFilings(filings []models.FilingRecord) {
	sort.SliceStable(filings, func(i, j int) bool {
		return filings[i].FilingDate.Before(filings[j].FilingDate)
	})
}

// ---- SecFiling fetcher ----
// Retrieves a company's periodic filings from the EDGAR submissions API,
// following overflow pages when the requested window reaches past "recent".

type secFilingFetcher struct {
	provider.BaseFetcher
	client *edgarClient
}

func newSecFilingFetcher(c *edgarClient, limiter *infra.RateLimiter) *secFilingFetcher {
	return &secFilingFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.FetcherSpec{
			Model:       provider.ModelSecFiling,
			Description: "Periodic (10-Q/10-K) filings for a ticker from the EDGAR submissions API",
			Required:    []string{provider.ParamSymbol},
			Optional:    []string{provider.ParamCIK, provider.ParamFormType, provider.ParamStartDate, provider.ParamEndDate, provider.ParamLimit},
			CacheTTL:    30 * time.Minute,
			Limiter:     limiter,
		}),
		client: c,
	}
}

func (f *secFilingFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	symbol := strings.ToUpper(params[provider.ParamSymbol])
	since, err := params.Date(provider.ParamStartDate, time.Time{})
	if err != nil {
		return nil, err
	}
	until, err := params.Date(provider.ParamEndDate, time.Time{})
	if err != nil {
		return nil, err
	}
	limit, err := params.Int(provider.ParamLimit)
	if err != nil {
		return nil, err
	}
	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return newCachedResult(cached), nil
	}

	cik := params[provider.ParamCIK]
	if cik == "" {
		if err := f.RateLimit(ctx); err != nil {
			return nil, err
		}
		resolved, _, err := f.client.resolveCIK(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("sec filing resolve CIK for %s: %w", symbol, err)
		}
		cik = resolved
	}
	cik = padCIK(cik)

	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/submissions/CIK%s.json", f.client.opts.DataURL, cik)
	var resp edgarSubmissionsResponse
	if err := f.client.fetchJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("sec filing submissions for %s: %w", symbol, err)
	}

	forms := parseForms(params[provider.ParamFormType])
	filings := resp.Filings.Recent.records(symbol, cik, resp.Name, forms, since, until)

	// Older filings live in overflow pages; only fetch those overlapping the window.
	for _, page := range resp.Filings.Files {
		if !since.IsZero() {
			if to := parseSECDate(page.FilingTo); !to.IsZero() && to.Before(since) {
				continue
			}
		}
		if !until.IsZero() {
			if from := parseSECDate(page.FilingFrom); !from.IsZero() && from.After(until) {
				continue
			}
		}
		if err := f.RateLimit(ctx); err != nil {
			return nil, err
		}
		var set edgarFilingSet
		if err := f.client.fetchJSON(ctx, f.client.opts.DataURL+"/submissions/"+page.Name, &set); err != nil {
			return nil, fmt.Errorf("sec filing page %s: %w", page.Name, err)
		}
		filings = append(filings, set.records(symbol, cik, resp.Name, forms, since, until)...)
	}

	sortFilings(filings)
	if limit > 0 && len(filings) > limit {
		filings = filings[len(filings)-limit:]
	}

	f.CacheSet(cacheKey, filings)
	return newResult(filings), nil
}

// ---- CompanyFilings fetcher ----
// Reads the browse-edgar Atom feed of a company's filings. Useful when the
// submissions API is unavailable; carries no primary document name.

type companyFilingsFetcher struct {
	provider.BaseFetcher
	client *edgarClient
}

func newCompanyFilingsFetcher(c *edgarClient, limiter *infra.RateLimiter) *companyFilingsFetcher {
	return &companyFilingsFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.FetcherSpec{
			Model:       provider.ModelCompanyFilings,
			Description: "Company filings from the EDGAR browse Atom feed",
			Required:    []string{provider.ParamSymbol},
			Optional:    []string{provider.ParamCIK, provider.ParamFormType, provider.ParamStartDate, provider.ParamLimit},
			CacheTTL:    30 * time.Minute,
			Limiter:     limiter,
		}),
		client: c,
	}
}

var (
	reFeedFilingDate = regexp.MustCompile(`<filing-date>\s*(\d{4}-\d{2}-\d{2})\s*</filing-date>`)
	reFeedAccession  = regexp.MustCompile(`(\d{10}-\d{2}-\d{6})`)
)

func (f *companyFilingsFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	if err := provider.ValidateParams(params, f.RequiredParams()); err != nil {
		return nil, err
	}
	symbol := strings.ToUpper(params[provider.ParamSymbol])
	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return newCachedResult(cached), nil
	}

	cik := params[provider.ParamCIK]
	if cik == "" {
		if err := f.RateLimit(ctx); err != nil {
			return nil, err
		}
		resolved, _, err := f.client.resolveCIK(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("sec company filings resolve CIK for %s: %w", symbol, err)
		}
		cik = resolved
	}
	cik = padCIK(cik)

	forms := parseForms(params[provider.ParamFormType])
	since, err := params.Date(provider.ParamStartDate, time.Time{})
	if err != nil {
		return nil, err
	}
	count, err := params.Int(provider.ParamLimit)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		count = 100
	}

	var filings []models.FilingRecord
	seen := make(map[string]bool)
	formList := make([]string, 0, len(forms))
	for form := range forms {
		formList = append(formList, form)
	}
	sort.Strings(formList)

	for _, form := range formList {
		if err := f.RateLimit(ctx); err != nil {
			return nil, err
		}
		q := url.Values{}
		q.Set("action", "getcompany")
		q.Set("CIK", cik)
		q.Set("type", form)
		q.Set("owner", "include")
		q.Set("count", fmt.Sprint(count))
		q.Set("output", "atom")
		u := f.client.opts.WWWURL + "/cgi-bin/browse-edgar?" + q.Encode()

		data, err := f.client.fetchRaw(ctx, u, "application/atom+xml")
		if err != nil {
			return nil, fmt.Errorf("sec company filings feed %s: %w", form, err)
		}
		feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parse EDGAR feed %s: %w", form, err)
		}

		for _, item := range feed.Items {
			rec, ok := feedItemRecord(item, symbol, cik)
			if !ok || !forms[string(rec.FilingType)] || seen[rec.AccessionNumber] {
				continue
			}
			if !since.IsZero() && rec.FilingDate.Before(since) {
				continue
			}
			seen[rec.AccessionNumber] = true
			filings = append(filings, rec)
		}
	}

	sortFilings(filings)
	f.CacheSet(cacheKey, filings)
	return newResult(filings), nil
}

// feedItemRecord converts one Atom entry. EDGAR puts the form in the entry
// category, the accession in the id and the filing date in the content body.
func feedItemRecord(item *gofeed.Item, symbol, cik string) (models.FilingRecord, bool) {
	// gofeed reports a category's label ("form type") when one is set, so
	// the title prefix is the fallback.
	var ft models.FilingType
	for _, cand := range append(item.Categories, strings.SplitN(strings.TrimSpace(item.Title), " ", 2)[0]) {
		if t, err := models.ParseFilingType(cand); err == nil {
			ft = t
			break
		}
	}
	if ft == "" {
		return models.FilingRecord{}, false
	}

	acc := reFeedAccession.FindString(item.GUID)
	if acc == "" {
		acc = reFeedAccession.FindString(item.Link)
	}
	if acc == "" {
		return models.FilingRecord{}, false
	}

	var filed time.Time
	if m := reFeedFilingDate.FindStringSubmatch(item.Content); m != nil {
		filed = parseSECDate(m[1])
	}
	if filed.IsZero() && item.UpdatedParsed != nil {
		y, mo, d := item.UpdatedParsed.Date()
		filed = time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	}
	if filed.IsZero() {
		return models.FilingRecord{}, false
	}

	return models.FilingRecord{
		Ticker:          symbol,
		CIK:             cik,
		FilingType:      ft,
		FilingDate:      filed,
		AccessionNumber: acc,
	}, true
}
