package sec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seenimoa/filingret/internal/infra"
	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/models"
)

// ---- CompanyFacts fetcher ----
// Retrieves XBRL company facts, flattened to concept → unit → values. Only
// the us-gaap and dei taxonomies are kept.

type companyFactsFetcher struct {
	provider.BaseFetcher
	client *edgarClient
}

func newCompanyFactsFetcher(c *edgarClient, limiter *infra.RateLimiter) *companyFactsFetcher {
	return &companyFactsFetcher{
		BaseFetcher: provider.NewBaseFetcher(provider.FetcherSpec{
			Model:       provider.ModelCompanyFacts,
			Description: "XBRL company facts (EPS, revenue, net income) from SEC EDGAR",
			Required:    []string{provider.ParamSymbol},
			Optional:    []string{provider.ParamCIK},
			CacheTTL:    time.Hour,
			Limiter:     limiter,
		}),
		client: c,
	}
}

func (f *companyFactsFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
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
			return nil, fmt.Errorf("sec company facts resolve CIK for %s: %w", symbol, err)
		}
		cik = resolved
	}

	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", f.client.opts.DataURL, padCIK(cik))
	var resp edgarCompanyFactsResponse
	if err := f.client.fetchJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("sec company facts for %s: %w", symbol, err)
	}

	facts := flattenFacts(resp)
	f.CacheSet(cacheKey, facts)
	return newResult(facts), nil
}

// flattenFacts drops the taxonomy level. When two taxonomies define the same
// concept, us-gaap wins.
func flattenFacts(resp edgarCompanyFactsResponse) *models.CompanyFacts {
	out := &models.CompanyFacts{
		CIK:        resp.CIK,
		EntityName: resp.EntityName,
		Facts:      make(map[string]map[string][]models.FactValue),
	}
	for _, taxonomy := range []string{"dei", "us-gaap"} {
		for concept, fact := range resp.Facts[taxonomy] {
			byUnit := make(map[string][]models.FactValue, len(fact.Units))
			for unit, values := range fact.Units {
				vals := make([]models.FactValue, 0, len(values))
				for _, v := range values {
					vals = append(vals, models.FactValue{
						Concept:   concept,
						Unit:      unit,
						Value:     v.Val,
						Accession: v.Accn,
						Form:      v.Form,
						Filed:     v.Filed,
						FY:        v.FY,
						FP:        v.FP,
						End:       v.End,
					})
				}
				byUnit[unit] = vals
			}
			out.Facts[concept] = byUnit
		}
	}
	return out
}
