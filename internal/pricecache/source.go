package pricecache

import (
	"context"

	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/models"
)

// RegistrySource reads EquityHistorical from a provider registry. An empty
// Provider uses the registry default.
type RegistrySource struct {
	Registry *provider.Registry
	Provider string
}

// FetchPrices implements Source.
func (s RegistrySource) FetchPrices(ctx context.Context, ticker string, r models.DateRange) (models.PriceSeries, error) {
	params := provider.QueryParams{
		provider.ParamSymbol:    ticker,
		provider.ParamStartDate: r.From.Format(models.DateLayout),
		provider.ParamEndDate:   r.To.Format(models.DateLayout),
		provider.ParamInterval:  "1d",
	}
	if s.Provider != "" {
		params[provider.ParamProvider] = s.Provider
	}
	return provider.FetchAs[models.PriceSeries](ctx, s.Registry, provider.ModelEquityHistorical, params)
}
