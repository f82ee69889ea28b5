package features

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/models"
)

// Extractor derives real features for a batch of rows and merges them into
// each row's FeatureVector. Rows it cannot serve are left untouched and
// logged; only cancellation is returned as an error.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, rows []models.JoinedRow) error
}

// ---- Sources ----

// FactsSource supplies a company's XBRL facts.
type FactsSource interface {
	CompanyFacts(ctx context.Context, ticker, cik string) (*models.CompanyFacts, error)
}

// DocumentSource supplies the text of a filing document.
type DocumentSource interface {
	FilingText(ctx context.Context, url string) (*provider.FilingText, error)
}

// PriceSource supplies daily prices covering a range. *pricecache.Cache
// satisfies it.
type PriceSource interface {
	GetOrFetch(ctx context.Context, ticker string, need models.DateRange) (models.PriceSeries, error)
}

// RateSource supplies macro rate series.
type RateSource interface {
	Rates(ctx context.Context, model provider.ModelType, params provider.QueryParams) ([]provider.SeriesPoint, error)
}

// RegistrySources serves FactsSource, DocumentSource and RateSource from a
// provider registry. Rates try the default provider first and fall back to
// any other provider of the model.
type RegistrySources struct {
	Registry *provider.Registry
}

func (s RegistrySources) CompanyFacts(ctx context.Context, ticker, cik string) (*models.CompanyFacts, error) {
	params := provider.QueryParams{provider.ParamSymbol: ticker}
	if cik != "" {
		params[provider.ParamCIK] = cik
	}
	return provider.FetchAs[*models.CompanyFacts](ctx, s.Registry, provider.ModelCompanyFacts, params)
}

func (s RegistrySources) FilingText(ctx context.Context, url string) (*provider.FilingText, error) {
	return provider.FetchAs[*provider.FilingText](ctx, s.Registry, provider.ModelFilingDocument,
		provider.QueryParams{provider.ParamURL: url})
}

func (s RegistrySources) Rates(ctx context.Context, model provider.ModelType, params provider.QueryParams) ([]provider.SeriesPoint, error) {
	return provider.FetchAnyAs[[]provider.SeriesPoint](ctx, s.Registry, model, params)
}

// ---- Running ----

// Run applies each extractor in order. An extractor error stops the run.
func Run(ctx context.Context, rows []models.JoinedRow, log *zap.Logger, extractors ...Extractor) error {
	log = logging.OrNop(log)
	for _, ex := range extractors {
		if err := ex.Extract(ctx, rows); err != nil {
			return fmt.Errorf("extractor %s: %w", ex.Name(), err)
		}
		log.Debug("extractor done", zap.String("extractor", ex.Name()), zap.Int("rows", len(rows)))
	}
	return nil
}

// ensureReal marks a row's vector as real-provenance when it has none yet.
func ensureReal(fv *models.FeatureVector) {
	if fv.Provenance == "" {
		fv.Provenance = models.ProvenanceReal
	}
}

// groupByTicker returns row indexes per upper-case ticker, in row order.
func groupByTicker(rows []models.JoinedRow) (order []string, byTicker map[string][]int) {
	byTicker = make(map[string][]int)
	for i, r := range rows {
		k := r.Filing.Key().Ticker
		if _, ok := byTicker[k]; !ok {
			order = append(order, k)
		}
		byTicker[k] = append(byTicker[k], i)
	}
	return order, byTicker
}
