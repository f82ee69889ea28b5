package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/models"
)

// FilingSource lists a company's periodic filings since a date.
type FilingSource interface {
	Filings(ctx context.Context, ticker, cik string, types []models.FilingType, since time.Time) ([]models.FilingRecord, error)
}

// CIKResolver maps a ticker to its SEC CIK.
type CIKResolver interface {
	ResolveCIK(ctx context.Context, ticker string) (string, error)
}

// RegistryFilings serves FilingSource and CIKResolver from a provider
// registry. With UseFeed the EDGAR Atom feed replaces the submissions JSON.
type RegistryFilings struct {
	Registry *provider.Registry
	UseFeed  bool
}

func (s RegistryFilings) Filings(ctx context.Context, ticker, cik string, types []models.FilingType, since time.Time) ([]models.FilingRecord, error) {
	forms := make([]string, len(types))
	for i, t := range types {
		forms[i] = string(t)
	}
	params := provider.QueryParams{
		provider.ParamSymbol:   ticker,
		provider.ParamFormType: strings.Join(forms, ","),
	}
	if cik != "" {
		params[provider.ParamCIK] = cik
	}
	if !since.IsZero() {
		params[provider.ParamStartDate] = since.Format(models.DateLayout)
	}
	model := provider.ModelSecFiling
	if s.UseFeed {
		model = provider.ModelCompanyFilings
	}
	return provider.FetchAs[[]models.FilingRecord](ctx, s.Registry, model, params)
}

func (s RegistryFilings) ResolveCIK(ctx context.Context, ticker string) (string, error) {
	m, err := provider.FetchAs[*models.CIKMapping](ctx, s.Registry, provider.ModelCikMap,
		provider.QueryParams{provider.ParamSymbol: ticker})
	if err != nil {
		return "", err
	}
	return m.CIK, nil
}
