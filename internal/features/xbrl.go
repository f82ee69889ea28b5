package features

import (
	"context"

	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/pkg/models"
)

// XBRL concepts tried in order for each metric.
var (
	epsConcepts = []string{
		"EarningsPerShareDiluted",
		"EarningsPerShareBasic",
		"IncomeLossFromContinuingOperationsPerDilutedShare",
	}
	revenueConcepts = []string{
		"RevenueFromContractWithCustomerExcludingAssessedTax",
		"Revenues",
		"SalesRevenueNet",
		"RevenueFromContractWithCustomerIncludingAssessedTax",
	}
	netIncomeConcepts = []string{
		"NetIncomeLoss",
		"ProfitLoss",
		"NetIncomeLossAvailableToCommonStockholdersBasic",
	}
)

// XBRLExtractor reads EPS, revenue and net income reported by each filing
// from the company's XBRL facts, matched by accession number, then attaches
// EPS and revenue surprises against the prior comparable filing.
type XBRLExtractor struct {
	Facts FactsSource
	Log   *zap.Logger
}

func (x *XBRLExtractor) Name() string { return "xbrl" }

func (x *XBRLExtractor) Extract(ctx context.Context, rows []models.JoinedRow) error {
	log := logging.OrNop(x.Log)
	order, byTicker := groupByTicker(rows)

	for _, ticker := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx := byTicker[ticker]
		facts, err := x.Facts.CompanyFacts(ctx, ticker, rows[idx[0]].Filing.CIK)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("company facts unavailable", zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		found := 0
		for _, i := range idx {
			if applyFacts(&rows[i], facts) {
				found++
			}
		}
		log.Debug("xbrl facts matched",
			zap.String("ticker", ticker), zap.Int("filings", len(idx)), zap.Int("matched", found))
	}

	JoinSurprises(rows, FeatEPS)
	JoinSurprises(rows, FeatRevenue)
	return nil
}

// applyFacts sets the metrics a filing reported. Dollar amounts are stored
// in millions. It reports whether any metric was found.
func applyFacts(row *models.JoinedRow, facts *models.CompanyFacts) bool {
	acc := row.Filing.AccessionNumber
	found := false
	if v, ok := facts.Lookup(acc, epsConcepts, []string{"USD/shares"}); ok {
		row.Features.SetNum(FeatEPS, v.Value)
		found = true
	}
	if v, ok := facts.Lookup(acc, revenueConcepts, []string{"USD"}); ok {
		row.Features.SetNum(FeatRevenue, v.Value/1e6)
		found = true
	}
	if v, ok := facts.Lookup(acc, netIncomeConcepts, []string{"USD"}); ok {
		row.Features.SetNum(FeatNetIncome, v.Value/1e6)
		found = true
	}
	if found {
		ensureReal(&row.Features)
	}
	return found
}
