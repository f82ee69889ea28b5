package features

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/models"
)

// Short interest and analyst consensus features.
const (
	FeatShortPercent = "shortPercentOfFloat" // percent
	FeatShortRatio   = "shortRatio"          // days to cover
	CatShortInterest = "shortInterest"       // ShortHigh or ShortNormal

	FeatConsensusEPS         = "epsConsensus"
	FeatReportedEPS          = "epsReported"
	FeatConsensusSurprisePct = "consensusSurprisePct"
	CatConsensusSurprise     = "consensusSurprise"
)

// Short interest levels.
const (
	ShortHigh   = "high"
	ShortNormal = "normal"
)

const (
	// HighShortInterestPct is the short share of float above which a name
	// counts as heavily shorted.
	HighShortInterestPct = 10.0
	// ShortInterestMaxAge bounds how far before a snapshot a filing may be
	// and still take its short interest. The snapshot says nothing about
	// positioning around older filings.
	ShortInterestMaxAge = 90 * 24 * time.Hour

	consensusReportTolerance = 7 * 24 * time.Hour
	consensusMaxLag          = 100 * 24 * time.Hour
)

// ShortInterestSource supplies a company's current short interest.
type ShortInterestSource interface {
	KeyStatistics(ctx context.Context, ticker string) (*models.KeyStatistics, error)
}

// ConsensusSource supplies consensus and reported EPS for recent quarters,
// sorted by quarter end.
type ConsensusSource interface {
	EarningsHistory(ctx context.Context, ticker string) ([]models.EarningsEstimate, error)
}

func (s RegistrySources) KeyStatistics(ctx context.Context, ticker string) (*models.KeyStatistics, error) {
	return provider.FetchAs[*models.KeyStatistics](ctx, s.Registry, provider.ModelKeyStatistics,
		provider.QueryParams{provider.ParamSymbol: ticker})
}

func (s RegistrySources) EarningsHistory(ctx context.Context, ticker string) ([]models.EarningsEstimate, error) {
	return provider.FetchAs[[]models.EarningsEstimate](ctx, s.Registry, provider.ModelEarningsHistory,
		provider.QueryParams{provider.ParamSymbol: ticker})
}

// ShortLevel classifies a short share of float in percent.
func ShortLevel(pct float64) string {
	if pct > HighShortInterestPct {
		return ShortHigh
	}
	return ShortNormal
}

// ShortInterestExtractor attaches short interest to filings made within
// ShortInterestMaxAge before the company's latest short interest report.
// Older filings are left without it. A market cap is filled in from the
// same snapshot when reference data had none.
type ShortInterestExtractor struct {
	Source ShortInterestSource
	Log    *zap.Logger
}

func (x *ShortInterestExtractor) Name() string { return "short" }

func (x *ShortInterestExtractor) Extract(ctx context.Context, rows []models.JoinedRow) error {
	log := logging.OrNop(x.Log)
	order, byTicker := groupByTicker(rows)

	for _, ticker := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats, err := x.Source.KeyStatistics(ctx, ticker)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("short interest unavailable", zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		if stats.ShortPercentOfFloat == nil {
			continue
		}

		applied := 0
		for _, i := range byTicker[ticker] {
			filed := models.Day(rows[i].Filing.FilingDate)
			if filed.After(stats.AsOf) || stats.AsOf.Sub(filed) > ShortInterestMaxAge {
				continue
			}
			fv := &rows[i].Features
			fv.SetNum(FeatShortPercent, *stats.ShortPercentOfFloat)
			fv.SetCat(CatShortInterest, ShortLevel(*stats.ShortPercentOfFloat))
			if stats.ShortRatio != nil {
				fv.SetNum(FeatShortRatio, *stats.ShortRatio)
			}
			if _, ok := fv.Num(FeatMarketCap); !ok && stats.MarketCap != nil {
				capB := *stats.MarketCap / 1e9
				fv.SetNum(FeatMarketCap, capB)
				fv.SetCat(CatMarketCapBucket, CapBucket(capB))
			}
			ensureReal(fv)
			applied++
		}
		log.Debug("short interest attached",
			zap.String("ticker", ticker), zap.Time("as_of", stats.AsOf), zap.Int("filings", applied))
	}
	return nil
}

// ConsensusExtractor attaches the analyst consensus EPS for the quarter a
// filing reports, the EPS actually reported, and the surprise of one
// against the other. The quarter is the one ending within a week of the
// filing's report date; without a report date it is the latest quarter
// ending no more than 100 days before the filing.
type ConsensusExtractor struct {
	Source ConsensusSource
	Log    *zap.Logger
}

func (x *ConsensusExtractor) Name() string { return "consensus" }

func (x *ConsensusExtractor) Extract(ctx context.Context, rows []models.JoinedRow) error {
	log := logging.OrNop(x.Log)
	order, byTicker := groupByTicker(rows)

	for _, ticker := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		hist, err := x.Source.EarningsHistory(ctx, ticker)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("consensus estimates unavailable", zap.String("ticker", ticker), zap.Error(err))
			continue
		}

		for _, i := range byTicker[ticker] {
			q, ok := matchQuarter(rows[i].Filing, hist)
			if !ok || q.EPSEstimate == nil || q.EPSActual == nil {
				continue
			}
			fv := &rows[i].Features
			fv.SetNum(FeatConsensusEPS, *q.EPSEstimate)
			fv.SetNum(FeatReportedEPS, *q.EPSActual)
			if s, ok := SurpriseOf(*q.EPSActual, *q.EPSEstimate); ok {
				fv.SetNum(FeatConsensusSurprisePct, s.MagnitudePct)
				fv.SetCat(CatConsensusSurprise, string(s.Category))
			}
			ensureReal(fv)
		}
	}
	return nil
}

// matchQuarter picks the estimate covering the filing's fiscal period.
func matchQuarter(f models.FilingRecord, hist []models.EarningsEstimate) (models.EarningsEstimate, bool) {
	if f.ReportDate != "" {
		if period, err := models.ParseDate(f.ReportDate); err == nil {
			for _, q := range hist {
				if absDuration(q.QuarterEnd.Sub(period)) <= consensusReportTolerance {
					return q, true
				}
			}
			return models.EarningsEstimate{}, false
		}
	}

	filed := models.Day(f.FilingDate)
	best, found := models.EarningsEstimate{}, false
	for _, q := range hist {
		if q.QuarterEnd.After(filed) || filed.Sub(q.QuarterEnd) > consensusMaxLag {
			continue
		}
		if !found || q.QuarterEnd.After(best.QuarterEnd) {
			best, found = q, true
		}
	}
	return best, found
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
