package features

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/internal/returns"
	"github.com/seenimoa/filingret/pkg/models"
	"github.com/seenimoa/filingret/pkg/utils"
)

const (
	marketLookbackDays = 30   // trading days
	bullMomentumPct    = 5.0  // index up more than this → bull
	bearMomentumPct    = -2.0 // index down more than this → bear
	flightVolPct       = 20.0 // annualized volatility signalling flight to quality
	tradingDaysPerYear = 252
)

// Market-cap bucket labels, in billions USD.
const (
	CapSmall = "small" // < 200
	CapLarge = "large" // 200 - 500
	CapMega  = "mega"  // 500 - 1000
	CapUltra = "ultra" // >= 1000
)

// Regime labels shared by the momentum regime and the calendar regime.
const (
	RegimeBull = "bull"
	RegimeBear = "bear"
	RegimeFlat = "flat"
)

// Reference is the static lookup data market features read.
// *config.ReferenceData satisfies it.
type Reference interface {
	MarketCap(ticker string) (float64, bool)
	Regime(year int) string
}

// CapBucket buckets a market cap in billions USD.
func CapBucket(capB float64) string {
	switch {
	case capB < 200:
		return CapSmall
	case capB < 500:
		return CapLarge
	case capB < 1000:
		return CapMega
	}
	return CapUltra
}

// MomentumRegime classifies an index's trailing return.
func MomentumRegime(pct float64) string {
	switch {
	case pct > bullMomentumPct:
		return RegimeBull
	case pct < bearMomentumPct:
		return RegimeBear
	}
	return RegimeFlat
}

// MarketExtractor attaches the market backdrop of each filing: the index's
// 30-trading-day momentum and annualized volatility before the filing date
// with the implied regime, plus the company's market-cap bucket and the
// calendar-year regime from reference data.
type MarketExtractor struct {
	Prices    PriceSource
	Reference Reference
	Index     string // default SPY
	Log       *zap.Logger
}

func (x *MarketExtractor) Name() string { return "market" }

func (x *MarketExtractor) Extract(ctx context.Context, rows []models.JoinedRow) error {
	log := logging.OrNop(x.Log)
	if len(rows) == 0 {
		return nil
	}

	if x.Reference != nil {
		for i := range rows {
			f := rows[i].Filing
			fv := &rows[i].Features
			if capB, ok := x.Reference.MarketCap(f.Ticker); ok {
				fv.SetNum(FeatMarketCap, capB)
				fv.SetCat(CatMarketCapBucket, CapBucket(capB))
			}
			fv.SetCat(CatRegime, x.Reference.Regime(f.FilingDate.Year()))
			ensureReal(fv)
		}
	}

	index := x.Index
	if index == "" {
		index = "SPY"
	}
	// One fetch covers every filing's lookback.
	span := models.DateRange{}
	for _, r := range rows {
		d := models.Day(r.Filing.FilingDate)
		span = span.Union(models.DateRange{From: d.AddDate(0, 0, -utils.CalendarDaysFor(marketLookbackDays+1)), To: d})
	}
	series, err := x.Prices.GetOrFetch(ctx, index, span)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("market index prices unavailable", zap.String("index", index), zap.Error(err))
		return nil
	}

	for i := range rows {
		filed := rows[i].Filing.FilingDate
		fv := &rows[i].Features

		mom, err := returns.Trailing(filed, marketLookbackDays, series)
		if err != nil {
			log.Warn("market momentum", zap.String("index", index), zap.Error(err))
			return nil
		}
		if mom == nil {
			continue
		}
		fv.SetNum(FeatMarketMomentum, *mom)
		fv.SetCat(CatMarketRegime, MomentumRegime(*mom))

		if vol, _ := returns.Volatility(filed, marketLookbackDays, series); vol != nil {
			annual := *vol * math.Sqrt(tradingDaysPerYear)
			fv.SetNum(FeatMarketVolatility, annual)
			flight := 0.0
			if annual > flightVolPct {
				flight = 1
			}
			fv.SetNum(FeatFlightToQuality, flight)
		}
		ensureReal(fv)
	}
	return nil
}
