package features

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/models"
)

// macroLookbackDays widens the rate request so a filing on a weekend or
// holiday still finds the preceding observation.
const macroLookbackDays = 14

// MacroExtractor attaches the federal funds rate and the 10-year treasury
// yield in effect on each filing date (the latest observation on or before
// it) and their difference.
type MacroExtractor struct {
	Rates RateSource
	Log   *zap.Logger
}

func (x *MacroExtractor) Name() string { return "macro" }

func (x *MacroExtractor) Extract(ctx context.Context, rows []models.JoinedRow) error {
	log := logging.OrNop(x.Log)
	if len(rows) == 0 {
		return nil
	}

	span := models.DateRange{}
	for _, r := range rows {
		d := models.Day(r.Filing.FilingDate)
		span = span.Union(models.DateRange{From: d.AddDate(0, 0, -macroLookbackDays), To: d})
	}
	params := provider.QueryParams{
		provider.ParamStartDate: span.From.Format(models.DateLayout),
		provider.ParamEndDate:   span.To.Format(models.DateLayout),
	}

	fed, err := x.Rates.Rates(ctx, provider.ModelFederalFundsRate, params)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("federal funds rate unavailable", zap.Error(err))
	}

	tsyParams := provider.QueryParams{provider.ParamMaturity: "10y"}
	for k, v := range params {
		tsyParams[k] = v
	}
	tsy, err := x.Rates.Rates(ctx, provider.ModelTreasuryConstantMaturity, tsyParams)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("treasury yield unavailable", zap.Error(err))
	}

	sortPoints(fed)
	sortPoints(tsy)
	for i := range rows {
		day := models.Day(rows[i].Filing.FilingDate).Format(models.DateLayout)
		fv := &rows[i].Features
		f, okF := asOf(fed, day)
		t, okT := asOf(tsy, day)
		if okF {
			fv.SetNum(FeatFedFunds, f)
		}
		if okT {
			fv.SetNum(FeatTreasury10Y, t)
		}
		if okF && okT {
			fv.SetNum(FeatTermSpread, t-f)
		}
		if okF || okT {
			ensureReal(fv)
		}
	}
	return nil
}

func sortPoints(pts []provider.SeriesPoint) {
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date < pts[j].Date })
}

// asOf returns the value of the latest point dated on or before day.
// pts must be sorted ascending; dates compare as YYYY-MM-DD strings.
func asOf(pts []provider.SeriesPoint, day string) (float64, bool) {
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Date > day })
	if i == 0 {
		return 0, false
	}
	return pts[i-1].Value, true
}
