package features

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/internal/returns"
	"github.com/seenimoa/filingret/pkg/models"
	"github.com/seenimoa/filingret/pkg/utils"
)

// Pre-filing volume windows, in trading days before the filing.
const (
	volumeRecentDays   = 30
	volumeBaselineDays = 90
	volumeAccelRecent  = 10
	volumeAccelPrior   = 20
	highVolumeFactor   = 1.5
)

// Extra pre-filing features.
const (
	FeatVolumeAcceleration = "volumeAcceleration"
	FeatHighVolumeDays     = "highVolumeDays"
)

// VolumeLookbackDays is the calendar span before a filing the volume
// features read. Price caches feeding a VolumeExtractor should fetch at
// least this far back.
var VolumeLookbackDays = utils.CalendarDaysFor(volumeRecentDays + volumeBaselineDays)

// VolumeExtractor measures abnormal trading volume before each filing: the
// mean volume of the last 30 trading days over the 90 before those, the
// last 10 days over the 20 before those, and the count of recent days above
// 1.5x the baseline mean.
type VolumeExtractor struct {
	Prices PriceSource
	Log    *zap.Logger
}

func (x *VolumeExtractor) Name() string { return "volume" }

func (x *VolumeExtractor) Extract(ctx context.Context, rows []models.JoinedRow) error {
	log := logging.OrNop(x.Log)

	for i := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := rows[i].Filing
		filed := models.Day(f.FilingDate)
		need := models.DateRange{From: filed.AddDate(0, 0, -VolumeLookbackDays), To: filed}
		series, err := x.Prices.GetOrFetch(ctx, f.Ticker, need)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug("no prices for volume features", zap.String("filing", f.Key().String()), zap.Error(err))
			continue
		}

		ratio := returns.VolumeRatio(filed, volumeRecentDays, volumeBaselineDays, series)
		if ratio == nil {
			continue
		}
		fv := &rows[i].Features
		fv.SetNum(FeatVolumeRatio, *ratio)
		if accel := returns.VolumeRatio(filed, volumeAccelRecent, volumeAccelPrior, series); accel != nil {
			fv.SetNum(FeatVolumeAcceleration, *accel)
		}
		if n, ok := highVolumeDays(filed, series); ok {
			fv.SetNum(FeatHighVolumeDays, float64(n))
		}
		ensureReal(fv)
	}
	return nil
}

// highVolumeDays counts recent-window days whose volume exceeds
// highVolumeFactor times the baseline mean.
func highVolumeDays(filed time.Time, series models.PriceSeries) (int, bool) {
	end := returns.AnchorIndex(filed, series) - 1
	if end == -2 { // every bar precedes the filing
		end = series.Len() - 1
	}
	recentStart := end - volumeRecentDays + 1
	baseStart := recentStart - volumeBaselineDays
	if end < 0 || baseStart < 0 {
		return 0, false
	}
	var base float64
	for i := baseStart; i < recentStart; i++ {
		base += float64(series.Bars[i].Volume)
	}
	base /= volumeBaselineDays
	if base <= 0 {
		return 0, false
	}
	n := 0
	for i := recentStart; i <= end; i++ {
		if float64(series.Bars[i].Volume) > highVolumeFactor*base {
			n++
		}
	}
	return n, true
}
