// Package pipeline collects the joined dataset: for every ticker it lists
// the periodic filings since a date, removes duplicate filing days, fetches
// each ticker's price history once, computes the event-window return at
// every horizon and attaches the extracted features.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/filingret/internal/features"
	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/internal/pricecache"
	"github.com/seenimoa/filingret/internal/quality"
	"github.com/seenimoa/filingret/internal/returns"
	"github.com/seenimoa/filingret/pkg/models"
)

// CIKLookup is static ticker → CIK reference data.
// *config.ReferenceData satisfies it.
type CIKLookup interface {
	CIK(ticker string) (string, bool)
}

// Collector builds joined rows. Filings and Prices are required; the rest
// are optional.
type Collector struct {
	Filings     FilingSource
	CIKs        CIKResolver
	Reference   CIKLookup
	Prices      *pricecache.Cache
	Extractors  []features.Extractor
	FilingTypes []models.FilingType // default 10-Q and 10-K
	Concurrency int                 // tickers fetched in parallel; <= 1 is sequential
	Log         *zap.Logger
}

// Result is the outcome of one collection run.
type Result struct {
	Rows        []models.JoinedRow
	Horizons    []int
	Dropped     []models.FilingRecord // duplicate (ticker, date) records
	Failed      map[string]string     // ticker → reason its filings could not be listed
	WithReturns map[int]int           // horizon → rows with a non-null return
	Cache       pricecache.Stats
}

// Run collects every ticker's filings filed on or after since and joins
// them with their returns at each horizon. A ticker whose filings cannot be
// listed is recorded in Result.Failed and the batch continues; records
// without usable prices keep null returns. Only cancellation and invalid
// arguments are errors.
func (c *Collector) Run(ctx context.Context, tickers []string, since time.Time, horizons []int) (*Result, error) {
	log := logging.OrNop(c.Log).Named("collector")
	if c.Filings == nil || c.Prices == nil {
		return nil, errors.New("collector needs a filing source and a price cache")
	}
	hs, err := normalizeHorizons(horizons)
	if err != nil {
		return nil, err
	}

	res := &Result{Horizons: hs, Failed: make(map[string]string), WithReturns: make(map[int]int)}
	records, err := c.listFilings(ctx, log, tickers, since, res.Failed)
	if err != nil {
		return nil, err
	}

	kept, dropped := quality.DedupRecords(records)
	res.Dropped = dropped
	for _, d := range dropped {
		log.Info("duplicate filing dropped",
			zap.String("key", d.Key().String()), zap.String("accession", d.AccessionNumber))
	}

	c.Prices.Plan(kept, hs)
	if err := c.Prices.Prefetch(ctx, c.Prices.Planned(), c.Concurrency); err != nil {
		return nil, fmt.Errorf("prefetch prices: %w", err)
	}

	maxH := hs[len(hs)-1]
	rows := make([]models.JoinedRow, 0, len(kept))
	for _, rec := range kept {
		row := models.JoinedRow{Filing: rec}
		series, err := c.Prices.GetOrFetch(ctx, rec.Ticker, c.Prices.Window(rec.FilingDate, maxH))
		if err != nil && !errors.Is(err, pricecache.ErrNoData) {
			return nil, err
		}
		for _, h := range hs {
			obs := models.ReturnObservation{HorizonDays: h}
			if err == nil {
				o, cerr := returns.Calculate(rec.FilingDate, h, series)
				if cerr != nil {
					log.Warn("return not computed",
						zap.String("key", rec.Key().String()), zap.Int("horizon", h), zap.Error(cerr))
				} else {
					obs = o
				}
			}
			if obs.Valid() {
				res.WithReturns[h]++
			}
			row.SetReturn(obs)
		}
		rows = append(rows, row)
	}

	if err := features.Run(ctx, rows, log, c.Extractors...); err != nil {
		return nil, err
	}
	res.Rows = rows
	res.Cache = c.Prices.Stats()

	log.Info("collection complete",
		zap.Int("tickers", len(tickers)),
		zap.Int("filings", len(rows)),
		zap.Int("duplicates", len(dropped)),
		zap.Int("failedTickers", len(res.Failed)),
		zap.Int("withReturns", res.WithReturns[hs[0]]),
		zap.Int("priceFetches", res.Cache.Fetches))
	return res, nil
}

// listFilings fetches each ticker's filings with at most Concurrency
// tickers in flight and concatenates them in ticker order.
func (c *Collector) listFilings(ctx context.Context, log *zap.Logger, tickers []string, since time.Time, failed map[string]string) ([]models.FilingRecord, error) {
	types := c.FilingTypes
	if len(types) == 0 {
		types = []models.FilingType{models.FilingQuarterly, models.FilingAnnual}
	}
	want := make(map[models.FilingType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	perTicker := make([][]models.FilingRecord, len(tickers))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.Concurrency, 1))
	for i, t := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(t))
		g.Go(func() error {
			cik := c.lookupCIK(gctx, log, ticker)
			recs, err := c.Filings.Filings(gctx, ticker, cik, types, since)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("filings unavailable", zap.String("ticker", ticker), zap.Error(err))
				mu.Lock()
				failed[ticker] = err.Error()
				mu.Unlock()
				return nil
			}
			out := recs[:0:0]
			for _, r := range recs {
				if !want[r.FilingType] || (!since.IsZero() && r.FilingDate.Before(since)) {
					continue
				}
				if r.Ticker == "" {
					r.Ticker = ticker
				}
				if r.CIK == "" {
					r.CIK = cik
				}
				out = append(out, r)
			}
			sort.SliceStable(out, func(a, b int) bool { return out[a].FilingDate.Before(out[b].FilingDate) })
			log.Debug("filings listed", zap.String("ticker", ticker), zap.Int("count", len(out)))
			perTicker[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.FilingRecord
	for _, recs := range perTicker {
		all = append(all, recs...)
	}
	return all, nil
}

// lookupCIK prefers reference data and falls back to the resolver. An
// unresolved CIK is left empty for the filing source to resolve.
func (c *Collector) lookupCIK(ctx context.Context, log *zap.Logger, ticker string) string {
	if c.Reference != nil {
		if cik, ok := c.Reference.CIK(ticker); ok {
			return cik
		}
	}
	if c.CIKs == nil {
		return ""
	}
	cik, err := c.CIKs.ResolveCIK(ctx, ticker)
	if err != nil {
		log.Debug("cik not resolved", zap.String("ticker", ticker), zap.Error(err))
		return ""
	}
	return cik
}

// normalizeHorizons sorts and dedups horizons, rejecting non-positive ones.
func normalizeHorizons(horizons []int) ([]int, error) {
	if len(horizons) == 0 {
		return nil, errors.New("at least one horizon is required")
	}
	seen := make(map[int]bool, len(horizons))
	out := make([]int, 0, len(horizons))
	for _, h := range horizons {
		if h <= 0 {
			return nil, fmt.Errorf("horizon must be positive, got %d", h)
		}
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	sort.Ints(out)
	return out, nil
}
