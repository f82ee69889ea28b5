// Package pricecache keeps one daily price series per ticker for the
// duration of a batch run, so that evaluating many filings of the same
// company costs a single call to the price source.
package pricecache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/seenimoa/filingret/internal/infra"
	"github.com/seenimoa/filingret/internal/logging"
	"github.com/seenimoa/filingret/pkg/models"
	"github.com/seenimoa/filingret/pkg/utils"
)

// ErrNoData is returned alongside an empty series when the source failed or
// had no rows for the ticker. It is a data-unavailable condition, not fatal.
var ErrNoData = errors.New("no price data")

// MinPadDays is the smallest calendar buffer added past the last needed
// date; it covers a weekend plus a holiday.
const MinPadDays = 7

// Source supplies daily price history for a ticker over a date range.
type Source interface {
	FetchPrices(ctx context.Context, ticker string, r models.DateRange) (models.PriceSeries, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, ticker string, r models.DateRange) (models.PriceSeries, error)

func (f SourceFunc) FetchPrices(ctx context.Context, ticker string, r models.DateRange) (models.PriceSeries, error) {
	return f(ctx, ticker, r)
}

// Options tunes a Cache. Zero values pick the defaults.
type Options struct {
	Delay        time.Duration // minimum spacing between source calls
	PadDays      int           // calendar days fetched past the last needed date (>= MinPadDays)
	LookbackDays int           // calendar days fetched before the earliest filing
	Logger       *zap.Logger
}

// Stats counts cache activity for the run report.
type Stats struct {
	Tickers  int `json:"tickers"`
	Hits     int `json:"hits"`
	Misses   int `json:"misses"`
	Fetches  int `json:"fetches"`
	Failures int `json:"failures"`
	Bars     int `json:"bars"`
}

type entry struct {
	series  models.PriceSeries
	fetched models.DateRange // range requested from the source
	failed  bool
	reason  error
}

// Cache is a process-local ticker → PriceSeries map. It is safe for
// concurrent use; concurrent requests for the same ticker share one fetch.
type Cache struct {
	src     Source
	opts    Options
	limiter *infra.RateLimiter
	log     *zap.Logger
	group   singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	plans   map[string]models.DateRange
	stats   Stats
}

// New creates an empty cache over src.
func New(src Source, opts Options) *Cache {
	if opts.PadDays < MinPadDays {
		opts.PadDays = MinPadDays
	}
	if opts.LookbackDays < 0 {
		opts.LookbackDays = 0
	}
	return &Cache{
		src:     src,
		opts:    opts,
		limiter: infra.NewIntervalLimiter(opts.Delay),
		log:     logging.OrNop(opts.Logger).Named("pricecache"),
		entries: make(map[string]*entry),
		plans:   make(map[string]models.DateRange),
	}
}

// Window returns the calendar range a filing needs for a horizon: from the
// configured lookback before the filing date to enough calendar days after
// it to hold the horizon in trading days plus a holiday buffer.
func (c *Cache) Window(filingDate time.Time, horizonDays int) models.DateRange {
	d := models.Day(filingDate)
	return models.DateRange{
		From: d.AddDate(0, 0, -c.opts.LookbackDays),
		To:   d.AddDate(0, 0, utils.CalendarDaysFor(horizonDays)),
	}
}

// Plan registers the windows of every record for every horizon ahead of
// fetching, so the first fetch of a ticker spans all of its filings.
func (c *Cache) Plan(records []models.FilingRecord, horizons []int) {
	maxH := 0
	for _, h := range horizons {
		if h > maxH {
			maxH = h
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		key := normalize(r.Ticker)
		c.plans[key] = c.plans[key].Union(c.Window(r.FilingDate, maxH))
	}
}

// Planned returns the tickers with a registered window, in no particular order.
func (c *Cache) Planned() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.plans))
	for t := range c.plans {
		out = append(out, t)
	}
	return out
}

// GetOrFetch returns the ticker's series when the cached fetch covers need.
// Otherwise it fetches one series spanning every planned window for the
// ticker plus need, padded past the end, and caches it. A failed or empty
// fetch is cached as an empty series for the rest of the run and reported
// as ErrNoData.
func (c *Cache) GetOrFetch(ctx context.Context, ticker string, need models.DateRange) (models.PriceSeries, error) {
	key := normalize(ticker)

	// A concurrent fetch may have started before need was planned; the
	// second round always includes it.
	for round := 0; round < 2; round++ {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && (e.failed || e.fetched.Covers(need)) {
			c.stats.Hits++
			c.mu.Unlock()
			return e.result(key)
		}
		if round == 0 {
			c.stats.Misses++
		}
		c.plans[key] = c.plans[key].Union(need)
		c.mu.Unlock()

		_, err, _ := c.group.Do(key, func() (any, error) {
			return nil, c.fetch(ctx, key)
		})
		if err != nil {
			return models.PriceSeries{Ticker: key}, err
		}

		c.mu.Lock()
		e := c.entries[key]
		c.mu.Unlock()
		if e != nil && (e.failed || e.fetched.Covers(need)) {
			return e.result(key)
		}
	}
	return models.PriceSeries{Ticker: key}, fmt.Errorf("%w for %s in %s", ErrNoData, key, need)
}

// fetch performs the single source call for a ticker. Only context
// cancellation is returned as an error; source failures become a cached
// empty entry.
func (c *Cache) fetch(ctx context.Context, key string) error {
	c.mu.Lock()
	span := c.plans[key].Pad(c.opts.PadDays)
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	series, err := c.src.FetchPrices(ctx, key, span)
	if err == nil {
		series = series.SortedCopy()
		err = series.Validate()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	e := &entry{fetched: span}
	switch {
	case err != nil:
		e.failed, e.reason = true, err
		var httpErr *infra.ErrHTTP
		throttled := errors.As(err, &httpErr) && httpErr.Throttled()
		c.log.Warn("price fetch failed",
			zap.String("ticker", key), zap.Stringer("range", span),
			zap.Bool("throttled", throttled), zap.Error(err))
	case series.Empty():
		e.failed, e.reason = true, errors.New("source returned no rows")
		c.log.Warn("price fetch returned no rows",
			zap.String("ticker", key), zap.Stringer("range", span))
	default:
		e.series = series
		c.log.Debug("price series fetched",
			zap.String("ticker", key), zap.Stringer("range", span),
			zap.Int("bars", series.Len()), zap.Duration("took", time.Since(start)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.entries[key]; !seen {
		c.stats.Tickers++
	}
	c.stats.Fetches++
	if e.failed {
		c.stats.Failures++
	}
	c.stats.Bars += e.series.Len()
	c.entries[key] = e
	return nil
}

// Prefetch fetches every ticker's planned window with at most limit fetches
// in flight. limit <= 1 keeps the run sequential. Per-ticker data failures
// are not errors; only cancellation stops the prefetch.
func (c *Cache) Prefetch(ctx context.Context, tickers []string, limit int) error {
	if limit < 1 {
		limit = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, t := range tickers {
		key := normalize(t)
		c.mu.Lock()
		need, ok := c.plans[key]
		c.mu.Unlock()
		if !ok {
			continue
		}
		g.Go(func() error {
			_, err := c.GetOrFetch(ctx, key, need)
			if errors.Is(err, ErrNoData) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (e *entry) result(key string) (models.PriceSeries, error) {
	if e.failed {
		return models.PriceSeries{Ticker: key}, fmt.Errorf("%w for %s: %v", ErrNoData, key, e.reason)
	}
	return e.series, nil
}

func normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
