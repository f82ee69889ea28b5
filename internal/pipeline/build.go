package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/filingret/internal/config"
	"github.com/seenimoa/filingret/internal/features"
	"github.com/seenimoa/filingret/internal/pricecache"
	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/pkg/models"
)

// Extractor names accepted in collection.extractors.
const (
	ExtractorXBRL   = "xbrl"
	ExtractorText   = "text"
	ExtractorVolume = "volume"
	ExtractorMarket = "market"
	ExtractorMacro  = "macro"

	// Yahoo quoteSummary only covers the last few quarters, so these are
	// never on by default.
	ExtractorConsensus = "consensus"
	ExtractorShort     = "short"
)

// ExtractorNames lists every known extractor in run order. Short interest
// runs after market so a reference market cap wins over the snapshot's.
var ExtractorNames = []string{
	ExtractorXBRL, ExtractorConsensus, ExtractorText, ExtractorVolume,
	ExtractorMarket, ExtractorShort, ExtractorMacro,
}

// NewPriceCache builds the run's price cache over the registry's
// EquityHistorical provider. Volume features need a lookback before each
// filing, so the cache fetches it when withVolume is set.
func NewPriceCache(cfg *config.Config, reg *provider.Registry, withVolume bool, log *zap.Logger) *pricecache.Cache {
	opts := pricecache.Options{
		Delay:   time.Duration(cfg.Prices.RequestDelayMs) * time.Millisecond,
		PadDays: cfg.Prices.PadDays,
		Logger:  log,
	}
	if withVolume {
		opts.LookbackDays = features.VolumeLookbackDays
	}
	return pricecache.New(pricecache.RegistrySource{Registry: reg}, opts)
}

// BuildExtractors instantiates extractors by name, in ExtractorNames order
// regardless of the order given. Unknown names are an error.
func BuildExtractors(names []string, reg *provider.Registry, prices features.PriceSource, ref features.Reference, index string, log *zap.Logger) ([]features.Extractor, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if !slices.Contains(ExtractorNames, n) {
			return nil, fmt.Errorf("unknown extractor %q (want one of %s)", n, strings.Join(ExtractorNames, ", "))
		}
		want[n] = true
	}

	src := features.RegistrySources{Registry: reg}
	var out []features.Extractor
	for _, n := range ExtractorNames {
		if !want[n] {
			continue
		}
		switch n {
		case ExtractorXBRL:
			out = append(out, &features.XBRLExtractor{Facts: src, Log: log})
		case ExtractorConsensus:
			out = append(out, &features.ConsensusExtractor{Source: src, Log: log})
		case ExtractorText:
			out = append(out, &features.TextExtractor{Documents: src, Log: log})
		case ExtractorVolume:
			out = append(out, &features.VolumeExtractor{Prices: prices, Log: log})
		case ExtractorMarket:
			out = append(out, &features.MarketExtractor{Prices: prices, Reference: ref, Index: index, Log: log})
		case ExtractorShort:
			out = append(out, &features.ShortInterestExtractor{Source: src, Log: log})
		case ExtractorMacro:
			out = append(out, &features.MacroExtractor{Rates: src, Log: log})
		}
	}
	return out, nil
}

// ParseFilingTypes parses form names such as "10-Q".
func ParseFilingTypes(names []string) ([]models.FilingType, error) {
	out := make([]models.FilingType, 0, len(names))
	for _, n := range names {
		t, err := models.ParseFilingType(n)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// New wires a Collector from the config over a populated registry.
func New(cfg *config.Config, reg *provider.Registry, log *zap.Logger) (*Collector, error) {
	types, err := ParseFilingTypes(cfg.Collection.FilingTypes)
	if err != nil {
		return nil, fmt.Errorf("collection.filing_types: %w", err)
	}
	withVolume := false
	for _, n := range cfg.Collection.Extractors {
		if strings.EqualFold(strings.TrimSpace(n), ExtractorVolume) {
			withVolume = true
		}
	}
	cache := NewPriceCache(cfg, reg, withVolume, log)
	extractors, err := BuildExtractors(cfg.Collection.Extractors, reg, cache, &cfg.Reference, cfg.Collection.MarketIndex, log)
	if err != nil {
		return nil, fmt.Errorf("collection.extractors: %w", err)
	}

	filings := RegistryFilings{Registry: reg, UseFeed: cfg.Collection.UseFeed}
	return &Collector{
		Filings:     filings,
		CIKs:        filings,
		Reference:   &cfg.Reference,
		Prices:      cache,
		Extractors:  extractors,
		FilingTypes: types,
		Concurrency: cfg.Prices.Concurrency,
		Log:         log,
	}, nil
}
