// Package providers initializes and registers all concrete data providers
// with a provider registry.
package providers

import (
	"time"

	"github.com/seenimoa/filingret/internal/config"
	"github.com/seenimoa/filingret/internal/provider"
	"github.com/seenimoa/filingret/internal/providers/federalreserve"
	"github.com/seenimoa/filingret/internal/providers/fred"
	"github.com/seenimoa/filingret/internal/providers/sec"
	"github.com/seenimoa/filingret/internal/providers/yfinance"
)

// RegisterAllTo registers all available providers to the given registry.
// Providers that require API keys are only registered when the key is
// configured; FRED then becomes the default for the rate models.
func RegisterAllTo(reg *provider.Registry, cfg *config.Config) error {
	// --- SEC EDGAR (free, User-Agent required) ---
	sp := sec.New(sec.Options{
		UserAgent: cfg.SEC.UserAgent,
		DataURL:   cfg.SEC.DataURL,
		WWWURL:    cfg.SEC.WWWURL,
		Delay:     time.Duration(cfg.SEC.RequestDelayMs) * time.Millisecond,
	})
	if err := sp.Init(nil); err != nil {
		return err
	}
	if err := reg.Register(sp); err != nil {
		return err
	}

	// --- YFinance (free, no API key) ---
	yf := yfinance.New(yfinance.Options{
		BaseURL: cfg.Prices.BaseURL,
		Delay:   time.Duration(cfg.Prices.RequestDelayMs) * time.Millisecond,
	})
	if err := yf.Init(nil); err != nil {
		return err
	}
	if err := reg.Register(yf); err != nil {
		return err
	}

	// --- NY Fed (free, no API key) ---
	fed := federalreserve.New(federalreserve.Options{})
	if err := fed.Init(nil); err != nil {
		return err
	}
	if err := reg.Register(fed); err != nil {
		return err
	}

	// --- FRED (requires API key) ---
	if apiKey := cfg.FRED.APIKey; apiKey != "" {
		fp := fred.New(fred.Options{BaseURL: cfg.FRED.BaseURL})
		if err := fp.Init(map[string]string{"api_key": apiKey}); err != nil {
			return err
		}
		if err := reg.Register(fp); err != nil {
			return err
		}
		if err := reg.SetDefault(provider.ModelFederalFundsRate, fp.Info().Name); err != nil {
			return err
		}
	}

	return nil
}
