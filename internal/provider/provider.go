// Package provider routes the pipeline's data requests (filing indexes,
// XBRL facts, filing documents, price history, policy rates) to the
// provider that serves each standard model. Providers register fetchers per
// model; the Registry picks the default or falls back down the chain.
package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/seenimoa/filingret/pkg/models"
)

// ProviderCredential describes a required credential for a provider.
type ProviderCredential struct {
	Name        string `json:"name"`        // e.g., "api_key"
	Description string `json:"description"` // e.g., "FRED API key from fred.stlouisfed.org"
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"` // e.g., "FRED_API_KEY"
}

// ProviderInfo holds metadata about a registered provider.
type ProviderInfo struct {
	Name        string               `json:"name"` // e.g., "sec", "yfinance"
	Description string               `json:"description"`
	Website     string               `json:"website"`
	Credentials []ProviderCredential `json:"credentials"`
	Models      []ModelType          `json:"models"`
}

// Provider is one upstream data source.
type Provider interface {
	Info() ProviderInfo

	// Init stores credentials and fails when a required one is missing.
	Init(credentials map[string]string) error

	// Fetcher returns the fetcher for the given model type, or nil if unsupported.
	Fetcher(model ModelType) Fetcher

	SupportedModels() []ModelType

	// Ping verifies connectivity and credentials.
	Ping(ctx context.Context) error
}

// QueryParams is the string-keyed request passed to fetchers. Each fetcher
// declares which keys it requires and which it accepts.
type QueryParams map[string]string

// Parameter keys.
const (
	ParamSymbol    = "symbol"     // ticker, e.g. "AAPL", "BRK.B"
	ParamCIK       = "cik"        // SEC central index key, zero-padding optional
	ParamStartDate = "start_date" // YYYY-MM-DD, inclusive
	ParamEndDate   = "end_date"   // YYYY-MM-DD, inclusive
	ParamInterval  = "interval"   // bar size, "1d"
	ParamFormType  = "form_type"  // comma-separated, e.g. "10-Q,10-K"
	ParamURL       = "url"        // filing document URL
	ParamSeriesID  = "series_id"  // FRED series
	ParamMaturity  = "maturity"   // treasury maturity, e.g. "10y"
	ParamLimit     = "limit"      // max results
	ParamProvider  = "provider"   // override the model's default provider
)

// Date parses key as YYYY-MM-DD. An absent key yields fallback; a present
// but malformed one is an *ErrInvalidParam.
func (p QueryParams) Date(key string, fallback time.Time) (time.Time, error) {
	s := p[key]
	if s == "" {
		return fallback, nil
	}
	t, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, &ErrInvalidParam{Param: key, Value: s}
	}
	return t, nil
}

// Int parses key as a non-negative integer; absent is 0.
func (p QueryParams) Int(key string) (int, error) {
	s := p[key]
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, &ErrInvalidParam{Param: key, Value: s}
	}
	return n, nil
}

// FetchResult wraps a fetcher result with metadata.
type FetchResult struct {
	Provider  string    `json:"provider"`
	Model     ModelType `json:"model"`
	Data      any       `json:"data"` // typed per model, see ModelType
	FetchedAt time.Time `json:"fetched_at"`
	Cached    bool      `json:"cached"`
}

// Fetcher serves a single standard model.
type Fetcher interface {
	ModelType() ModelType
	Description() string
	RequiredParams() []string
	OptionalParams() []string

	// Fetch retrieves data for params. The Data type is fixed per model:
	// EquityHistorical → models.PriceSeries, SecFiling → []models.FilingRecord,
	// CompanyFacts → *models.CompanyFacts, and so on.
	Fetch(ctx context.Context, params QueryParams) (*FetchResult, error)
}

// ErrProviderNotFound is returned when a requested provider is not registered.
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// ErrModelNotSupported is returned when a provider doesn't support a model type.
type ErrModelNotSupported struct {
	Provider string
	Model    ModelType
}

func (e *ErrModelNotSupported) Error() string {
	return fmt.Sprintf("provider %q does not support model %q", e.Provider, e.Model)
}

// ErrMissingParam is returned when a required query parameter is missing.
type ErrMissingParam struct {
	Param string
}

func (e *ErrMissingParam) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Param)
}

// ErrInvalidParam is returned when a query parameter cannot be parsed.
type ErrInvalidParam struct {
	Param string
	Value string
}

func (e *ErrInvalidParam) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Param, e.Value)
}

// ErrInvalidCredentials is returned when provider credentials are invalid.
type ErrInvalidCredentials struct {
	Provider string
	Detail   string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for provider %q: %s", e.Provider, e.Detail)
}

// ValidateParams checks that all required parameters are present in params.
func ValidateParams(params QueryParams, required []string) error {
	for _, key := range required {
		if v, ok := params[key]; !ok || v == "" {
			return &ErrMissingParam{Param: key}
		}
	}
	return nil
}
