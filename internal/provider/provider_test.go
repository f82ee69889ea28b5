package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/filingret/pkg/models"
)

// mockFetcher implements the Fetcher interface for testing.
type mockFetcher struct {
	BaseFetcher
	fetchFn func(ctx context.Context, params QueryParams) (*FetchResult, error)
}

func newMockFetcher(model ModelType, required []string) *mockFetcher {
	return &mockFetcher{
		BaseFetcher: NewBaseFetcher(FetcherSpec{
			Model:       model,
			Description: "mock fetcher for " + string(model),
			Required:    required,
		}),
	}
}

func (m *mockFetcher) Fetch(ctx context.Context, params QueryParams) (*FetchResult, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, params)
	}
	return &FetchResult{
		Data:      "mock-data",
		FetchedAt: time.Now(),
	}, nil
}

// mockProvider implements the Provider interface for testing.
type mockProvider struct {
	BaseProvider
}

func newMockProvider(name string, models ...ModelType) *mockProvider {
	mp := &mockProvider{
		BaseProvider: NewBaseProvider(name, "Mock "+name, "https://example.com", nil),
	}
	for _, m := range models {
		mp.RegisterFetcher(newMockFetcher(m, []string{ParamSymbol}))
	}
	return mp
}

// --- Registry Tests ---

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	p := newMockProvider("test-provider", ModelSecFiling, ModelEquityHistorical)

	if err := p.Init(nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := reg.Get("test-provider")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Info().Name != "test-provider" {
		t.Errorf("expected name test-provider, got %s", got.Info().Name)
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("nonexistent")
	if err == nil {
		t.Fatal("expected error for nonexistent provider")
	}
	if _, ok := err.(*ErrProviderNotFound); !ok {
		t.Errorf("expected ErrProviderNotFound, got %T", err)
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("yfinance", ModelEquityHistorical))
	_ = reg.Register(newMockProvider("sec", ModelSecFiling))

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(list))
	}
	if list[0].Name != "sec" || list[1].Name != "yfinance" {
		t.Errorf("expected sorted [sec yfinance], got [%s %s]", list[0].Name, list[1].Name)
	}
}

func TestRegistryProvidersFor(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelSecFiling, ModelCompanyFacts))
	_ = reg.Register(newMockProvider("p2", ModelSecFiling))
	_ = reg.Register(newMockProvider("p3", ModelCompanyFacts))

	if provs := reg.ProvidersFor(ModelSecFiling); len(provs) != 2 {
		t.Fatalf("expected 2 providers for SecFiling, got %d", len(provs))
	}
	if provs := reg.ProvidersFor(ModelCompanyFacts); len(provs) != 2 {
		t.Fatalf("expected 2 providers for CompanyFacts, got %d", len(provs))
	}
	if provs := reg.ProvidersFor(ModelFederalFundsRate); len(provs) != 0 {
		t.Fatalf("expected 0 providers for FederalFundsRate, got %d", len(provs))
	}
}

func TestRegistrySetDefault(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelEquityHistorical))
	_ = reg.Register(newMockProvider("p2", ModelEquityHistorical))

	def, ok := reg.DefaultProvider(ModelEquityHistorical)
	if !ok || def != "p1" {
		t.Errorf("expected default p1, got %s (ok=%v)", def, ok)
	}

	if err := reg.SetDefault(ModelEquityHistorical, "p2"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	def, ok = reg.DefaultProvider(ModelEquityHistorical)
	if !ok || def != "p2" {
		t.Errorf("expected default p2, got %s (ok=%v)", def, ok)
	}

	if err := reg.SetDefault(ModelEquityHistorical, "nope"); err == nil {
		t.Error("expected error setting default to non-existent provider")
	}
	if err := reg.SetDefault(ModelCompanyFacts, "p1"); err == nil {
		t.Error("expected error setting default for unsupported model")
	}
}

func TestRegistryProvidersForDefaultFirst(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelFederalFundsRate))
	_ = reg.Register(newMockProvider("p2", ModelFederalFundsRate))
	_ = reg.Register(newMockProvider("p3", ModelFederalFundsRate))

	if err := reg.SetDefault(ModelFederalFundsRate, "p3"); err != nil {
		t.Fatal(err)
	}
	got := reg.ProvidersFor(ModelFederalFundsRate)
	want := []string{"p3", "p1", "p2"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ProvidersFor = %v, want %v", got, want)
	}

	// Re-registering keeps a single entry.
	_ = reg.Register(newMockProvider("p1", ModelFederalFundsRate))
	if got := reg.ProvidersFor(ModelFederalFundsRate); len(got) != 3 {
		t.Errorf("expected 3 providers after re-register, got %v", got)
	}
}

func TestRegistryFetch(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("test", ModelEquityHistorical))

	result, err := reg.Fetch(context.Background(), ModelEquityHistorical, QueryParams{ParamSymbol: "AAPL"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Provider != "test" {
		t.Errorf("expected provider 'test', got %s", result.Provider)
	}
	if result.Model != ModelEquityHistorical {
		t.Errorf("expected model EquityHistorical, got %s", result.Model)
	}
	if result.Data != "mock-data" {
		t.Errorf("unexpected data: %v", result.Data)
	}
}

func TestRegistryFetchMissingParam(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("test", ModelEquityHistorical))

	_, err := reg.Fetch(context.Background(), ModelEquityHistorical, QueryParams{})
	if err == nil {
		t.Fatal("expected error for missing param")
	}
	var missing *ErrMissingParam
	if !errors.As(err, &missing) || missing.Param != ParamSymbol {
		t.Errorf("expected ErrMissingParam{symbol}, got %T: %v", err, err)
	}
}

func TestRegistryFetchUnsupportedModel(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("test", ModelEquityHistorical))

	if _, err := reg.Fetch(context.Background(), ModelCompanyFacts, QueryParams{ParamSymbol: "AAPL"}); err == nil {
		t.Fatal("expected error for unsupported model")
	}
}

func TestRegistryFetchWithProviderOverride(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelEquityHistorical))

	mp2 := newMockProvider("p2", ModelEquityHistorical)
	f := newMockFetcher(ModelEquityHistorical, []string{ParamSymbol})
	f.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
		return &FetchResult{Data: "from-p2"}, nil
	}
	mp2.BaseProvider.fetchers[ModelEquityHistorical] = f
	_ = reg.Register(mp2)

	result, err := reg.Fetch(context.Background(), ModelEquityHistorical, QueryParams{
		ParamSymbol:   "AAPL",
		ParamProvider: "p2",
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Data != "from-p2" {
		t.Errorf("expected data from p2, got %v", result.Data)
	}
}

func TestRegistryFetchWithFallback(t *testing.T) {
	reg := NewRegistry()

	mp1 := newMockProvider("p1", ModelSecFiling)
	f1 := newMockFetcher(ModelSecFiling, []string{ParamSymbol})
	f1.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
		return nil, errors.New("submissions endpoint down")
	}
	mp1.BaseProvider.fetchers[ModelSecFiling] = f1
	_ = reg.Register(mp1)

	mp2 := newMockProvider("p2", ModelSecFiling)
	f2 := newMockFetcher(ModelSecFiling, []string{ParamSymbol})
	f2.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
		return &FetchResult{Data: "fallback-data"}, nil
	}
	mp2.BaseProvider.fetchers[ModelSecFiling] = f2
	_ = reg.Register(mp2)

	result, err := reg.FetchWithFallback(context.Background(), ModelSecFiling, QueryParams{ParamSymbol: "AAPL"})
	if err != nil {
		t.Fatalf("FetchWithFallback failed: %v", err)
	}
	if result.Data != "fallback-data" {
		t.Errorf("expected fallback-data, got %v", result.Data)
	}
}

func TestFetchAs(t *testing.T) {
	reg := NewRegistry()
	mp := newMockProvider("yf")
	f := newMockFetcher(ModelEquityHistorical, []string{ParamSymbol})
	f.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
		return &FetchResult{Data: models.PriceSeries{Ticker: params[ParamSymbol]}}, nil
	}
	mp.RegisterFetcher(f)
	_ = reg.Register(mp)

	series, err := FetchAs[models.PriceSeries](context.Background(), reg, ModelEquityHistorical, QueryParams{ParamSymbol: "MSFT"})
	if err != nil {
		t.Fatalf("FetchAs: %v", err)
	}
	if series.Ticker != "MSFT" {
		t.Errorf("Ticker = %q", series.Ticker)
	}

	_, err = FetchAs[*models.CompanyFacts](context.Background(), reg, ModelEquityHistorical, QueryParams{ParamSymbol: "MSFT"})
	if err == nil || !strings.Contains(err.Error(), "want") {
		t.Errorf("expected type mismatch error, got %v", err)
	}
}

func TestRegistryFetchWithFallbackAllFail(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"p1", "p2"} {
		mp := newMockProvider(name)
		f := newMockFetcher(ModelFederalFundsRate, nil)
		msg := name + " unavailable"
		f.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
			return nil, errors.New(msg)
		}
		mp.RegisterFetcher(f)
		_ = reg.Register(mp)
	}

	_, err := reg.FetchWithFallback(context.Background(), ModelFederalFundsRate, QueryParams{})
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	for _, want := range []string{"p1 unavailable", "p2 unavailable"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}

	if _, err := reg.FetchWithFallback(context.Background(), ModelCikMap, QueryParams{}); err == nil {
		t.Error("expected error for a model nobody serves")
	}
}

func TestRegistryFetchWithFallbackStopsOnCancel(t *testing.T) {
	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	for _, name := range []string{"p1", "p2"} {
		mp := newMockProvider(name)
		f := newMockFetcher(ModelSecFiling, nil)
		f.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
			calls++
			cancel()
			return nil, ctx.Err()
		}
		mp.RegisterFetcher(f)
		_ = reg.Register(mp)
	}

	_, err := reg.FetchWithFallback(ctx, ModelSecFiling, QueryParams{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the chain to stop after 1 call, got %d", calls)
	}
}

func TestFetchAnyAs(t *testing.T) {
	reg := NewRegistry()
	down := newMockProvider("down")
	fd := newMockFetcher(ModelFederalFundsRate, nil)
	fd.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
		return nil, errors.New("down")
	}
	down.RegisterFetcher(fd)
	_ = reg.Register(down)

	up := newMockProvider("up")
	fu := newMockFetcher(ModelFederalFundsRate, nil)
	fu.fetchFn = func(ctx context.Context, params QueryParams) (*FetchResult, error) {
		return &FetchResult{Data: []SeriesPoint{{Date: "2023-08-04", Value: 5.33}}}, nil
	}
	up.RegisterFetcher(fu)
	_ = reg.Register(up)

	pts, err := FetchAnyAs[[]SeriesPoint](context.Background(), reg, ModelFederalFundsRate, QueryParams{})
	if err != nil {
		t.Fatalf("FetchAnyAs: %v", err)
	}
	if len(pts) != 1 || pts[0].Value != 5.33 {
		t.Errorf("points = %v", pts)
	}
}

func TestCoverage(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(newMockProvider("p1", ModelEquityHistorical, ModelCompanyFacts))
	_ = reg.Register(newMockProvider("p2", ModelEquityHistorical, ModelFredSeries))

	cov := reg.Coverage()
	if len(cov) != 3 {
		t.Fatalf("expected 3 models, got %d", len(cov))
	}
	for i := 1; i < len(cov); i++ {
		if cov[i-1].Model > cov[i].Model {
			t.Error("coverage should be sorted by model")
		}
	}
	for _, c := range cov {
		if c.Model == ModelEquityHistorical && len(c.Providers) != 2 {
			t.Errorf("expected 2 providers for EquityHistorical, got %v", c.Providers)
		}
		if c.Model == ModelCompanyFacts && len(c.Providers) != 1 {
			t.Errorf("expected 1 provider for CompanyFacts, got %v", c.Providers)
		}
	}
}

func TestCacheKeyNormalizesSymbol(t *testing.T) {
	a := CacheKey(ModelSecFiling, QueryParams{ParamSymbol: "aapl", ParamFormType: "10-Q", ParamProvider: "sec"})
	b := CacheKey(ModelSecFiling, QueryParams{ParamFormType: "10-Q", ParamSymbol: "AAPL"})
	if a != b {
		t.Errorf("cache keys differ: %q vs %q", a, b)
	}
}

// --- Base Provider Tests ---

func TestBaseProviderInit(t *testing.T) {
	creds := []ProviderCredential{
		{Name: "api_key", Required: true, EnvVar: "FRED_API_KEY"},
	}
	bp := NewBaseProvider("fred", "desc", "https://fred.stlouisfed.org", creds)

	if err := bp.Init(map[string]string{}); err == nil {
		t.Error("expected error for missing required credential")
	}
	if err := bp.Init(map[string]string{"api_key": "secret123"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if bp.Credential("api_key") != "secret123" {
		t.Error("credential not stored")
	}
}

func TestBaseProviderRegisterFetcher(t *testing.T) {
	bp := NewBaseProvider("test", "desc", "https://test.com", nil)
	bp.RegisterFetcher(newMockFetcher(ModelSecFiling, nil))
	bp.RegisterFetcher(newMockFetcher(ModelCikMap, nil))

	if bp.Fetcher(ModelSecFiling) == nil {
		t.Error("fetcher not registered")
	}
	if bp.Fetcher(ModelCompanyFacts) != nil {
		t.Error("fetcher should be nil for unregistered model")
	}
	got := bp.SupportedModels()
	if len(got) != 2 || got[0] != ModelCikMap {
		t.Errorf("expected sorted [CikMap SecFiling], got %v", got)
	}
}

func TestBaseFetcherCache(t *testing.T) {
	f := newMockFetcher(ModelCompanyFacts, nil)
	if _, ok := f.CacheGet("k"); ok {
		t.Error("expected empty cache")
	}
	f.CacheSet("k", 42)
	if v, ok := f.CacheGet("k"); !ok || v.(int) != 42 {
		t.Errorf("CacheGet = %v, %v", v, ok)
	}
	if err := f.RateLimit(context.Background()); err != nil {
		t.Errorf("RateLimit: %v", err)
	}
}

// --- CacheKey Tests ---

func TestCacheKey(t *testing.T) {
	params := QueryParams{
		ParamSymbol:    "AAPL",
		ParamStartDate: "2024-01-01",
		ParamProvider:  "yfinance",
	}
	key := CacheKey(ModelEquityHistorical, params)

	if strings.Contains(key, "yfinance") {
		t.Error("cache key should not contain provider name")
	}
	want := "EquityHistorical:start_date=2024-01-01:symbol=AAPL"
	if key != want {
		t.Errorf("CacheKey = %q, want %q", key, want)
	}
}

// --- ValidateParams Tests ---

func TestValidateParams(t *testing.T) {
	if err := ValidateParams(QueryParams{ParamCIK: "320193"}, []string{ParamCIK}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateParams(QueryParams{}, []string{ParamSymbol}); err == nil {
		t.Error("expected error for missing param")
	}
	if err := ValidateParams(QueryParams{ParamSymbol: ""}, []string{ParamSymbol}); err == nil {
		t.Error("expected error for empty param")
	}
}

// --- AllModels Tests ---

func TestAllModelsUnique(t *testing.T) {
	seen := make(map[ModelType]bool)
	for _, m := range AllModels() {
		if seen[m] {
			t.Errorf("duplicate model type: %s", m)
		}
		seen[m] = true
	}
}

func TestModelCategory(t *testing.T) {
	tests := []struct {
		model    ModelType
		category string
	}{
		{ModelEquityHistorical, "prices"},
		{ModelKeyStatistics, "market"},
		{ModelEarningsHistory, "market"},
		{ModelSecFiling, "filings"},
		{ModelFilingDocument, "filings"},
		{ModelFederalFundsRate, "macro"},
		{ModelTreasuryConstantMaturity, "macro"},
		{ModelFredSeries, "macro"},
	}
	for _, tt := range tests {
		if cat := ModelCategory(tt.model); cat != tt.category {
			t.Errorf("ModelCategory(%s) = %q, want %q", tt.model, cat, tt.category)
		}
	}
}

func TestQueryParamsDate(t *testing.T) {
	fallback := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)
	p := QueryParams{ParamStartDate: "2023-08-04", ParamEndDate: "08/04/2023"}

	got, err := p.Date(ParamStartDate, fallback)
	if err != nil || got.Format("2006-01-02") != "2023-08-04" {
		t.Errorf("Date(start) = %v, %v", got, err)
	}
	if got, err := p.Date("missing", fallback); err != nil || !got.Equal(fallback) {
		t.Errorf("Date(missing) = %v, %v; want fallback", got, err)
	}
	_, err = p.Date(ParamEndDate, fallback)
	var bad *ErrInvalidParam
	if !errors.As(err, &bad) || bad.Value != "08/04/2023" {
		t.Errorf("expected ErrInvalidParam, got %v", err)
	}
}

func TestQueryParamsInt(t *testing.T) {
	for in, want := range map[string]int{"": 0, "0": 0, "25": 25} {
		got, err := QueryParams{ParamLimit: in}.Int(ParamLimit)
		if err != nil || got != want {
			t.Errorf("Int(%q) = %d, %v", in, got, err)
		}
	}
	for _, in := range []string{"25abc", "-1"} {
		if _, err := (QueryParams{ParamLimit: in}).Int(ParamLimit); err == nil {
			t.Errorf("Int(%q): expected error", in)
		}
	}
}
