package fred

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seenimoa/filingret/internal/provider"
)

func newMockServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("api_key") != "test_key" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Path == "/series/observations" {
			seen = append(seen, r.URL.Query().Get("series_id"))
			json.NewEncoder(w).Encode(map[string]any{
				"observations": []map[string]string{
					{"date": "2024-01-01", "value": "5.33"},
					{"date": "2024-01-02", "value": "5.34"},
					{"date": "2024-01-03", "value": "."},
				},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestProviderInfo(t *testing.T) {
	p := New(Options{})
	info := p.Info()
	if info.Name != "fred" {
		t.Errorf("expected name fred, got %s", info.Name)
	}
	if len(info.Credentials) != 1 {
		t.Fatalf("expected 1 credential, got %d", len(info.Credentials))
	}
	if info.Credentials[0].Name != "api_key" {
		t.Errorf("expected credential name api_key, got %s", info.Credentials[0].Name)
	}
	if !info.Credentials[0].Required {
		t.Error("api_key should be required")
	}

	modelSet := make(map[provider.ModelType]bool)
	for _, m := range p.SupportedModels() {
		modelSet[m] = true
	}
	for _, m := range []provider.ModelType{provider.ModelFredSeries, provider.ModelFederalFundsRate, provider.ModelTreasuryConstantMaturity} {
		if !modelSet[m] {
			t.Errorf("missing expected model: %s", m)
		}
	}
}

func TestProviderInitSuccess(t *testing.T) {
	p := New(Options{})
	err := p.Init(map[string]string{"api_key": "test_key_123"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.APIKey() != "test_key_123" {
		t.Errorf("expected api key test_key_123, got %s", p.APIKey())
	}
}

func TestProviderInitMissingKey(t *testing.T) {
	p := New(Options{})
	err := p.Init(map[string]string{})
	if err == nil {
		t.Error("expected error for missing api_key")
	}
}

func TestAPIKeyInjection(t *testing.T) {
	p := New(Options{})
	_ = p.Init(map[string]string{"api_key": "my_fred_key"})

	f := p.Fetcher(provider.ModelFredSeries)
	if f == nil {
		t.Fatal("nil fetcher")
	}

	wrapper, ok := f.(*apiKeyInjector)
	if !ok {
		t.Fatalf("expected apiKeyInjector, got %T", f)
	}
	if *wrapper.apiKey != "my_fred_key" {
		t.Errorf("expected api key my_fred_key, got %s", *wrapper.apiKey)
	}
	if p.Fetcher(provider.ModelType("Nonexistent")) != nil {
		t.Error("expected nil fetcher for unsupported model")
	}
}

func TestFetchWithoutKeyFails(t *testing.T) {
	p := New(Options{})
	_, err := p.Fetcher(provider.ModelFederalFundsRate).Fetch(context.Background(), provider.QueryParams{})
	if _, ok := err.(*provider.ErrInvalidCredentials); !ok {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestFredSeriesWithMockServer(t *testing.T) {
	srv, seen := newMockServer(t)
	p := New(Options{BaseURL: srv.URL})
	_ = p.Init(map[string]string{"api_key": "test_key"})

	res, err := p.Fetcher(provider.ModelFredSeries).Fetch(context.Background(), provider.QueryParams{
		provider.ParamSeriesID:  "vixcls",
		provider.ParamStartDate: "2024-01-01",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	points := res.Data.([]provider.SeriesPoint)
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2 (missing value skipped)", len(points))
	}
	if points[1].Date != "2024-01-02" || points[1].Value != 5.34 {
		t.Errorf("unexpected point: %+v", points[1])
	}
	if (*seen)[0] != "VIXCLS" {
		t.Errorf("series_id = %q, want VIXCLS", (*seen)[0])
	}
}

func TestTreasuryMaturitySelection(t *testing.T) {
	srv, seen := newMockServer(t)
	p := New(Options{BaseURL: srv.URL})
	_ = p.Init(map[string]string{"api_key": "test_key"})
	f := p.Fetcher(provider.ModelTreasuryConstantMaturity)

	for _, m := range []string{"", "2y", "3M"} {
		if _, err := f.Fetch(context.Background(), provider.QueryParams{provider.ParamMaturity: m}); err != nil {
			t.Fatalf("Fetch(%q): %v", m, err)
		}
	}
	want := []string{"DGS10", "DGS2", "DGS3MO"}
	for i, w := range want {
		if (*seen)[i] != w {
			t.Errorf("request %d series = %q, want %q", i, (*seen)[i], w)
		}
	}
	if _, err := f.Fetch(context.Background(), provider.QueryParams{provider.ParamMaturity: "7y"}); err == nil {
		t.Error("expected error for unsupported maturity")
	}
}

func TestFredURLBuilder(t *testing.T) {
	u := fredURL("https://api.stlouisfed.org/fred", "series/observations", nil, "testkey")
	for _, substr := range []string{"/fred/series/observations?", "api_key=testkey", "file_type=json"} {
		if !strings.Contains(u, substr) {
			t.Errorf("fredURL = %q, missing %q", u, substr)
		}
	}
}
