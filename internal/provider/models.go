package provider

// ModelType names a kind of upstream data. The Data of a FetchResult for a
// model always has the Go type noted beside it.
type ModelType string

// --- Prices ---
const (
	ModelEquityHistorical ModelType = "EquityHistorical" // → models.PriceSeries
	ModelKeyStatistics    ModelType = "KeyStatistics"    // → *models.KeyStatistics (current snapshot)
	ModelEarningsHistory  ModelType = "EarningsHistory"  // → []models.EarningsEstimate (recent quarters)
)

// --- Filings (EDGAR) ---
const (
	ModelSecFiling      ModelType = "SecFiling"      // → []models.FilingRecord (submissions JSON)
	ModelCompanyFilings ModelType = "CompanyFilings" // → []models.FilingRecord (Atom feed)
	ModelCikMap         ModelType = "CikMap"         // → *models.CIKMapping
	ModelCompanyFacts   ModelType = "CompanyFacts"   // → *models.CompanyFacts
	ModelFilingDocument ModelType = "FilingDocument" // → *FilingText
)

// --- Macro ---
const (
	ModelFederalFundsRate         ModelType = "FederalFundsRate"         // → []SeriesPoint
	ModelTreasuryConstantMaturity ModelType = "TreasuryConstantMaturity" // → []SeriesPoint
	ModelFredSeries               ModelType = "FredSeries"               // → []SeriesPoint
)

// AllModels lists every model in pipeline order.
func AllModels() []ModelType {
	return []ModelType{
		ModelSecFiling, ModelCompanyFilings, ModelCikMap,
		ModelCompanyFacts, ModelFilingDocument,
		ModelEquityHistorical, ModelKeyStatistics, ModelEarningsHistory,
		ModelFederalFundsRate, ModelTreasuryConstantMaturity, ModelFredSeries,
	}
}

// ModelCategory names the stage of the pipeline a model feeds: "filings"
// (the event index and its features), "prices" (returns and market
// features), "market" (short interest and analyst consensus) or "macro".
func ModelCategory(m ModelType) string {
	switch m {
	case ModelEquityHistorical:
		return "prices"
	case ModelKeyStatistics, ModelEarningsHistory:
		return "market"
	case ModelSecFiling, ModelCompanyFilings, ModelCikMap,
		ModelCompanyFacts, ModelFilingDocument:
		return "filings"
	default:
		return "macro"
	}
}

// SeriesPoint is one dated observation of an economic time series.
type SeriesPoint struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Value float64 `json:"value"`
}

// FilingText is the plain text of a filing document and the sections found
// in it. Missing sections are empty strings.
type FilingText struct {
	URL         string `json:"url"`
	Text        string `json:"text"`
	MDA         string `json:"mda,omitempty"`
	RiskFactors string `json:"risk_factors,omitempty"`
}
