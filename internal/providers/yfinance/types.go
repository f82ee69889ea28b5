package yfinance

// --- v8 chart API ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol               string `json:"symbol"`
	Currency             string `json:"currency"`
	InstrumentType       string `json:"instrumentType"`
	ExchangeName         string `json:"exchangeName"`
	ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	GMTOffset            int    `json:"gmtoffset"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

// Yahoo leaves gaps as JSON nulls, hence the pointers.
type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- v10 quoteSummary API ---

type yfQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []yfQuoteSummaryResult `json:"result"`
		Error  *yfError               `json:"error"`
	} `json:"quoteSummary"`
}

type yfQuoteSummaryResult struct {
	DefaultKeyStatistics *yfDefaultKeyStatistics `json:"defaultKeyStatistics"`
	Price                *yfPrice                `json:"price"`
	EarningsHistory      *yfEarningsHistory      `json:"earningsHistory"`
}

// yfValue is Yahoo's {"raw":..,"fmt":..} pair. An absent value arrives as
// {} and leaves Raw nil.
type yfValue struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

type yfDefaultKeyStatistics struct {
	ShortPercentOfFloat yfValue `json:"shortPercentOfFloat"`
	ShortRatio          yfValue `json:"shortRatio"`
	SharesShort         yfValue `json:"sharesShort"`
	DateShortInterest   yfValue `json:"dateShortInterest"` // epoch seconds
}

type yfPrice struct {
	Symbol    string  `json:"symbol"`
	MarketCap yfValue `json:"marketCap"`
}

type yfEarningsHistory struct {
	History []yfEarningsQuarter `json:"history"`
}

type yfEarningsQuarter struct {
	Quarter     yfValue `json:"quarter"` // fiscal quarter end, epoch seconds
	EPSActual   yfValue `json:"epsActual"`
	EPSEstimate yfValue `json:"epsEstimate"`
}
