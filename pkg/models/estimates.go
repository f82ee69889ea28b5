package models

import "time"

// KeyStatistics is a point-in-time snapshot of a company's trading
// statistics. Values the source does not report are nil.
type KeyStatistics struct {
	Symbol              string    `json:"symbol"`
	AsOf                time.Time `json:"asOf"`
	ShortPercentOfFloat *float64  `json:"shortPercentOfFloat,omitempty"` // percent, 3.1 = 3.1%
	ShortRatio          *float64  `json:"shortRatio,omitempty"`          // days to cover
	MarketCap           *float64  `json:"marketCap,omitempty"`           // USD
}

// EarningsEstimate is one reported fiscal quarter with the analyst
// consensus EPS that preceded it.
type EarningsEstimate struct {
	QuarterEnd  time.Time `json:"quarterEnd"`
	EPSEstimate *float64  `json:"epsEstimate,omitempty"`
	EPSActual   *float64  `json:"epsActual,omitempty"`
}
