package models

import "time"

// Trend describes the direction of a holding relative to its cost basis
type Trend string

const (
	TrendUp        Trend = "up"
	TrendDown      Trend = "down"
	TrendBreakEven Trend = "break_even"
)

// PerformanceMetrics are the consumer-facing figures derived from a Performance.
// Percentages are pre-multiplied by 100; all values are rounded to 2 dp.
type PerformanceMetrics struct {
	CurrentValue                        float64  `json:"current_value"`
	TotalInvestment                     float64  `json:"total_investment"`
	NetPerformance                      float64  `json:"net_performance"`
	NetPerformancePct                   float64  `json:"net_performance_pct"`
	NetPerformanceWithCurrencyEffect    float64  `json:"net_performance_with_currency_effect"`
	NetPerformancePctWithCurrencyEffect float64  `json:"net_performance_pct_with_currency_effect"`
	CurrentNetWorth                     float64  `json:"current_net_worth"`
	SimpleGainPct                       *float64 `json:"simple_gain_pct,omitempty"` // nil when investment is not positive
	Trend                               Trend    `json:"trend"`
}

// HoldingMetrics are derived from one active holding on each read
type HoldingMetrics struct {
	Quantity          float64  `json:"quantity"`
	Investment        float64  `json:"investment"`
	ValueInBase       float64  `json:"value_in_base"`
	AvgBuyPrice       float64  `json:"avg_buy_price"`
	MarketPriceInBase float64  `json:"market_price_in_base"`
	GainValue         float64  `json:"gain_value"`
	GainPct           *float64 `json:"gain_pct,omitempty"`
	Trend             Trend    `json:"trend"`
}

// AccountHealth summarises how complete an account's slice of the snapshot is.
// Inert holdings are not counted.
type AccountHealth struct {
	PerformanceAvailable bool `json:"performance_available"`
	HoldingsAvailable    bool `json:"holdings_available"`
	ActiveHoldings       int  `json:"active_holdings"`
	UnpricedHoldings     int  `json:"unpriced_holdings"`
	Healthy              bool `json:"healthy"`
}

// AccountView is an account with its derived metrics
type AccountView struct {
	Account     Account             `json:"account"`
	Key         EntityKey           `json:"key"`
	Performance *PerformanceMetrics `json:"performance,omitempty"`
	Health      AccountHealth       `json:"health"`
}

// PortfolioSummary is the portfolio-level read model
type PortfolioSummary struct {
	Name         string             `json:"name"`
	Key          EntityKey          `json:"key"`
	BaseCurrency string             `json:"base_currency,omitempty"`
	Global       PerformanceMetrics `json:"global"`
	Accounts     []AccountView      `json:"accounts"`
	Healthy      bool               `json:"healthy"`
	Degraded     []string           `json:"degraded,omitempty"`
	FetchedAt    time.Time          `json:"fetched_at"`
}

// HoldingView is an active holding annotated with metrics and limit status
type HoldingView struct {
	Key         EntityKey      `json:"key"`
	AccountID   string         `json:"account_id"`
	AccountName string         `json:"account_name"`
	Holding     Holding        `json:"holding"`
	Metrics     HoldingMetrics `json:"metrics"`
	LowLimit    LimitStatus    `json:"low_limit"`
	HighLimit   LimitStatus    `json:"high_limit"`
}

// WatchlistView is a watchlist item annotated with limit status
type WatchlistView struct {
	Key       EntityKey     `json:"key"`
	Item      WatchlistItem `json:"item"`
	LowLimit  LimitStatus   `json:"low_limit"`
	HighLimit LimitStatus   `json:"high_limit"`
}
