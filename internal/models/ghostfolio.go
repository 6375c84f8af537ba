// Package models defines data structures for Ghostwatch
package models

// Account represents a Ghostfolio account
type Account struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Currency   string `json:"currency"`
	IsExcluded bool   `json:"isExcluded"`
}

// Performance holds portfolio performance figures, either global or for one account.
type Performance struct {
	CurrentValueInBaseCurrency                 float64 `json:"currentValueInBaseCurrency"`
	TotalInvestment                            float64 `json:"totalInvestment"`
	NetPerformance                             float64 `json:"netPerformance"`
	NetPerformancePercentage                   float64 `json:"netPerformancePercentage"` // ratio, not pre-multiplied
	NetPerformanceWithCurrencyEffect           float64 `json:"netPerformanceWithCurrencyEffect"`
	NetPerformancePercentageWithCurrencyEffect float64 `json:"netPerformancePercentageWithCurrencyEffect"`
	CurrentNetWorth                            float64 `json:"currentNetWorth"`
}

// Holding represents a position held in a single account
type Holding struct {
	Symbol              string   `json:"symbol"`
	DataSource          string   `json:"dataSource"`
	Name                string   `json:"name,omitempty"`
	Quantity            float64  `json:"quantity"`
	Investment          float64  `json:"investment"`
	ValueInBaseCurrency *float64 `json:"valueInBaseCurrency,omitempty"`
	Value               *float64 `json:"value,omitempty"`
	MarketPrice         float64  `json:"marketPrice"`
	Currency            string   `json:"currency"`
	AssetClass          string   `json:"assetClass,omitempty"`
	AssetSubClass       string   `json:"assetSubClass,omitempty"`
}

// IsActive reports whether the holding carries a positive quantity.
// Inert holdings stay in raw data but are skipped by metrics and entities.
func (h Holding) IsActive() bool {
	return h.Quantity > 0
}

// ValueInBase returns the holding value in the portfolio base currency,
// preferring valueInBaseCurrency over the plain value field.
func (h Holding) ValueInBase() float64 {
	if h.ValueInBaseCurrency != nil {
		return *h.ValueInBaseCurrency
	}
	if h.Value != nil {
		return *h.Value
	}
	return 0
}

// WatchlistItem represents a watched symbol. Price and change fields stay nil
// until market data enrichment succeeds.
type WatchlistItem struct {
	Symbol                 string   `json:"symbol"`
	DataSource             string   `json:"dataSource"`
	Name                   string   `json:"name,omitempty"`
	MarketPrice            *float64 `json:"marketPrice,omitempty"`
	MarketDate             string   `json:"marketDate,omitempty"`
	MarketChange           *float64 `json:"marketChange,omitempty"`
	MarketChangePercentage *float64 `json:"marketChangePercentage,omitempty"`
	Currency               string   `json:"currency,omitempty"`
	AssetClass             string   `json:"assetClass,omitempty"`
	Trend50d               string   `json:"trend50d,omitempty"`
	Trend200d              string   `json:"trend200d,omitempty"`
}

// HasMarketKey reports whether the item can be looked up in the market data endpoint.
func (w WatchlistItem) HasMarketKey() bool {
	return w.Symbol != "" && w.DataSource != ""
}

// MarketDataPoint is one dated price from the market data history
type MarketDataPoint struct {
	Date        string  `json:"date"`
	MarketPrice float64 `json:"marketPrice"`
}

// AssetProfile carries the descriptive fields of a symbol
type AssetProfile struct {
	Currency   string `json:"currency"`
	AssetClass string `json:"assetClass"`
	Name       string `json:"name,omitempty"`
}

// MarketDataDetail is the market data response for one symbol.
// MarketData is ordered oldest to newest.
type MarketDataDetail struct {
	MarketData   []MarketDataPoint `json:"marketData"`
	AssetProfile AssetProfile      `json:"assetProfile"`
}

// AccountList is the result of the account listing call
type AccountList struct {
	Accounts     []Account `json:"accounts"`
	BaseCurrency string    `json:"base_currency,omitempty"`
}
