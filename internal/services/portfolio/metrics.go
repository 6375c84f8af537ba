package portfolio

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/ghostwatch/internal/models"
)

// round2 rounds half away from zero to 2 decimal places.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func ptr(v float64) *float64 { return &v }

// SimpleGainPercent returns (value - cost) / cost * 100. ok is false when
// cost is not positive, where the percentage is undefined.
func SimpleGainPercent(value, cost float64) (pct float64, ok bool) {
	if cost <= 0 {
		return 0, false
	}
	return (value - cost) / cost * 100, true
}

// trendTolerance is relative to the larger operand and only absorbs
// floating point noise, so sub-cent prices still move.
const trendTolerance = 1e-9

// TrendOf compares a current figure to its reference on unrounded values.
func TrendOf(current, reference float64) models.Trend {
	tol := trendTolerance * math.Max(math.Abs(current), math.Abs(reference))
	switch diff := current - reference; {
	case diff > tol:
		return models.TrendUp
	case diff < -tol:
		return models.TrendDown
	default:
		return models.TrendBreakEven
	}
}

// PerformanceMetricsFor derives the consumer figures of a performance block.
// Upstream percentages are ratios and are scaled to percent here.
func PerformanceMetricsFor(p models.Performance) models.PerformanceMetrics {
	m := models.PerformanceMetrics{
		CurrentValue:                        round2(p.CurrentValueInBaseCurrency),
		TotalInvestment:                     round2(p.TotalInvestment),
		NetPerformance:                      round2(p.NetPerformance),
		NetPerformancePct:                   round2(p.NetPerformancePercentage * 100),
		NetPerformanceWithCurrencyEffect:    round2(p.NetPerformanceWithCurrencyEffect),
		NetPerformancePctWithCurrencyEffect: round2(p.NetPerformancePercentageWithCurrencyEffect * 100),
		CurrentNetWorth:                     round2(p.CurrentNetWorth),
		Trend:                               TrendOf(p.CurrentValueInBaseCurrency, p.TotalInvestment),
	}
	if pct, ok := SimpleGainPercent(p.CurrentValueInBaseCurrency, p.TotalInvestment); ok {
		m.SimpleGainPct = ptr(round2(pct))
	}
	return m
}

// HoldingMetricsFor derives per-holding figures. Inert holdings (quantity
// not positive) yield zero prices and a break-even trend.
func HoldingMetricsFor(h models.Holding) models.HoldingMetrics {
	value := h.ValueInBase()

	var avgBuy, priceInBase float64
	if h.Quantity > 0 {
		avgBuy = h.Investment / h.Quantity
		priceInBase = value / h.Quantity
	}
	gain := value - h.Investment

	m := models.HoldingMetrics{
		Quantity:          h.Quantity,
		Investment:        round2(h.Investment),
		ValueInBase:       round2(value),
		AvgBuyPrice:       round2(avgBuy),
		MarketPriceInBase: round2(priceInBase),
		GainValue:         round2(gain),
		Trend:             TrendOf(priceInBase, avgBuy),
	}
	if pct, ok := SimpleGainPercent(value, h.Investment); ok {
		m.GainPct = ptr(round2(pct))
	}
	return m
}
