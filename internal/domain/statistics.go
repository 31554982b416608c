package domain

import (
	"math"
	"slices"

	"github.com/shopspring/decimal"
)

// Statistics summarizes a coin listing.
// Sums are decimal so that large market caps add up without float drift.
type Statistics struct {
	TotalCoins         int             `json:"total_coins"`
	PositiveCoins      int             `json:"positive_coins"`
	NegativeCoins      int             `json:"negative_coins"`
	NeutralCoins       int             `json:"neutral_coins"`
	TotalMarketCap     decimal.Decimal `json:"total_market_cap"`
	TotalVolume        decimal.Decimal `json:"total_volume"`
	AverageChange      decimal.Decimal `json:"average_change"`
	PositivePercentage float64         `json:"positive_percentage"`
	NegativePercentage float64         `json:"negative_percentage"`
}

// ComputeStatistics derives Statistics from coins.
func ComputeStatistics(coins []Coin) Statistics {
	s := Statistics{
		TotalCoins:     len(coins),
		TotalMarketCap: decimal.Zero,
		TotalVolume:    decimal.Zero,
		AverageChange:  decimal.Zero,
	}
	if len(coins) == 0 {
		return s
	}

	changeSum := decimal.Zero
	for _, c := range coins {
		switch {
		case c.PriceChangePct24h > 0:
			s.PositiveCoins++
		case c.PriceChangePct24h < 0:
			s.NegativeCoins++
		}
		s.TotalMarketCap = s.TotalMarketCap.Add(decimal.NewFromFloat(c.MarketCap))
		s.TotalVolume = s.TotalVolume.Add(decimal.NewFromFloat(c.TotalVolume))
		changeSum = changeSum.Add(decimal.NewFromFloat(c.PriceChangePct24h))
	}

	n := decimal.NewFromInt(int64(len(coins)))
	s.NeutralCoins = s.TotalCoins - s.PositiveCoins - s.NegativeCoins
	s.AverageChange = changeSum.Div(n)
	s.PositivePercentage = percentOf(s.PositiveCoins, s.TotalCoins)
	s.NegativePercentage = percentOf(s.NegativeCoins, s.TotalCoins)
	return s
}

func percentOf(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// FearGreed is a sentiment score on a 0..100 scale.
type FearGreed struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// FearGreedIndex scores the average 24h change: 50 + 2*avg, clamped to 0..100.
func FearGreedIndex(coins []Coin) FearGreed {
	if len(coins) == 0 {
		return FearGreed{Value: 50, Label: "Neutral"}
	}
	avg := ComputeStatistics(coins).AverageChange.InexactFloat64()
	v := math.Max(0, math.Min(100, 50+avg*2))

	var label string
	switch {
	case v <= 20:
		label = "Extreme Fear"
	case v <= 40:
		label = "Fear"
	case v <= 60:
		label = "Neutral"
	case v <= 80:
		label = "Greed"
	default:
		label = "Extreme Greed"
	}
	return FearGreed{Value: int(math.Round(v)), Label: label}
}

// Volatility is the population standard deviation of step returns, in percent, rounded to 2 places.
func Volatility(points []PricePoint) float64 {
	if len(points) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Price
		if prev > 0 {
			returns = append(returns, (points[i].Price-prev)/prev)
		}
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return round(math.Sqrt(variance)*100, 2)
}

// AveragePoint is one sample of a moving average series.
type AveragePoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// MovingAverage is the simple moving average of price over period samples.
func MovingAverage(points []PricePoint, period int) []AveragePoint {
	if period <= 0 || len(points) < period {
		return nil
	}
	out := make([]AveragePoint, 0, len(points)-period+1)
	sum := decimal.Zero
	for i, p := range points {
		sum = sum.Add(decimal.NewFromFloat(p.Price))
		if i >= period {
			sum = sum.Sub(decimal.NewFromFloat(points[i-period].Price))
		}
		if i >= period-1 {
			avg := sum.Div(decimal.NewFromInt(int64(period))).Round(8)
			out = append(out, AveragePoint{Timestamp: p.Timestamp, Value: avg.InexactFloat64()})
		}
	}
	return out
}

// SupportResistance returns the 20th and 80th percentile prices.
// ok is false for fewer than 10 samples.
func SupportResistance(points []PricePoint) (support, resistance float64, ok bool) {
	if len(points) < 10 {
		return 0, 0, false
	}
	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}
	slices.Sort(prices)
	n := float64(len(prices))
	return round(prices[int(n*0.2)], 8), round(prices[int(n*0.8)], 8), true
}

// MarketDominance is coinCap as a percentage of totalCap, 2 decimal places.
func MarketDominance(coinCap, totalCap float64) float64 {
	if coinCap == 0 || totalCap == 0 {
		return 0
	}
	d := decimal.NewFromFloat(coinCap).Div(decimal.NewFromFloat(totalCap)).Mul(decimal.NewFromInt(100))
	return d.Round(2).InexactFloat64()
}

// PriceChange returns the absolute and percentage change from previous to current.
func PriceChange(current, previous float64) (absolute, percentage float64) {
	if current == 0 || previous == 0 {
		return 0, 0
	}
	cur := decimal.NewFromFloat(current)
	prev := decimal.NewFromFloat(previous)
	abs := cur.Sub(prev)
	pct := abs.Div(prev).Mul(decimal.NewFromInt(100))
	return abs.Round(8).InexactFloat64(), pct.Round(2).InexactFloat64()
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
