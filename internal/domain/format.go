package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency is a quote currency accepted by the markets endpoints.
type Currency struct {
	Code   string
	Symbol string
	Name   string
}

var SupportedCurrencies = []Currency{
	{"usd", "$", "US Dollar"},
	{"eur", "€", "Euro"},
	{"btc", "₿", "Bitcoin"},
	{"eth", "Ξ", "Ethereum"},
	{"brl", "R$", "Brazilian Real"},
	{"gbp", "£", "British Pound"},
	{"jpy", "¥", "Japanese Yen"},
	{"cad", "C$", "Canadian Dollar"},
	{"aud", "A$", "Australian Dollar"},
	{"krw", "₩", "South Korean Won"},
}

var printer = message.NewPrinter(language.English)

// CurrencySymbol returns the display symbol for code, "$" when unknown.
func CurrencySymbol(code string) string {
	code = strings.ToLower(code)
	for _, c := range SupportedCurrencies {
		if c.Code == code {
			return c.Symbol
		}
	}
	return "$"
}

// IsSupportedCurrency reports whether code is one of SupportedCurrencies.
func IsSupportedCurrency(code string) bool {
	code = strings.ToLower(code)
	for _, c := range SupportedCurrencies {
		if c.Code == code {
			return true
		}
	}
	return false
}

// FormatPrice picks decimals by magnitude: 0 above 1000, 2 above 1, 4 above 0.01, else 8.
func FormatPrice(price float64, currency string) string {
	sym := CurrencySymbol(currency)
	if math.IsNaN(price) {
		return sym + "0.00"
	}
	abs := math.Abs(price)
	switch {
	case abs >= 1000:
		return sym + printer.Sprintf("%.2f", math.Round(price))
	case abs >= 1:
		return sym + printer.Sprintf("%.2f", price)
	case abs >= 0.01:
		return sym + trimZeros(fmt.Sprintf("%.4f", price))
	default:
		return sym + trimZeros(fmt.Sprintf("%.8f", price))
	}
}

// FormatCompact renders n with a T/B/M/K suffix.
func FormatCompact(n float64, decimals int) string {
	abs := math.Abs(n)
	var suffix string
	switch {
	case abs >= 1e12:
		n, suffix = n/1e12, "T"
	case abs >= 1e9:
		n, suffix = n/1e9, "B"
	case abs >= 1e6:
		n, suffix = n/1e6, "M"
	case abs >= 1e3:
		n, suffix = n/1e3, "K"
	}
	return trimZeros(printer.Sprintf("%.*f", decimals, n)) + suffix
}

// FormatMarketCap is FormatCompact with a currency symbol; zero renders as N/A.
func FormatMarketCap(v float64, currency string) string {
	if v == 0 {
		return "N/A"
	}
	return CurrencySymbol(currency) + FormatCompact(v, 1)
}

// FormatPercent renders pct with two decimals and an explicit plus sign.
func FormatPercent(pct float64) string {
	if math.IsNaN(pct) {
		return "0.00%"
	}
	if pct > 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatSupply renders a supply figure, N/A when unknown.
func FormatSupply(v *float64) string {
	if v == nil || *v == 0 {
		return "N/A"
	}
	return FormatCompact(*v, 0)
}

// FormatRank renders "#n", N/A when unranked.
func FormatRank(rank int) string {
	if rank <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("#%d", rank)
}

// FormatTimeAgo renders the distance from t to now in coarse units.
func FormatTimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	secs := int64(now.Sub(t).Seconds())
	plural := func(n int64, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s ago", unit)
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	switch {
	case secs < 60:
		return "Just now"
	case secs < 3600:
		return plural(secs/60, "minute")
	case secs < 86400:
		return plural(secs/3600, "hour")
	case secs < 2592000:
		return plural(secs/86400, "day")
	case secs < 31536000:
		return plural(secs/2592000, "month")
	default:
		return plural(secs/31536000, "year")
	}
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
