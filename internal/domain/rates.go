package domain

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Code is an uppercase asset code such as "EUR", "BTC" or "GOLD24".
type Code string

// BaseCurrency is the currency every cross pair is triangulated through.
const BaseCurrency Code = "DZD"

// DisplayPlaces is the number of decimals used when showing amounts.
const DisplayPlaces int32 = 2

// NormalizeCode trims and uppercases a user supplied asset code.
func NormalizeCode(s string) Code {
	return Code(strings.ToUpper(strings.TrimSpace(s)))
}

// RateTable maps an asset code to units of base currency per unit of asset.
type RateTable map[Code]float64

// Lookup returns the rate for code. Zero, negative and non-finite entries
// are reported as missing.
func (t RateTable) Lookup(code Code) (float64, bool) {
	rate, ok := t[code]
	if !ok || rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, false
	}
	return rate, true
}

// Clone returns a copy that shares nothing with t.
func (t RateTable) Clone() RateTable {
	out := make(RateTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Merge copies every valid entry of other into t, normalizing codes.
func (t RateTable) Merge(other RateTable) {
	for k, v := range other {
		code := NormalizeCode(string(k))
		if _, ok := other.Lookup(k); !ok || code == "" {
			continue
		}
		t[code] = v
	}
}

// Codes returns the table's codes in ascending order.
func (t RateTable) Codes() []Code {
	codes := make([]Code, 0, len(t))
	for k := range t {
		codes = append(codes, k)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// ConversionRequest asks how much Amount of From is worth in To.
type ConversionRequest struct {
	Amount float64 `json:"amount"`
	From   Code    `json:"from"`
	To     Code    `json:"to"`
}

// ConversionResult is the answer to a ConversionRequest.
type ConversionResult struct {
	Amount    float64   `json:"amount"`
	From      Code      `json:"from"`
	To        Code      `json:"to"`
	Result    float64   `json:"result"`
	Rate      float64   `json:"rate"`
	Display   string    `json:"display"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// RoundTo rounds v half away from zero to the given number of decimal
// places. Non-finite values are returned unchanged.
func RoundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// FormatAmount renders v with exactly places decimals.
func FormatAmount(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}
