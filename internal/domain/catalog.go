package domain

import (
	"fmt"
	"strings"
)

// Category groups tracked assets the way the marketplace lists them.
type Category string

const (
	CategoryCurrency Category = "currency"
	CategoryCrypto   Category = "crypto"
	CategoryGold     Category = "gold"
	CategoryTransfer Category = "transfer"
)

// AssetInfo describes a catalogued asset. Asset.BaseValue is in DZD.
type AssetInfo struct {
	Asset    TrackedAsset
	Name     string
	Category Category
}

// Catalog lists the assets the marketplace tracks, in display order.
var Catalog = []AssetInfo{
	{TrackedAsset{ID: "EUR", BaseValue: 252, Volatility: 0.005}, "Euro", CategoryCurrency},
	{TrackedAsset{ID: "USD", BaseValue: 228, Volatility: 0.005}, "US Dollar", CategoryCurrency},
	{TrackedAsset{ID: "GBP", BaseValue: 295, Volatility: 0.005}, "British Pound", CategoryCurrency},
	{TrackedAsset{ID: "CAD", BaseValue: 165, Volatility: 0.005}, "Canadian Dollar", CategoryCurrency},
	{TrackedAsset{ID: "CHF", BaseValue: 270, Volatility: 0.005}, "Swiss Franc", CategoryCurrency},
	{TrackedAsset{ID: "TRY", BaseValue: 7, Volatility: 0.01}, "Turkish Lira", CategoryCurrency},
	{TrackedAsset{ID: "SAR", BaseValue: 60, Volatility: 0.005}, "Saudi Riyal", CategoryCurrency},
	{TrackedAsset{ID: "AED", BaseValue: 62, Volatility: 0.005}, "UAE Dirham", CategoryCurrency},
	{TrackedAsset{ID: "CNY", BaseValue: 31, Volatility: 0.005}, "Chinese Yuan", CategoryCurrency},
	{TrackedAsset{ID: "BTC", BaseValue: 15500000, Volatility: 0.02}, "Bitcoin", CategoryCrypto},
	{TrackedAsset{ID: "ETH", BaseValue: 580000, Volatility: 0.025}, "Ethereum", CategoryCrypto},
	{TrackedAsset{ID: "USDT", BaseValue: 230, Volatility: 0.004}, "Tether", CategoryCrypto},
	{TrackedAsset{ID: "GOLD18", BaseValue: 15000, Volatility: 0.003}, "Gold 18k (g)", CategoryGold},
	{TrackedAsset{ID: "GOLD21", BaseValue: 17500, Volatility: 0.003}, "Gold 21k (g)", CategoryGold},
	{TrackedAsset{ID: "GOLD24", BaseValue: 20000, Volatility: 0.003}, "Gold 24k (g)", CategoryGold},
	{TrackedAsset{ID: "WISE", BaseValue: 256, Volatility: 0.004}, "Wise (EUR)", CategoryTransfer},
	{TrackedAsset{ID: "PAYSERA", BaseValue: 254, Volatility: 0.004}, "Paysera (EUR)", CategoryTransfer},
	{TrackedAsset{ID: "WU", BaseValue: 250, Volatility: 0.004}, "Western Union (EUR)", CategoryTransfer},
}

var catalogByID map[string]AssetInfo

func init() {
	catalogByID = make(map[string]AssetInfo, len(Catalog))
	for _, info := range Catalog {
		catalogByID[info.Asset.ID] = info
	}
}

// LookupAsset finds a catalogued asset by id, case-insensitively.
func LookupAsset(id string) (AssetInfo, bool) {
	info, ok := catalogByID[strings.ToUpper(strings.TrimSpace(id))]
	return info, ok
}

// TrackedAssets resolves ids against the catalogue. No ids means the whole
// catalogue.
func TrackedAssets(ids []string) ([]TrackedAsset, error) {
	if len(ids) == 0 {
		out := make([]TrackedAsset, 0, len(Catalog))
		for _, info := range Catalog {
			out = append(out, info.Asset)
		}
		return out, nil
	}

	out := make([]TrackedAsset, 0, len(ids))
	for _, id := range ids {
		info, ok := LookupAsset(id)
		if !ok {
			return nil, fmt.Errorf("unknown asset: %s", id)
		}
		out = append(out, info.Asset)
	}
	return out, nil
}

// SupportedCodes lists every catalogued code plus the base currency.
func SupportedCodes() []string {
	codes := []string{string(BaseCurrency)}
	for _, info := range Catalog {
		codes = append(codes, info.Asset.ID)
	}
	return codes
}
