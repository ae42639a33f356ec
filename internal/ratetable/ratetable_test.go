package ratetable

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dinar-ticker/internal/domain"
)

func TestDefaultsCoverCatalog(t *testing.T) {
	table := Defaults()
	if len(table) != len(domain.Catalog) {
		t.Fatalf("expected %d rates, got %d", len(domain.Catalog), len(table))
	}
	if table["EUR"] != 252 || table["USD"] != 228 {
		t.Fatalf("unexpected default rates: EUR=%v USD=%v", table["EUR"], table["USD"])
	}
}

func TestParse(t *testing.T) {
	table, err := Parse([]byte("base: dzd\nrates:\n  eur: 250.5\n  USD: 227\n"), domain.BaseCurrency)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table["EUR"] != 250.5 || table["USD"] != 227 {
		t.Fatalf("unexpected table: %+v", table)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"wrong base":    "base: EUR\nrates:\n  USD: 1.1\n",
		"zero rate":     "rates:\n  USD: 0\n",
		"negative rate": "rates:\n  USD: -3\n",
		"not yaml":      "rates: [1, 2",
	}
	for name, input := range cases {
		if _, err := Parse([]byte(input), domain.BaseCurrency); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestFileSourceLoadRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte("rates:\n  GBP: 300\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	src := NewFileSource(path, domain.BaseCurrency)
	table, err := src.LoadRates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table["GBP"] != 300 {
		t.Fatalf("unexpected table: %+v", table)
	}
	if src.Name() != "file:"+path {
		t.Fatalf("unexpected name %s", src.Name())
	}

	missing := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"), domain.BaseCurrency)
	if _, err := missing.LoadRates(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}
