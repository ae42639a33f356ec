// Package ratetable builds the static rate table conversions run against.
package ratetable

import (
	"context"
	"fmt"
	"os"

	"dinar-ticker/internal/domain"

	"gopkg.in/yaml.v3"
)

// Defaults returns the built-in table, one entry per catalogued asset at its
// base value.
func Defaults() domain.RateTable {
	table := make(domain.RateTable, len(domain.Catalog))
	for _, info := range domain.Catalog {
		table[domain.Code(info.Asset.ID)] = info.Asset.BaseValue
	}
	return table
}

// File is the on-disk shape of a rate table:
//
//	base: DZD
//	rates:
//	  EUR: 252
//	  USD: 228
type File struct {
	Base  string             `yaml:"base"`
	Rates map[string]float64 `yaml:"rates"`
}

// FileSource reads a YAML rate table from Path on every load.
type FileSource struct {
	Path string
	Base domain.Code
}

func NewFileSource(path string, base domain.Code) *FileSource {
	return &FileSource{Path: path, Base: base}
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) LoadRates(ctx context.Context) (domain.RateTable, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read rate file: %w", err)
	}
	return Parse(data, s.Base)
}

// Parse decodes a YAML rate table. A declared base that differs from base is
// rejected, and so is any non-positive rate.
func Parse(data []byte, base domain.Code) (domain.RateTable, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rate file: %w", err)
	}
	if f.Base != "" && domain.NormalizeCode(f.Base) != base {
		return nil, fmt.Errorf("rate file base %s does not match %s", f.Base, base)
	}

	table := make(domain.RateTable, len(f.Rates))
	for code, rate := range f.Rates {
		c := domain.NormalizeCode(code)
		if c == "" {
			return nil, fmt.Errorf("rate file: empty code")
		}
		if rate <= 0 {
			return nil, fmt.Errorf("rate file: rate for %s must be positive, got %v", c, rate)
		}
		table[c] = rate
	}
	return table, nil
}
