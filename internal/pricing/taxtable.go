package pricing

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// TaxTable maps a tax code to its rate, e.g. "CH-7.7" -> 0.077.
type TaxTable map[string]decimal.Decimal

// Rate returns the rate for code. Unknown codes resolve to zero with
// known=false so callers can flag them.
func (t TaxTable) Rate(code string) (rate decimal.Decimal, known bool) {
	rate, known = t[code]
	if !known {
		return decimal.Zero, false
	}
	return rate, true
}

func DefaultTaxTable() TaxTable {
	return TaxTable{
		"CH-7.7": decimal.RequireFromString("0.077"),
		"CH-2.6": decimal.RequireFromString("0.026"),
		"CH-0":   decimal.Zero,
	}
}

type taxFile struct {
	Rates map[string]float64 `yaml:"rates"`
}

// LoadTaxTable reads a YAML file of the form
//
//	rates:
//	  CH-8.1: 0.081
//	  CH-2.6: 0.026
//
// An empty path returns DefaultTaxTable.
func LoadTaxTable(path string) (TaxTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTaxTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tax table: %w", err)
	}
	return ParseTaxTable(raw)
}

func ParseTaxTable(raw []byte) (TaxTable, error) {
	var file taxFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse tax table: %w", err)
	}
	if len(file.Rates) == 0 {
		return nil, fmt.Errorf("tax table has no rates")
	}

	table := make(TaxTable, len(file.Rates))
	for code, value := range file.Rates {
		code = strings.TrimSpace(code)
		rate := decimal.NewFromFloat(value)
		if code == "" {
			return nil, fmt.Errorf("tax table has an empty code")
		}
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("tax rate for %s must be in [0, 1), got %s", code, rate)
		}
		table[code] = rate
	}
	return table, nil
}
