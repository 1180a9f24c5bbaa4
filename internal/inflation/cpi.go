package inflation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CpiRow is one year of CPI values keyed by lowercase currency code.
// An empty value means no data for that currency.
type CpiRow struct {
	Year   string
	Values map[string]string
}

// MarshalJSON writes the flat {"year": "...", "usd": "..."} shape
func (r CpiRow) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(r.Values)+1)
	for code, v := range r.Values {
		flat[code] = v
	}
	flat["year"] = r.Year
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat {"year": "...", "usd": "..."} shape
func (r *CpiRow) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("invalid CPI row: %w", err)
	}
	year, ok := flat["year"]
	if !ok {
		return fmt.Errorf("invalid CPI row: missing year")
	}
	delete(flat, "year")

	r.Year = year
	r.Values = flat
	return nil
}

// CpiTable is an immutable year → currency → CPI lookup table.
// It is safe for concurrent reads.
type CpiTable struct {
	rows  map[string]CpiRow
	years []string
}

// NewCpiTable indexes rows by year. A later row for the same year replaces
// an earlier one.
func NewCpiTable(rows []CpiRow) *CpiTable {
	t := &CpiTable{rows: make(map[string]CpiRow, len(rows))}
	for _, row := range rows {
		values := make(map[string]string, len(row.Values))
		for code, v := range row.Values {
			values[code] = v
		}
		if _, dup := t.rows[row.Year]; !dup {
			t.years = append(t.years, row.Year)
		}
		t.rows[row.Year] = CpiRow{Year: row.Year, Values: values}
	}
	sort.Strings(t.years)
	return t
}

// Len returns the number of years in the table
func (t *CpiTable) Len() int {
	return len(t.years)
}

// Years returns the years in ascending order
func (t *CpiTable) Years() []string {
	out := make([]string, len(t.years))
	copy(out, t.years)
	return out
}

// Rows returns a copy of every row in year order
func (t *CpiTable) Rows() []CpiRow {
	out := make([]CpiRow, 0, len(t.years))
	for _, y := range t.years {
		row := t.rows[y]
		values := make(map[string]string, len(row.Values))
		for code, v := range row.Values {
			values[code] = v
		}
		out = append(out, CpiRow{Year: y, Values: values})
	}
	return out
}

// Value returns the CPI for (year, currency) when it is a positive number
func (t *CpiTable) Value(year, currency string) (float64, bool) {
	row, ok := t.rows[year]
	if !ok {
		return 0, false
	}
	return parseCpi(row.Values[currency])
}

// HasData reports whether a usable CPI value exists for (year, currency)
func (t *CpiTable) HasData(year, currency string) bool {
	_, ok := t.Value(year, currency)
	return ok
}

// FirstYear returns the earliest year with usable data for currency
func (t *CpiTable) FirstYear(currency string) (int, bool) {
	for _, y := range t.years {
		if !t.HasData(y, currency) {
			continue
		}
		if n, err := strconv.Atoi(y); err == nil {
			return n, true
		}
	}
	return 0, false
}

// CpiPair holds the two CPI scalars needed by the calculator
type CpiPair struct {
	Then        float64
	Now         float64
	CurrentYear string // row actually used for Now
}

// Resolve finds the CPI of year and the current CPI for currency.
// The current row is the row for now.Year(), or the previous year when that
// row has not been published yet. It never looks further back.
func (t *CpiTable) Resolve(year, currency string, now time.Time) (CpiPair, *Failure) {
	code := strings.ToUpper(currency)

	row, ok := t.rows[year]
	if !ok {
		return CpiPair{}, &Failure{
			Kind:    CpiNotFound,
			Message: fmt.Sprintf("%s年のCPIデータが見つかりません", year),
		}
	}
	then, ok := parseCpi(row.Values[currency])
	if !ok {
		return CpiPair{}, &Failure{
			Kind:    CpiInvalid,
			Message: fmt.Sprintf("%s年の%sのCPIデータが無効です", year, code),
		}
	}

	// 現在年 → 前年の2段階のみ
	currentYear := strconv.Itoa(now.Year())
	current, ok := t.rows[currentYear]
	if !ok {
		currentYear = strconv.Itoa(now.Year() - 1)
		current, ok = t.rows[currentYear]
	}
	if !ok {
		return CpiPair{}, &Failure{
			Kind:    CurrentCpiNotFound,
			Message: "現在年のCPIデータが見つかりません",
		}
	}
	cpiNow, ok := parseCpi(current.Values[currency])
	if !ok {
		return CpiPair{}, &Failure{
			Kind:    CpiInvalid,
			Message: fmt.Sprintf("現在年の%sのCPIデータが無効です", code),
		}
	}

	return CpiPair{Then: then, Now: cpiNow, CurrentYear: currentYear}, nil
}

func parseCpi(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}
