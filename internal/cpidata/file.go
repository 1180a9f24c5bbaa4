package cpidata

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/creco/imaikura/internal/inflation"
)

// FileSource loads the CPI table from a JSON or CSV file
type FileSource struct {
	Path string
}

// NewFileSource creates a file-backed CPI source
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// LoadTable reads the file, choosing the format by extension
func (s *FileSource) LoadTable(ctx context.Context) (*inflation.CpiTable, error) {
	rows, err := ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return inflation.NewCpiTable(rows), nil
}

// ReadFile reads CPI rows from a .json or .csv file
func ReadFile(path string) ([]inflation.CpiRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CPI file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ReadJSON(f)
	case ".csv":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported CPI file type: %s", path)
	}
}

// ReadJSON reads an array of {"year": ..., "<code>": ...} records
func ReadJSON(r io.Reader) ([]inflation.CpiRow, error) {
	var rows []inflation.CpiRow
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode CPI JSON: %w", err)
	}
	return rows, nil
}

// ReadCSV reads a CSV with a header row containing "year" and any of the
// supported currency codes, in any order. Unknown columns are ignored and
// missing currencies read as empty.
func ReadCSV(r io.Reader) ([]inflation.CpiRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("CPI CSV is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CPI CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	yearCol, ok := columns["year"]
	if !ok {
		return nil, fmt.Errorf("CPI CSV has no year column")
	}

	var rows []inflation.CpiRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CPI CSV line %d: %w", line, err)
		}

		year := field(record, yearCol)
		if year == "" {
			continue
		}

		values := make(map[string]string, len(inflation.Currencies))
		for _, code := range inflation.CurrencyCodes() {
			if col, ok := columns[code]; ok {
				values[code] = field(record, col)
			} else {
				values[code] = ""
			}
		}
		rows = append(rows, inflation.CpiRow{Year: year, Values: values})
	}

	return rows, nil
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// jsonRow fixes the key order of written files
type jsonRow struct {
	Year string `json:"year"`
	USD  string `json:"usd"`
	JPY  string `json:"jpy"`
	GBP  string `json:"gbp"`
	EUR  string `json:"eur"`
}

// WriteJSON writes rows in the format ReadJSON reads, indented by two spaces
func WriteJSON(w io.Writer, rows []inflation.CpiRow) error {
	out := make([]jsonRow, len(rows))
	for i, r := range rows {
		out[i] = jsonRow{
			Year: r.Year,
			USD:  r.Values["usd"],
			JPY:  r.Values["jpy"],
			GBP:  r.Values["gbp"],
			EUR:  r.Values["eur"],
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode CPI JSON: %w", err)
	}
	return nil
}

// Convert reads a CSV file and writes it as JSON
func Convert(inPath, outPath string) (int, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open CPI CSV: %w", err)
	}
	defer in.Close()

	rows, err := ReadCSV(in)
	if err != nil {
		return 0, err
	}

	if err := writeJSONFile(outPath, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// writeJSONFile atomically replaces path with rows encoded as JSON
func writeJSONFile(path string, rows []inflation.CpiRow) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "cpi-*.json")
	if err != nil {
		return fmt.Errorf("failed to create CPI JSON: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteJSON(tmp, rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close CPI JSON: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move CPI JSON: %w", err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("failed to chmod CPI JSON: %w", err)
	}
	return nil
}
