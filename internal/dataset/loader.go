package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alexiavacaru/eur-ron-political-risk/internal/domain"
	"github.com/alexiavacaru/eur-ron-political-risk/internal/ml/common"

	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
}

var requiredColumns = []string{
	domain.ColumnDate,
	domain.ColumnLogReturn,
	domain.ColumnEPU,
}

type Options struct {
	// Sheet selects the worksheet for .xlsx input. Empty means the first sheet.
	Sheet string
}

// Load reads a .csv or .xlsx modeling dataset and returns it sorted by date.
func Load(path string, opts Options) (domain.ObservationSet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return domain.ObservationSet{}, fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return domain.ObservationSet{}, fmt.Errorf("open workbook: %w", err)
		}
		defer f.Close()
		return readWorkbook(f, opts.Sheet)
	default:
		return domain.ObservationSet{}, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
}

func ReadCSV(r io.Reader) (domain.ObservationSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return domain.ObservationSet{}, fmt.Errorf("read csv: %w", err)
	}
	return FromRecords(records)
}

// ReadXLSX parses a workbook from r.
func ReadXLSX(r io.Reader, sheet string) (domain.ObservationSet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return domain.ObservationSet{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readWorkbook(f, sheet)
}

func readWorkbook(f *excelize.File, sheet string) (domain.ObservationSet, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return domain.ObservationSet{}, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return domain.ObservationSet{}, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return FromRecords(rows)
}

// FromRecords converts a header row plus data rows into an ObservationSet.
func FromRecords(records [][]string) (domain.ObservationSet, error) {
	if len(records) == 0 {
		return domain.ObservationSet{}, errors.New("dataset is empty")
	}

	index := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[name]; !dup && name != "" {
			index[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return domain.ObservationSet{}, common.MissingColumn(col)
		}
	}

	estimators := make([]string, 0, len(domain.EstimatorColumns))
	for _, col := range domain.EstimatorColumns {
		if _, ok := index[col]; ok {
			estimators = append(estimators, col)
		}
	}
	_, hasEvent := index[domain.ColumnEventWindow]
	_, hasLabel := index[domain.ColumnHighVolatility]

	rows := make([]domain.Observation, 0, len(records)-1)
	for n, rec := range records[1:] {
		line := n + 2
		if blankRecord(rec) {
			continue
		}
		date, err := parseDate(cell(rec, index[domain.ColumnDate]))
		if err != nil {
			return domain.ObservationSet{}, fmt.Errorf("row %d: %w", line, err)
		}
		obs := domain.Observation{
			Date:           date,
			LogReturn:      parseNumber(cell(rec, index[domain.ColumnLogReturn])),
			EPU:            parseNumber(cell(rec, index[domain.ColumnEPU])),
			HighVolatility: math.NaN(),
		}
		if hasEvent {
			obs.EventWindow = parseNumber(cell(rec, index[domain.ColumnEventWindow]))
		}
		if hasLabel {
			label, err := parseLabel(cell(rec, index[domain.ColumnHighVolatility]))
			if err != nil {
				return domain.ObservationSet{}, fmt.Errorf("row %d: %w", line, err)
			}
			obs.HighVolatility = label
		}
		if len(estimators) > 0 {
			obs.Estimators = make(map[string]float64, len(estimators))
			for _, col := range estimators {
				obs.Estimators[col] = parseNumber(cell(rec, index[col]))
			}
		}
		rows = append(rows, obs)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	present := make([]string, 0, len(index))
	for name := range index {
		present = append(present, name)
	}
	return domain.NewObservationSet(present, rows), nil
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

// thousandsGrouped matches numbers whose commas only separate groups of
// three digits. Any other comma, such as a decimal comma, is ambiguous.
var thousandsGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// parseNumber returns NaN for blanks, missing-value markers and ambiguous
// comma use.
func parseNumber(raw string) float64 {
	switch strings.ToLower(raw) {
	case "", "na", "nan", "null", "none":
		return math.NaN()
	}
	if strings.Contains(raw, ",") {
		if !thousandsGrouped.MatchString(raw) {
			return math.NaN()
		}
		raw = strings.ReplaceAll(raw, ",", "")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseLabel(raw string) (float64, error) {
	v := parseNumber(raw)
	if math.IsNaN(v) {
		return v, nil
	}
	switch v {
	case 0, 1:
		return v, nil
	default:
		return 0, fmt.Errorf("label %q is not binary", raw)
	}
}
