package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	cyerrors "github.com/YuminosukeSato/cropyield/pkg/errors"
)

// RowError describes one CSV row rejected at ingestion. Line is 1-based and
// counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ReadLabeledCSV reads a header row followed by labeled records. Rows that fail
// to parse or validate are skipped and returned as RowErrors; err is reserved
// for unreadable input or a header missing required columns.
func ReadLabeledCSV(r io.Reader) ([]LabeledRecord, []RowError, error) {
	var out []LabeledRecord
	rejected, err := readCSV(r, true, func(raw map[string]any) error {
		rec, err := ParseLabeledRecord(raw)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, rejected, err
}

// ReadRecordsCSV reads unlabeled records; a yield column, if present, is ignored.
func ReadRecordsCSV(r io.Reader) ([]Record, []RowError, error) {
	var out []Record
	rejected, err := readCSV(r, false, func(raw map[string]any) error {
		rec, err := ParseRecord(raw)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, rejected, err
}

func readCSV(r io.Reader, labeled bool, accept func(map[string]any) error) ([]RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, cyerrors.NewModelError("ReadCSV", "missing header", cyerrors.ErrEmptyData)
	}
	if err != nil {
		return nil, cyerrors.Wrap(err, "read CSV header")
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	required := []string{TemperatureMean, AnnualPrecipitation, FertilizerUse, SoilType}
	if labeled {
		required = append(required, Yield)
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, cyerrors.NewValidationError(name, "column missing from CSV header", header)
		}
	}

	var rejected []RowError
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rejected = append(rejected, RowError{Line: line, Err: err})
			continue
		}
		raw, err := rowToMap(row, index, required)
		if err == nil {
			err = accept(raw)
		}
		if err != nil {
			rejected = append(rejected, RowError{Line: line, Err: err})
		}
	}
	return rejected, nil
}

func rowToMap(row []string, index map[string]int, required []string) (map[string]any, error) {
	raw := make(map[string]any, len(required))
	for _, name := range required {
		i := index[name]
		if i >= len(row) {
			return nil, cyerrors.NewValidationError(name, "required field is missing", nil)
		}
		cell := strings.TrimSpace(row[i])
		if name == SoilType {
			raw[name] = cell
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, cyerrors.NewValidationError(name, "must be a number", cell)
		}
		raw[name] = v
	}
	return raw, nil
}

// WriteCSV writes labeled records with a header row.
func WriteCSV(w io.Writer, records []LabeledRecord) error {
	cw := csv.NewWriter(w)
	header := []string{TemperatureMean, AnnualPrecipitation, FertilizerUse, SoilType, Yield}
	if err := cw.Write(header); err != nil {
		return cyerrors.Wrap(err, "write CSV header")
	}
	for _, r := range records {
		row := []string{
			strconv.FormatFloat(r.TemperatureMean, 'g', -1, 64),
			strconv.FormatFloat(r.AnnualPrecipitation, 'g', -1, 64),
			strconv.FormatFloat(r.FertilizerUse, 'g', -1, 64),
			r.SoilType,
			strconv.FormatFloat(r.Yield, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return cyerrors.Wrap(err, "write CSV row")
		}
	}
	cw.Flush()
	return cyerrors.Wrap(cw.Error(), "flush CSV")
}
