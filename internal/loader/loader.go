// Package loader turns CSV and XLSX exports into raw row dictionaries for
// the normalization layer. Headers are kept exactly as found in the file;
// all header interpretation belongs to the normalizer's alias tables.
//
// The loader deliberately performs no column sniffing or type detection:
// it only reads rows.
package loader

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rehza97/billing-reconciler/pkg/errors"
	"github.com/rehza97/billing-reconciler/pkg/logger"

	"github.com/xuri/excelize/v2"
)

// LoadRows reads one export file into raw rows keyed by the file's own
// header strings. The format is chosen by extension: .csv or .xlsx.
func LoadRows(path string) ([]map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.FileError(errors.CodeFileNotFound, path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path)
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, errors.FileError(errors.CodeFileCorrupted, path, nil).
			WithSuggestion("use a .csv or .xlsx export")
	}
}

func loadCSV(path string) ([]map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.FileError(errors.CodeFilePermission, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	// Exports occasionally carry ragged rows; pad or truncate instead of
	// failing the whole file.
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, "", err)
	}

	if len(records) == 0 {
		return nil, errors.ReconciliationError(errors.CodeEmptyDataset, "csv load", nil).
			WithContext("file", path)
	}

	headers := records[0]
	rows := make([]map[string]string, 0, len(records)-1)

	for _, record := range records[1:] {
		if isBlankRow(record) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	logger.WithComponent("loader").WithFields(logger.Fields{
		"file": path,
		"rows": len(rows),
	}).Debug("Loaded CSV rows")

	return rows, nil
}

func loadXLSX(path string) ([]map[string]string, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.ReconciliationError(errors.CodeEmptyDataset, "xlsx load", nil).
			WithContext("file", path)
	}

	records, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, "", err)
	}

	if len(records) == 0 {
		return nil, errors.ReconciliationError(errors.CodeEmptyDataset, "xlsx load", nil).
			WithContext("file", path)
	}

	headers := records[0]
	rows := make([]map[string]string, 0, len(records)-1)

	for _, record := range records[1:] {
		if isBlankRow(record) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	logger.WithComponent("loader").WithFields(logger.Fields{
		"file":  path,
		"sheet": sheets[0],
		"rows":  len(rows),
	}).Debug("Loaded XLSX rows")

	return rows, nil
}

func isBlankRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
