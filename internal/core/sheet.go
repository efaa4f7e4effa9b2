package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Supported upload extensions.
const (
	ExtXLSX = ".xlsx"
	ExtCSV  = ".csv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SupportedFile reports whether name has an extension the importer reads.
func SupportedFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtXLSX, ExtCSV:
		return true
	}
	return false
}

// readRows returns every row of the payload, header first. Only the first
// worksheet of a workbook is read.
func readRows(name string, r io.Reader) ([][]string, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ExtXLSX:
		return readWorkbook(r)
	case ExtCSV:
		return readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, name)
	}
}

func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImport, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrImport)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrImport, sheets[0], err)
	}
	return rows, nil
}

// readCSV strips a leading byte order mark and replaces invalid UTF-8
// before parsing. Ragged rows are allowed.
func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImport, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	data = bytes.ToValidUTF8(data, []byte("\uFFFD"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %w", ErrImport, err)
	}
	return rows, nil
}

// headerIndex maps each trimmed header to its first column position.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, ok := idx[h]; ok || h == "" {
			continue
		}
		idx[h] = i
	}
	return idx
}

// cellValue returns the cell under header as written, or "" when the
// column is absent or the row is too short. A cell of spaces is a value.
func cellValue(row []string, idx map[string]int, header string) string {
	i, ok := idx[header]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
