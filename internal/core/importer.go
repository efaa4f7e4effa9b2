package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/roster/internal/logging"
	"github.com/JonMunkholm/roster/internal/metrics"
)

// ClassColumn is the header that doubles as a college heading when it is
// the only value in a row.
const ClassColumn = "Class"

// importColumns maps spreadsheet headers to stored fields, in column order.
var importColumns = []struct {
	header string
	field  string
}{
	{ClassColumn, FieldClassName},
	{"Name", FieldName},
	{"Father Name", FieldFatherName},
	{"Mother Name", FieldMotherName},
	{"Address", FieldAddress},
	{"Mobile", FieldMobile},
	{"Alternate Mobile", FieldAlternateMobile},
	{"College Name", FieldCollegeName},
}

// ImportResult counts the rows of one import.
type ImportResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Importer loads students from spreadsheets.
type Importer struct {
	dir     *Directory
	now     Clock
	metrics *metrics.Metrics
}

// NewImporter returns an Importer that writes through dir. A nil clock
// uses time.Now; m may be nil.
func NewImporter(dir *Directory, now Clock, m *metrics.Metrics) *Importer {
	if now == nil {
		now = time.Now
	}
	return &Importer{dir: dir, now: now, metrics: m}
}

// Import reads the payload named name and inserts one student per data
// row. Rows without any recognised value are skipped. The first store
// failure aborts the import; rows already written stay written.
func (im *Importer) Import(ctx context.Context, name string, r io.Reader) (ImportResult, error) {
	log := logging.WithFields(ctx, "file", name)

	rows, err := readRows(name, r)
	if err != nil {
		im.metrics.ObserveImport(0, 0, err)
		return ImportResult{}, err
	}

	var res ImportResult
	if len(rows) == 0 {
		im.metrics.ObserveImport(0, 0, nil)
		return res, nil
	}

	idx := headerIndex(rows[0])
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			im.metrics.ObserveImport(res.Created, res.Skipped, err)
			return ImportResult{}, fmt.Errorf("import cancelled: %w", err)
		}

		fields := mapRow(row, idx)
		if len(fields) == 0 {
			res.Skipped++
			continue
		}
		fields[FieldCreatedAt] = im.now().UTC()

		if _, err := im.dir.Create(ctx, fields); err != nil {
			im.metrics.ObserveImport(res.Created, res.Skipped, err)
			// Row numbers are 1-based and include the header.
			return ImportResult{}, fmt.Errorf("row %d: %w", i+2, err)
		}
		res.Created++
	}

	im.metrics.ObserveImport(res.Created, res.Skipped, nil)
	log.Info("import completed", "created", res.Created, "skipped", res.Skipped)
	return res, nil
}

// mapRow converts one data row to student fields. A row holding only a
// Class value is a college heading and stores that value as college_name.
func mapRow(row []string, idx map[string]int) Fields {
	values := make(map[string]string, len(importColumns))
	for _, col := range importColumns {
		if v := cellValue(row, idx, col.header); v != "" {
			values[col.header] = v
		}
	}

	if class, ok := values[ClassColumn]; ok && len(values) == 1 {
		return Fields{FieldCollegeName: class}
	}

	fields := make(Fields, len(values))
	for _, col := range importColumns {
		if v, ok := values[col.header]; ok {
			fields[col.field] = v
		}
	}
	return fields
}
