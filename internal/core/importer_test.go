package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/JonMunkholm/roster/internal/docstore/memstore"
	"github.com/JonMunkholm/roster/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var importHeader = []any{"Class", "Name", "Father Name", "Mother Name", "Address", "Mobile", "Alternate Mobile", "College Name"}

var importTime = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func xlsxPayload(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func newTestImporter(t *testing.T, m *metrics.Metrics) (*Importer, *Directory) {
	t.Helper()
	clock := func() time.Time { return importTime }
	dir := NewDirectory(memstore.New().Collection(StudentsCollection), clock)
	return NewImporter(dir, clock, m), dir
}

func listAll(t *testing.T, d *Directory) []Student {
	t.Helper()
	res, err := d.List(context.Background(), ListParams{Page: 1, Limit: 100})
	require.NoError(t, err)
	return res.Students
}

func byName(students []Student) map[string]Student {
	out := make(map[string]Student, len(students))
	for _, s := range students {
		out[s.Name] = s
	}
	return out
}

func TestImport_ClassOnlyRowBecomesCollegeName(t *testing.T) {
	im, dir := newTestImporter(t, nil)

	res, err := im.Import(context.Background(), "students.xlsx", xlsxPayload(t,
		importHeader,
		[]any{"ABC College"},
	))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 1}, res)

	students := listAll(t, dir)
	require.Len(t, students, 1)
	assert.Equal(t, "ABC College", students[0].CollegeName)
	assert.Empty(t, students[0].ClassName)
	require.NotNil(t, students[0].CreatedAt)
	assert.True(t, importTime.Equal(*students[0].CreatedAt))
}

func TestImport_ClassWithNameKeepsClass(t *testing.T) {
	im, dir := newTestImporter(t, nil)

	res, err := im.Import(context.Background(), "students.xlsx", xlsxPayload(t,
		importHeader,
		[]any{"10th", "Jane"},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	students := listAll(t, dir)
	require.Len(t, students, 1)
	assert.Equal(t, "10th", students[0].ClassName)
	assert.Equal(t, "Jane", students[0].Name)
	assert.Empty(t, students[0].CollegeName)
}

func TestImport_MapsAllColumnsAndSkipsEmptyRows(t *testing.T) {
	im, dir := newTestImporter(t, nil)

	res, err := im.Import(context.Background(), "students.xlsx", xlsxPayload(t,
		[]any{" Class", "Name ", "Father Name", "Mother Name", "Address", "Mobile", "Alternate Mobile", "College Name", "Notes"},
		[]any{"12th", "Ravi", "Mohan", "Sita", "Main Road", "9876543210", "9123456780", "City College", "ignored"},
		[]any{"", "", "", "", "", "", "", "", "only notes"},
		[]any{"", ""},
		[]any{"", "Asha", "", "", "", " 555 "},
	))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 2, Skipped: 2}, res)

	got := byName(listAll(t, dir))
	require.Len(t, got, 2)

	ravi := got["Ravi"]
	assert.Equal(t, "12th", ravi.ClassName)
	assert.Equal(t, "Mohan", ravi.FatherName)
	assert.Equal(t, "Sita", ravi.MotherName)
	assert.Equal(t, "Main Road", ravi.Address)
	assert.Equal(t, "9876543210", ravi.Mobile)
	assert.Equal(t, "9123456780", ravi.AlternateMobile)
	assert.Equal(t, "City College", ravi.CollegeName)

	asha := got["Asha"]
	assert.Equal(t, " 555 ", asha.Mobile)
	assert.Empty(t, asha.ClassName)
}

func TestImport_BlankCellsArePresent(t *testing.T) {
	im, dir := newTestImporter(t, nil)

	res, err := im.Import(context.Background(), "students.xlsx", xlsxPayload(t,
		importHeader,
		[]any{"ABC", " "},
		[]any{" "},
		[]any{"", ""},
		[]any{"10th", "Jane"},
	))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 3, Skipped: 1}, res)

	var headings, withClass int
	for _, s := range listAll(t, dir) {
		switch {
		case s.CollegeName == " ":
			headings++
		case s.ClassName == "ABC":
			withClass++
			assert.Equal(t, " ", s.Name)
			assert.Empty(t, s.CollegeName)
		}
	}
	assert.Equal(t, 1, headings)
	assert.Equal(t, 1, withClass)
}

func TestImport_HeaderMatchIsCaseSensitive(t *testing.T) {
	im, _ := newTestImporter(t, nil)

	res, err := im.Import(context.Background(), "students.xlsx", xlsxPayload(t,
		[]any{"class", "NAME"},
		[]any{"10th", "Jane"},
	))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Skipped: 1}, res)
}

func TestImport_NumericCellsKeepDigits(t *testing.T) {
	im, dir := newTestImporter(t, nil)

	res, err := im.Import(context.Background(), "students.xlsx", xlsxPayload(t,
		importHeader,
		[]any{"", "Jane", "", "", "", 9876543210},
	))
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)
	assert.Equal(t, "9876543210", listAll(t, dir)[0].Mobile)
}

func TestImport_CSV(t *testing.T) {
	im, dir := newTestImporter(t, nil)

	payload := "\xEF\xBB\xBFClass,Name,Mobile\n" +
		"ABC College\n" +
		"10th,Jane,555\n" +
		",,\n"
	res, err := im.Import(context.Background(), "students.CSV", strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 2, Skipped: 1}, res)

	students := listAll(t, dir)
	var colleges, classes []string
	for _, s := range students {
		if s.CollegeName != "" {
			colleges = append(colleges, s.CollegeName)
		}
		if s.ClassName != "" {
			classes = append(classes, s.ClassName)
		}
	}
	assert.Equal(t, []string{"ABC College"}, colleges)
	assert.Equal(t, []string{"10th"}, classes)
}

func TestImport_HeaderOnly(t *testing.T) {
	im, dir := newTestImporter(t, nil)

	res, err := im.Import(context.Background(), "students.xlsx", xlsxPayload(t, importHeader))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{}, res)
	assert.Empty(t, listAll(t, dir))
}

func TestImport_UnreadablePayload(t *testing.T) {
	im, _ := newTestImporter(t, nil)

	_, err := im.Import(context.Background(), "students.xlsx", strings.NewReader("not a workbook"))
	assert.ErrorIs(t, err, ErrImport)
}

func TestImport_UnsupportedExtension(t *testing.T) {
	im, _ := newTestImporter(t, nil)

	_, err := im.Import(context.Background(), "students.pdf", strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
	assert.False(t, SupportedFile("students.xls"))
	assert.True(t, SupportedFile("Students.XLSX"))
}

type failingInsert struct {
	docstore.Collection
	after int
}

func (f *failingInsert) InsertOne(ctx context.Context, doc docstore.Document) (string, error) {
	if f.after == 0 {
		return "", errors.New("connection reset by peer")
	}
	f.after--
	return f.Collection.InsertOne(ctx, doc)
}

func TestImport_StoreFailureAborts(t *testing.T) {
	coll := &failingInsert{Collection: memstore.New().Collection(StudentsCollection), after: 1}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	im := NewImporter(NewDirectory(coll, nil), nil, m)

	res, err := im.Import(context.Background(), "students.xlsx", xlsxPayload(t,
		importHeader,
		[]any{"10th", "Jane"},
		[]any{"10th", "John"},
		[]any{"10th", "Joan"},
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
	assert.Contains(t, err.Error(), "failed to create student")
	assert.Equal(t, ImportResult{}, res)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Imports.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportRows.WithLabelValues("created")))
}

func TestImport_CancelledContext(t *testing.T) {
	im, dir := newTestImporter(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := im.Import(ctx, "students.xlsx", xlsxPayload(t, importHeader, []any{"10th", "Jane"}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, listAll(t, dir))
}

func TestImport_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	im, _ := newTestImporter(t, m)

	_, err := im.Import(context.Background(), "students.xlsx", xlsxPayload(t,
		importHeader,
		[]any{"", ""},
		[]any{"10th", "Jane"},
	))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportRows.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportRows.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Imports.WithLabelValues("ok")))
}

func TestMapRow(t *testing.T) {
	idx := headerIndex([]string{"Class", "Name", "Name", "College Name"})

	tests := []struct {
		name string
		row  []string
		want Fields
	}{
		{"class only", []string{"ABC"}, Fields{FieldCollegeName: "ABC"}},
		{"class with trailing empties", []string{"ABC", "", "", ""}, Fields{FieldCollegeName: "ABC"}},
		{"blank cell is a value", []string{"ABC", " ", "", ""}, Fields{FieldClassName: "ABC", FieldName: " "}},
		{"blank class alone is a heading", []string{"  "}, Fields{FieldCollegeName: "  "}},
		{"class and college", []string{"ABC", "", "", "XYZ"}, Fields{FieldClassName: "ABC", FieldCollegeName: "XYZ"}},
		{"first duplicate header wins", []string{"", "Jane", "Other"}, Fields{FieldName: "Jane"}},
		{"empty", []string{}, Fields{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapRow(tt.row, idx))
		})
	}
}

func TestServiceImportRespectsLimiter(t *testing.T) {
	svc := NewService(memstore.New(), ServiceConfig{
		MaxConcurrentImports: 1,
		ImportWait:           10 * time.Millisecond,
	})
	require.True(t, svc.Limiter.TryAcquire())

	_, err := svc.Import(context.Background(), "students.xlsx", xlsxPayload(t, importHeader))
	assert.ErrorIs(t, err, ErrTooManyImports)

	svc.Limiter.Release()
	res, err := svc.Import(context.Background(), "students.xlsx", xlsxPayload(t, importHeader, []any{"10th", "Jane"}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, svc.Limiter.Active())
}
