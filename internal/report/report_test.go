package report

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"transportetl/internal/storage"
	"transportetl/internal/table"

	_ "transportetl/internal/storage/sqlite"
)

type fakeScanner struct {
	rows [][]any
	err  error
}

func (f fakeScanner) Scan(_ context.Context, _ []string, fn func(row []any) error) error {
	if f.err != nil {
		return f.err
	}
	for _, r := range f.rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

const entitiesCSV = "\uFEFFID_ENTIDAD,NOM_ENTIDAD\n9,Ciudad de México\n15,México\n19,Nuevo León\n"

// ANIO, TRANSPORTE, ID_ENTIDAD, VALOR
var sampleRows = [][]any{
	{int64(2019), "Metro", "09", 1000.0},
	{int64(2020), "Metro", "9", 500.0},
	{int64(2020), "Metrobús", "9", 700.0},
	{int64(2020), "Tren ligero", "15", 300.0},
	{int64(2021), "Metrorrey", "19", 900.0},
	{int64(2021), "Trolebús", "99", 50.0},
}

func sampleEntities(t *testing.T) Entities {
	t.Helper()
	e, err := ParseEntities(strings.NewReader(entitiesCSV), "utf-8")
	require.NoError(t, err)
	return e
}

func TestParseEntities(t *testing.T) {
	t.Parallel()

	e := sampleEntities(t)
	assert.Len(t, e, 3)
	for _, id := range []string{"9", "09", " 9 ", "9.0"} {
		name, ok := e.Name(id)
		assert.True(t, ok, id)
		assert.Equal(t, "Ciudad de México", name)
	}
	_, ok := e.Name("99")
	assert.False(t, ok)
}

func TestParseEntities_Latin1(t *testing.T) {
	t.Parallel()

	e, err := ParseEntities(strings.NewReader("ID_ENTIDAD,NOM_ENTIDAD,EXTRA\n19,Nuevo Le\xf3n,x\n"), "latin1")
	require.NoError(t, err)
	name, _ := e.Name("19")
	assert.Equal(t, "Nuevo León", name)
}

func TestParseEntities_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, in, want string
	}{
		{"empty", "", "empty input"},
		{"missing name column", "ID_ENTIDAD,NAME\n1,x\n", "must contain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEntities(strings.NewReader(tt.in), "utf-8")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	r, err := Build(context.Background(), fakeScanner{rows: sampleRows}, sampleEntities(t), Options{TopModes: 2, TopEntities: 2})
	require.NoError(t, err)

	assert.EqualValues(t, 6, r.Rows)
	assert.Equal(t, 3450.0, r.Total)
	assert.EqualValues(t, 1, r.Unmatched)
	assert.Equal(t, []YearTotal{{2019, 1000}, {2020, 1500}, {2021, 950}}, r.ByYear)

	assert.Equal(t, []ModeSeries{
		{Mode: "Metro", Total: 1500, Yearly: []YearTotal{{2019, 1000}, {2020, 500}}},
		{Mode: "Metrorrey", Total: 900, Yearly: []YearTotal{{2021, 900}}},
	}, r.TopModes)

	assert.Equal(t, []EntityTotal{
		{Entity: "Ciudad de México", Total: 2200},
		{Entity: "Nuevo León", Total: 900},
	}, r.TopEntities)

	assert.Equal(t, []EntityMode{
		{Entity: "Ciudad de México", Mode: "Metro", Total: 1500},
		{Entity: "Nuevo León", Mode: "Metrorrey", Total: 900},
		{Entity: "México", Mode: "Tren ligero", Total: 300},
	}, r.EntityModes)
}

func TestBuild_TiesAreOrderedByName(t *testing.T) {
	t.Parallel()

	rows := [][]any{
		{int64(2020), "B", "1", 10.0},
		{int64(2020), "A", "1", 10.0},
	}
	r, err := Build(context.Background(), fakeScanner{rows: rows}, Entities{"1": "X"}, Options{TopModes: 1})
	require.NoError(t, err)
	require.Len(t, r.TopModes, 1)
	assert.Equal(t, "A", r.TopModes[0].Mode)
	assert.Equal(t, "A", r.EntityModes[0].Mode)
}

func TestBuild_DriverValueTypes(t *testing.T) {
	t.Parallel()

	rows := [][]any{
		{[]byte("2020"), []byte("Metro"), []byte("9"), []byte("1.5")},
		{"2020", "Metro", int64(9), int64(2)},
	}
	r, err := Build(context.Background(), fakeScanner{rows: rows}, sampleEntities(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, 3.5, r.Total)
	assert.Equal(t, []EntityTotal{{Entity: "Ciudad de México", Total: 3.5}}, r.TopEntities)
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	_, err := Build(context.Background(), fakeScanner{err: errors.New("no such table")}, nil, Options{})
	assert.ErrorContains(t, err, "no such table")

	_, err = Build(context.Background(), fakeScanner{rows: [][]any{{"x", "Metro", "9", 1.0}}}, nil, Options{})
	assert.ErrorContains(t, err, ColYear)
}

func TestBuild_FromSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, err := storage.New(ctx, storage.Config{
		Kind:      "sqlite",
		DSN:       filepath.Join(t.TempDir(), "etl.db"),
		Table:     "transport_clean",
		BatchSize: 4,
	})
	require.NoError(t, err)
	defer repo.Close()

	schema := table.Schema{
		{Name: "ANIO", Kind: table.Int64},
		{Name: "ID_ENTIDAD", Kind: table.String},
		{Name: "TRANSPORTE", Kind: table.String},
		{Name: "VALOR", Kind: table.Float64},
	}
	rows := make([][]any, len(sampleRows))
	for i, r := range sampleRows {
		rows[i] = []any{r[0], r[2], r[1], r[3]}
	}
	_, err = repo.ReplaceTable(ctx, schema, rows)
	require.NoError(t, err)

	r, err := Build(ctx, repo, sampleEntities(t), Options{TopModes: 5, TopEntities: 10})
	require.NoError(t, err)
	assert.Equal(t, 3450.0, r.Total)
	assert.Len(t, r.TopEntities, 3)
}

func TestBuild_FromSQLiteMissingColumn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, err := storage.New(ctx, storage.Config{
		Kind:      "sqlite",
		DSN:       filepath.Join(t.TempDir(), "etl.db"),
		Table:     "transport_clean",
		BatchSize: 4,
	})
	require.NoError(t, err)
	defer repo.Close()

	schema := table.Schema{
		{Name: "ANIO", Kind: table.Int64},
		{Name: "TRANSPORTE", Kind: table.String},
		{Name: "VALOR", Kind: table.Float64},
	}
	_, err = repo.ReplaceTable(ctx, schema, [][]any{{int64(2020), "Metro", 100.0}})
	require.NoError(t, err)

	r, err := Build(ctx, repo, sampleEntities(t), Options{TopModes: 5, TopEntities: 10})
	require.Error(t, err)
	assert.ErrorContains(t, err, "ID_ENTIDAD")
	assert.Nil(t, r)
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	rows := append([][]any{{int64(2022), "Metro", "9", 1234567.0}}, sampleRows...)
	r, err := Build(context.Background(), fakeScanner{rows: rows}, sampleEntities(t), Options{TopModes: 5, TopEntities: 10})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "1,238,017")
	assert.Contains(t, out, "Rows without entity")
	assert.Contains(t, out, "1. Metro")
	assert.Contains(t, out, "Nuevo León")
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	r, err := Build(context.Background(), fakeScanner{rows: sampleRows}, sampleEntities(t), Options{TopModes: 5, TopEntities: 10})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteXLSX(path, r))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetByYear, SheetTopModes, SheetTopEntities, SheetEntityModes}, f.GetSheetList())

	years, err := f.GetRows(SheetByYear)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ANIO", "VALOR"}, {"2019", "1000"}, {"2020", "1500"}, {"2021", "950"}}, years)

	ents, err := f.GetRows(SheetTopEntities)
	require.NoError(t, err)
	require.Len(t, ents, 4)
	assert.Equal(t, []string{"1", "Ciudad de México", "2200"}, ents[1])
}
