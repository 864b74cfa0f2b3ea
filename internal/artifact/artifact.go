// Package artifact persists a cleaned table as a single Parquet file, the
// handoff between transform and load.
//
// Write never leaves a partial file at the destination: rows are written to
// a temporary file in the same directory, synced, and renamed over the
// target. Columns are REQUIRED and SNAPPY-compressed; string columns are
// dictionary encoded. Output is deterministic for identical input.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"transportetl/internal/table"
)

// One writer goroutine keeps page layout independent of scheduling.
const parallelism = 1

// Info describes an artifact without its values.
type Info struct {
	Path   string       `json:"path"`
	Schema table.Schema `json:"-"`
	Rows   int64        `json:"rows"`
	Size   int64        `json:"size_bytes"`
}

// Write stores t at path, replacing any existing file only once the new one
// is complete.
func Write(path string, t *table.Table) (err error) {
	md, err := metadata(t.Schema)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	pw, err := writer.NewCSVWriter(md, &local.LocalFile{FilePath: tmp, File: f}, parallelism)
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range t.Rows {
		if len(row) != len(t.Schema) {
			return fmt.Errorf("row %d: %d values for %d columns", i, len(row), len(t.Schema))
		}
		if err := checkRow(t.Schema, row); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	// CreateTemp uses 0600.
	if err := os.Chmod(tmp, 0o644); err != nil {
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// Read loads the whole artifact.
func Read(path string) (*table.Table, error) {
	pf, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer pf.Close()

	pr, err := reader.NewParquetColumnReader(pf, parallelism)
	if err != nil {
		return nil, fmt.Errorf("read parquet footer: %w", err)
	}
	defer pr.ReadStop()

	schema, err := schemaOf(pr)
	if err != nil {
		return nil, err
	}
	n := pr.GetNumRows()

	rows := make([][]any, n)
	for i := range rows {
		rows[i] = make([]any, len(schema))
	}
	if n > 0 {
		for j := range schema {
			vals, _, _, err := pr.ReadColumnByIndex(int64(j), n)
			if err != nil {
				return nil, fmt.Errorf("read column %s: %w", schema[j].Name, err)
			}
			if int64(len(vals)) != n {
				return nil, fmt.Errorf("read column %s: got %d values, want %d", schema[j].Name, len(vals), n)
			}
			for i, v := range vals {
				rows[i][j] = v
			}
		}
	}
	return &table.Table{Schema: schema, Rows: rows}, nil
}

// Stat returns the artifact schema and row count from the footer.
func Stat(path string) (Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("stat artifact: %w", err)
	}
	pf, err := local.NewLocalFileReader(path)
	if err != nil {
		return Info{}, fmt.Errorf("open artifact: %w", err)
	}
	defer pf.Close()

	pr, err := reader.NewParquetColumnReader(pf, parallelism)
	if err != nil {
		return Info{}, fmt.Errorf("read parquet footer: %w", err)
	}
	defer pr.ReadStop()

	schema, err := schemaOf(pr)
	if err != nil {
		return Info{}, err
	}
	return Info{Path: path, Schema: schema, Rows: pr.GetNumRows(), Size: fi.Size()}, nil
}

func metadata(s table.Schema) ([]string, error) {
	if len(s) == 0 {
		return nil, errors.New("artifact: empty schema")
	}
	seen := make(map[string]string, len(s))
	md := make([]string, len(s))
	for i, c := range s {
		if c.Name == "" || strings.ContainsAny(c.Name, ",=\t") {
			return nil, fmt.Errorf("artifact: column name %q not supported", c.Name)
		}
		// Parquet field names must stay distinct after the writer's
		// identifier mangling.
		in := common.StringToVariableName(c.Name)
		if prev, ok := seen[in]; ok {
			return nil, fmt.Errorf("artifact: columns %q and %q collide", prev, c.Name)
		}
		seen[in] = c.Name

		switch c.Kind {
		case table.Int64:
			md[i] = fmt.Sprintf("name=%s, type=INT64, repetitiontype=REQUIRED", c.Name)
		case table.Float64:
			md[i] = fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=REQUIRED", c.Name)
		case table.String:
			md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY, repetitiontype=REQUIRED", c.Name)
		default:
			return nil, fmt.Errorf("artifact: column %s has unsupported kind %s", c.Name, c.Kind)
		}
	}
	return md, nil
}

func checkRow(s table.Schema, row []any) error {
	for j, c := range s {
		var ok bool
		switch c.Kind {
		case table.Int64:
			_, ok = row[j].(int64)
		case table.Float64:
			_, ok = row[j].(float64)
		case table.String:
			_, ok = row[j].(string)
		}
		if !ok {
			return fmt.Errorf("column %s: %T is not %s", c.Name, row[j], c.Kind)
		}
	}
	return nil
}

func schemaOf(pr *reader.ParquetReader) (table.Schema, error) {
	sh := pr.SchemaHandler
	elems := sh.SchemaElements
	if len(elems) < 2 {
		return nil, errors.New("artifact: no columns")
	}
	out := make(table.Schema, 0, len(elems)-1)
	for i := 1; i < len(elems); i++ {
		e := elems[i]
		if e.GetNumChildren() > 0 {
			return nil, fmt.Errorf("artifact: nested column %s not supported", sh.Infos[i].ExName)
		}
		var k table.Kind
		switch e.GetType() {
		case parquet.Type_INT64:
			k = table.Int64
		case parquet.Type_DOUBLE:
			k = table.Float64
		case parquet.Type_BYTE_ARRAY:
			k = table.String
		default:
			return nil, fmt.Errorf("artifact: column %s has unsupported type %s", sh.Infos[i].ExName, e.GetType())
		}
		out = append(out, table.Column{Name: sh.Infos[i].ExName, Kind: k})
	}
	return out, nil
}
