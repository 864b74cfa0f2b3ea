package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transportetl/internal/artifact"
	"transportetl/internal/config"
	"transportetl/internal/table"

	_ "transportetl/internal/storage/sqlite"
)

// Latin-1 encoded; "Troleb\xfas" decodes to "Trolebús".
const rawCSV = "ANIO,ID_MES,TRANSPORTE,VALOR\n" +
	"2020,1,Metro,100\n" +
	"2020,1,Metro,100\n" +
	"2020,2,Tren ligero,\n" +
	"2020,3,Troleb\xfas,50\n" +
	"2021,1,Metro,0\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.RawPath = filepath.Join(dir, "raw.csv")
	cfg.ArtifactPath = filepath.Join(dir, "out", "cleaned_transport.parquet")
	cfg.Sink = config.Sink{
		Kind:      "sqlite",
		DSN:       filepath.Join(dir, "etl.db"),
		Table:     "transport_clean",
		BatchSize: 2,
	}
	cfg.Retry.Delay = time.Millisecond
	return cfg
}

func writeRaw(t *testing.T, cfg *config.Config, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(cfg.RawPath, []byte(content), 0o644))
}

func TestExtract(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeRaw(t, cfg, rawCSV)

	ref, err := Extract(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.RawPath, ref.Path)
	assert.EqualValues(t, len(rawCSV), ref.Size)
}

func TestExtract_Missing(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	_, err := Extract(context.Background(), cfg)
	require.Error(t, err)

	var mie *MissingInputError
	require.ErrorAs(t, err, &mie)
	assert.Equal(t, cfg.RawPath, mie.Path)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, KindMissingInput, KindOf(err))
}

func TestExtract_Directory(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.RawPath = t.TempDir()

	_, err := Extract(context.Background(), cfg)
	var mie *MissingInputError
	require.ErrorAs(t, err, &mie)
}

func TestTransform(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeRaw(t, cfg, rawCSV)

	ref, err := Transform(context.Background(), cfg, RawRef{Path: cfg.RawPath})
	require.NoError(t, err)
	assert.Equal(t, cfg.ArtifactPath, ref.Path)
	assert.EqualValues(t, 3, ref.Rows)
	assert.EqualValues(t, 1, ref.Stats.Chunks)
	assert.EqualValues(t, 5, ref.Stats.Read)
	assert.EqualValues(t, 3, ref.Stats.Kept)
	assert.Equal(t, map[string]int64{"duplicate": 1, "missing": 1}, ref.Stats.Dropped)

	got, err := artifact.Read(ref.Path)
	require.NoError(t, err)
	assert.Equal(t, table.Schema{
		{Name: "ANIO", Kind: table.Int64},
		{Name: "ID_MES", Kind: table.Int64},
		{Name: "TRANSPORTE", Kind: table.String},
		{Name: "VALOR", Kind: table.Float64},
		{Name: "VALOR_NORMALIZED", Kind: table.Float64},
	}, got.Schema)
	assert.Equal(t, [][]any{
		{int64(2020), int64(1), "Metro", 100.0, 1.0},
		{int64(2020), int64(3), "Trolebús", 50.0, 0.5},
		{int64(2021), int64(1), "Metro", 0.0, 0.0},
	}, got.Rows)
}

func TestTransform_Deterministic(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	writeRaw(t, cfg, rawCSV)
	ctx := context.Background()

	_, err := Transform(ctx, cfg, RawRef{Path: cfg.RawPath})
	require.NoError(t, err)
	first, err := os.ReadFile(cfg.ArtifactPath)
	require.NoError(t, err)

	_, err = Transform(ctx, cfg, RawRef{Path: cfg.RawPath})
	require.NoError(t, err)
	second, err := os.ReadFile(cfg.ArtifactPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestTransform_MalformedValorKeepsPreviousArtifact(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	ctx := context.Background()
	writeRaw(t, cfg, rawCSV)
	_, err := Transform(ctx, cfg, RawRef{Path: cfg.RawPath})
	require.NoError(t, err)
	before, err := os.ReadFile(cfg.ArtifactPath)
	require.NoError(t, err)

	writeRaw(t, cfg, "ANIO,ID_MES,TRANSPORTE,VALOR\n2020,1,Metro,100\n2020,2,Metro,abc\n")
	_, err = Transform(ctx, cfg, RawRef{Path: cfg.RawPath})
	require.Error(t, err)

	var tce *TypeCoercionError
	require.ErrorAs(t, err, &tce)
	assert.Equal(t, "VALOR", tce.Column)
	assert.Equal(t, "abc", tce.Value)
	assert.Equal(t, 3, tce.Line)
	var te *TransformError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "clean", te.Stage)
	assert.Equal(t, KindTypeCoercion, KindOf(err))

	after, err := os.ReadFile(cfg.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestTransform_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		raw   *string
		stage string
		kind  ErrorKind
	}{
		{name: "missing raw", stage: "open", kind: KindMissingInput},
		{name: "empty raw", raw: ptr(""), stage: "read", kind: KindTransform},
		{name: "wide row", raw: ptr("ANIO,ID_MES,VALOR\n2020,1,5,extra\n"), stage: "clean", kind: KindTransform},
		{name: "no VALOR column", raw: ptr("ANIO,ID_MES\n2020,1\n"), stage: "clean", kind: KindTransform},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig(t)
			if tt.raw != nil {
				writeRaw(t, cfg, *tt.raw)
			}
			_, err := Transform(context.Background(), cfg, RawRef{Path: cfg.RawPath})
			var te *TransformError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.stage, te.Stage)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.NoFileExists(t, cfg.ArtifactPath)
		})
	}
}

func TestLoad_FullRefresh(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	ctx := context.Background()
	writeRaw(t, cfg, rawCSV)
	ref, err := Transform(ctx, cfg, RawRef{Path: cfg.RawPath})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := Load(ctx, cfg, ref)
		require.NoError(t, err)
		assert.Equal(t, LoadResult{Table: "transport_clean", Rows: 3}, res)
	}

	writeRaw(t, cfg, "ANIO,ID_MES,TRANSPORTE,VALOR\n2022,1,Metro,7\n")
	ref, err = Transform(ctx, cfg, RawRef{Path: cfg.RawPath})
	require.NoError(t, err)
	res, err := Load(ctx, cfg, ref)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Rows)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing artifact", func(t *testing.T) {
		cfg := testConfig(t)
		_, err := Load(context.Background(), cfg, ArtifactRef{Path: cfg.ArtifactPath})
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, "transport_clean", le.Table)
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.Equal(t, KindLoad, KindOf(err))
	})

	t.Run("unsupported kind", func(t *testing.T) {
		cfg := testConfig(t)
		writeRaw(t, cfg, rawCSV)
		ref, err := Transform(context.Background(), cfg, RawRef{Path: cfg.RawPath})
		require.NoError(t, err)

		cfg.Sink.Kind = "oracle"
		_, err = Load(context.Background(), cfg, ref)
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.ErrorContains(t, err, "unsupported storage.kind=oracle")
	})
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tce := &TypeCoercionError{Column: "ANIO", Value: "x", Err: errors.New("bad")}
	tests := []struct {
		name      string
		err       error
		want      ErrorKind
		retryable bool
	}{
		{"nil", nil, KindUnknown, true},
		{"plain", errors.New("x"), KindUnknown, true},
		{"missing", &MissingInputError{Path: "p", Err: fs.ErrNotExist}, KindMissingInput, true},
		{"coercion inside transform", &TransformError{Stage: "clean", Err: tce}, KindTypeCoercion, false},
		{"transform", &TransformError{Stage: "write", Err: errors.New("disk full")}, KindTransform, true},
		{"load", &LoadError{Table: "t", Err: errors.New("conn refused")}, KindLoad, true},
		{"canceled", &LoadError{Table: "t", Err: context.Canceled}, KindCanceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KindOf(tt.err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.retryable, got.Retryable())
		})
	}
}

func ptr(s string) *string { return &s }
