package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transportetl/internal/pipeline"
	"transportetl/internal/probe"
)

const rawCSV = "ANIO,ID_MES,ID_ENTIDAD,TRANSPORTE,VALOR\n" +
	"2020,1,9,Metro,100\n" +
	"2020,1,9,Metro,100\n" +
	"2020,2,19,Metrorrey,40\n" +
	"2021,1,9,Metrob\xfas,\n"

type env struct {
	dir     string
	cfgPath string
}

func newEnv(t *testing.T, extra string) env {
	t.Helper()
	dir := t.TempDir()
	e := env{dir: dir, cfgPath: filepath.Join(dir, "transport-etl.yaml")}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw.csv"), []byte(rawCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tc_entidad.csv"),
		[]byte("ID_ENTIDAD,NOM_ENTIDAD\n9,Ciudad de México\n19,Nuevo León\n"), 0o644))

	cfg := fmt.Sprintf(`job: transport_test
raw_path: %[1]s/raw.csv
artifact_path: %[1]s/out/cleaned_transport.parquet
chunk_size: 2
sink:
  kind: sqlite
  dsn: %[1]s/etl.db
  table: transport_clean
  batch_size: 10
retry:
  attempts: 2
  delay: 1ms
logging:
  level: error
report:
  entities_path: %[1]s/tc_entidad.csv
  entities_encoding: utf-8
  top_modes: 5
  top_entities: 10
%[2]s`, dir, extra)
	require.NoError(t, os.WriteFile(e.cfgPath, []byte(cfg), 0o644))
	return e
}

func (e env) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	defer a.close()

	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", e.cfgPath))
	err := cmd.Execute()
	return out.String(), err
}

func TestRunAndReport(t *testing.T) {
	e := newEnv(t, "")

	out, err := e.exec(t, "run")
	require.NoError(t, err, out)

	var run pipeline.Run
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, pipeline.StateLoaded, run.State)
	require.NotNil(t, run.Load)
	assert.EqualValues(t, 2, run.Load.Rows)

	xlsx := filepath.Join(e.dir, "report.xlsx")
	out, err = e.exec(t, "report", "--xlsx", xlsx)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Ciudad de México")
	assert.Contains(t, out, "Metrorrey")
	assert.FileExists(t, xlsx)
}

func TestStepCommandsChainRefs(t *testing.T) {
	e := newEnv(t, "")

	rawRef, err := e.exec(t, "extract")
	require.NoError(t, err, rawRef)

	artRef, err := e.exec(t, "transform", "--raw", rawRef)
	require.NoError(t, err, artRef)
	var ar pipeline.ArtifactRef
	require.NoError(t, json.Unmarshal([]byte(artRef), &ar))
	assert.EqualValues(t, 2, ar.Rows)
	assert.EqualValues(t, 2, ar.Stats.Chunks)

	out, err := e.exec(t, "load", "--artifact", artRef)
	require.NoError(t, err, out)
	var res pipeline.LoadResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, pipeline.LoadResult{Table: "transport_clean", Rows: 2}, res)
}

func TestExtractMissingInput(t *testing.T) {
	e := newEnv(t, "")
	require.NoError(t, os.Remove(filepath.Join(e.dir, "raw.csv")))

	_, err := e.exec(t, "extract")
	var mie *pipeline.MissingInputError
	require.ErrorAs(t, err, &mie)
}

func TestProbe(t *testing.T) {
	e := newEnv(t, "")

	out, err := e.exec(t, "probe", "--json")
	require.NoError(t, err)
	var res probe.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 4, res.Rows)
	require.Len(t, res.Columns, 5)
	assert.Equal(t, probe.Column{Name: "VALOR", Type: probe.TypeInteger, Missing: 1, Expected: "float64"}, res.Columns[4])

	bad := filepath.Join(e.dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("ANIO,VALOR\n2020,x\n"), 0o644))
	out, err = e.exec(t, "probe", bad)
	assert.ErrorContains(t, err, "would not load cleanly")
	assert.Contains(t, out, "absent columns: ID_MES")
}

func TestValidate(t *testing.T) {
	e := newEnv(t, "")
	out, err := e.exec(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid (file)")
	assert.Contains(t, out, "sqlite")

	bad := newEnv(t, "metrics:\n  backend: pushgateway\n")
	out, err = bad.exec(t, "validate")
	require.Error(t, err)
	assert.Contains(t, out, "metrics.pushgateway_url")

	// Other commands refuse an invalid configuration.
	_, err = bad.exec(t, "extract")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "transport-etl.yaml")

	cmd := newRootCmd(&app{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"init-config", path})
	require.NoError(t, cmd.Execute())
	assert.FileExists(t, path)

	cmd = newRootCmd(&app{})
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"init-config", path})
	assert.ErrorContains(t, cmd.Execute(), "already exists")
}

func TestParseRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "empty keeps default", in: "", want: "/default"},
		{name: "plain path", in: " /data/raw.csv ", want: "/data/raw.csv"},
		{name: "json ref", in: `{"path": "/data/a.parquet", "rows": 3}`, want: "/data/a.parquet"},
		{name: "json without path keeps default", in: `{"rows": 3}`, want: "/default"},
		{name: "json empty path", in: `{"path": ""}`, wantErr: true},
		{name: "bad json", in: `{"path":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := pipeline.ArtifactRef{Path: "/default"}
			err := parseRef(tt.in, &ref.Path, &ref)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ref.Path)
		})
	}
}
