package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use
// underscores: sink.dsn -> TRANSPORT_ETL_SINK_DSN.
const EnvPrefix = "TRANSPORT_ETL"

// Source reports where the loaded configuration came from.
type Source string

const (
	SourceFile     Source = "file"
	SourceDefaults Source = "defaults"
)

// Load reads configuration from a YAML file and returns it with its source.
// If path is empty, it searches default locations:
//   - ./transport-etl.yaml
//   - ~/.config/transport-etl/transport-etl.yaml
//
// Missing files in the default locations fall back to Defaults; an explicit
// path that cannot be read is an error. Environment overrides apply in both
// cases. The returned config is not validated; call Validate.
func Load(path string) (*Config, Source, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("transport-etl")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "transport-etl"))
		}
	}

	src := SourceFile
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("read config: %w", err)
		}
		src = SourceDefaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, src, nil
}

// setDefaults registers every leaf of d with viper so that AutomaticEnv can
// resolve keys that are absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("job", d.Job)
	v.SetDefault("raw_path", d.RawPath)
	v.SetDefault("artifact_path", d.ArtifactPath)
	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("parser.encoding", d.Parser.Encoding)
	v.SetDefault("parser.comma", d.Parser.Comma)
	v.SetDefault("sink.kind", d.Sink.Kind)
	v.SetDefault("sink.dsn", d.Sink.DSN)
	v.SetDefault("sink.table", d.Sink.Table)
	v.SetDefault("sink.batch_size", d.Sink.BatchSize)
	v.SetDefault("retry.attempts", d.Retry.Attempts)
	v.SetDefault("retry.delay", d.Retry.Delay)
	v.SetDefault("metrics.backend", d.Metrics.Backend)
	v.SetDefault("metrics.pushgateway_url", d.Metrics.PushgatewayURL)
	v.SetDefault("metrics.datadog_addr", d.Metrics.DatadogAddr)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.destination", d.Logging.Destination)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("report.entities_path", d.Report.EntitiesPath)
	v.SetDefault("report.entities_encoding", d.Report.EntitiesEncoding)
	v.SetDefault("report.top_modes", d.Report.TopModes)
	v.SetDefault("report.top_entities", d.Report.TopEntities)
}

// WriteDefault writes Defaults as YAML to path. It refuses to overwrite an
// existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	b, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
