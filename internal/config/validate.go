// Package config provides configuration models and helpers for the pipeline.
//
// This file adds a lightweight linter/validator for Config values. It
// performs static checks and returns a list of issues (errors and warnings)
// that callers can surface in the CLI or tests.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding.
//
// Path is a dotted path into the config (e.g. "sink.kind"). Message is
// human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Known option values shared with the components that interpret them.
var (
	SinkKinds      = []string{"postgres", "sqlite", "mysql", "mssql"}
	Encodings      = []string{"latin1", "iso-8859-1", "windows-1252", "cp1252", "utf-8", "utf8"}
	MetricsKinds   = []string{"none", "pushgateway", "datadog"}
	LogLevels      = []string{"debug", "info", "warn", "warning", "error"}
	LogFormats     = []string{"text", "json"}
	LogDestination = []string{"stderr", "stdout", "file"}
)

var tableIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate performs static validation of c.
//
// It does not mutate the config. Callers may decide whether to treat warnings
// as fatal; Err folds error-severity issues into a single error.
func Validate(c *Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validatePaths(c)...)
	if c.ChunkSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "chunk_size",
			Message:  fmt.Sprintf("chunk_size=%d; must be > 0", c.ChunkSize),
		})
	}
	issues = append(issues, validateParser(c.Parser)...)
	issues = append(issues, validateSink(c.Sink)...)
	issues = append(issues, validateRetry(c.Retry)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	issues = append(issues, validateLogging(c.Logging)...)

	return issues
}

// Err returns the error-severity issues joined into one error, or nil.
func Err(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}

func validatePaths(c *Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.RawPath) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "raw_path",
			Message:  "raw_path must not be empty",
		})
	}
	if strings.TrimSpace(c.ArtifactPath) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "artifact_path",
			Message:  "artifact_path must not be empty",
		})
		return issues
	}
	if filepath.Clean(c.RawPath) == filepath.Clean(c.ArtifactPath) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "artifact_path",
			Message:  "artifact_path must differ from raw_path; transform would overwrite its input",
		})
	}
	if ext := strings.ToLower(filepath.Ext(c.ArtifactPath)); ext != ".parquet" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "artifact_path",
			Message:  fmt.Sprintf("artifact extension %q is not .parquet; the file is Parquet regardless", ext),
		})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	if !oneOf(strings.ToLower(p.Encoding), Encodings) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.encoding",
			Message:  fmt.Sprintf("unknown encoding %q; want one of %s", p.Encoding, strings.Join(Encodings, ", ")),
		})
	}
	if utf8.RuneCountInString(p.Comma) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.comma",
			Message:  fmt.Sprintf("comma must be a single character, got %q", p.Comma),
		})
	} else if r := p.CommaRune(); r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.comma",
			Message:  fmt.Sprintf("comma %q is not a valid CSV delimiter", p.Comma),
		})
	}
	return issues
}

func validateSink(s Sink) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sink.kind",
			Message:  "sink.kind must not be empty",
		})
	} else if !oneOf(s.Kind, SinkKinds) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sink.kind",
			Message:  fmt.Sprintf("unsupported sink kind %q; want one of %s", s.Kind, strings.Join(SinkKinds, ", ")),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sink.dsn",
			Message:  "sink.dsn must not be empty",
		})
	}
	if !tableIdent.MatchString(s.Table) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sink.table",
			Message:  fmt.Sprintf("sink.table %q must be an identifier, optionally schema-qualified", s.Table),
		})
	}
	if s.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "sink.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; must be > 0", s.BatchSize),
		})
	}
	return issues
}

func validateRetry(r Retry) []Issue {
	var issues []Issue

	if r.Attempts < 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "retry.attempts",
			Message:  "attempts must be >= 1 (1 means no retry)",
		})
	}
	if r.Delay < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "retry.delay",
			Message:  "delay must not be negative",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue

	backend := m.Backend
	if backend == "" {
		backend = "none"
	}
	if !oneOf(backend, MetricsKinds) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		})
		return issues
	}
	switch backend {
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires pushgateway_url",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires datadog_addr",
			})
		}
	}
	return issues
}

func validateLogging(l Logging) []Issue {
	var issues []Issue

	if l.Level != "" && !oneOf(strings.ToLower(l.Level), LogLevels) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "logging.level",
			Message:  fmt.Sprintf("unknown level %q; info will be used", l.Level),
		})
	}
	if l.Format != "" && !oneOf(strings.ToLower(l.Format), LogFormats) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "logging.format",
			Message:  fmt.Sprintf("unknown format %q; text will be used", l.Format),
		})
	}
	if l.Destination != "" && !oneOf(l.Destination, LogDestination) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "logging.destination",
			Message:  fmt.Sprintf("unknown destination %q; stderr will be used", l.Destination),
		})
	}
	if l.Destination == "file" && strings.TrimSpace(l.File) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "logging.file",
			Message:  "destination=file requires logging.file",
		})
	}
	return issues
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
