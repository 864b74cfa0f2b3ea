package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"transportetl/internal/config"
	"transportetl/internal/logging"
	"transportetl/internal/metrics"
)

// app is the state shared by the commands of one invocation.
type app struct {
	cfgPath  string
	logLevel string

	cfg      *config.Config
	source   config.Source
	log      *slog.Logger
	closeLog func() error
	metrics  bool
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "etl",
		Short: "Transport activity batch ETL",
		Long: `Extract, clean and load the monthly transport activity dataset.

The raw CSV is checked (extract), cleaned in chunks into a Parquet artifact
(transform) and loaded into a relational table that is fully replaced on
every run (load). "etl run" executes the three steps with retries.

Configuration is read from --config, ./transport-etl.yaml or
~/.config/transport-etl/transport-etl.yaml, with TRANSPORT_ETL_* environment
overrides (e.g. TRANSPORT_ETL_SINK_DSN).`,
		PersistentPreRunE: a.bootstrap,
		SilenceErrors:     true,
		SilenceUsage:      true,
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		getExtractCmd(a),
		getTransformCmd(a),
		getLoadCmd(a),
		getRunCmd(a),
		getReportCmd(a),
		getProbeCmd(a),
		getValidateCmd(a),
		getInitConfigCmd(),
	)
	return root
}

// bootstrap loads configuration, builds the logger and installs the metrics
// backend. Commands other than validate refuse an invalid configuration.
func (a *app) bootstrap(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "init-config" {
		return nil
	}
	cfg, src, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg, a.source = cfg, src

	log, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	a.log, a.closeLog = log, closeLog
	slog.SetDefault(log)
	log.Debug("configuration loaded", "source", src, "path", a.cfgPath)

	if cmd.Name() == "validate" {
		return nil
	}
	if err := config.Err(config.Validate(cfg)); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.metrics = setupMetrics(cfg, log)
	return nil
}

// close flushes metrics and releases the log file.
func (a *app) close() {
	var errs []error
	if a.metrics {
		if err := metrics.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("metrics flush: %w", err))
		}
	}
	if a.closeLog != nil {
		if err := a.closeLog(); err != nil {
			errs = append(errs, fmt.Errorf("close log: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("shutdown", "err", err)
	}
}
