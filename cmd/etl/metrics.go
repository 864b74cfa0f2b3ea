package main

import (
	"log/slog"

	"transportetl/internal/config"
	"transportetl/internal/metrics"
	"transportetl/internal/metrics/datadog"
	"transportetl/internal/metrics/prompush"
)

// setupMetrics installs the configured backend and reports whether one was
// installed. A backend that fails to start leaves metrics disabled.
func setupMetrics(cfg *config.Config, log *slog.Logger) bool {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "", "none":
		log.Debug("metrics disabled")
		return false
	case "pushgateway":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			GlobalTags: []string{"job:" + cfg.Job},
		})
	default:
		log.Warn("unknown metrics backend; metrics disabled", "backend", cfg.Metrics.Backend)
		return false
	}
	if err != nil {
		log.Warn("metrics backend failed to start; metrics disabled", "backend", cfg.Metrics.Backend, "err", err)
		return false
	}
	metrics.SetBackend(b)
	log.Debug("metrics enabled", "backend", cfg.Metrics.Backend)
	return true
}
