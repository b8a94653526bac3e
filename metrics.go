package authflow

import (
	internalmetrics "github.com/karvelis/authflow/internal/metrics"
)

// NewMetrics builds the engine's counter set from the metrics config.
// Disabled metrics still return a usable value whose operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
