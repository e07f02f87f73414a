package monitoring

import "time"

const (
	MetricPredictions       = "mpg_predictions_total"
	MetricPredictionLatency = "mpg_prediction_duration_seconds"
	MetricModelLoaded       = "mpg_model_loaded"
)

// PredictionMetrics records per-endpoint prediction outcomes.
type PredictionMetrics struct {
	collector *MetricsCollector
}

func NewPredictionMetrics(collector *MetricsCollector) *PredictionMetrics {
	collector.Describe(MetricPredictions, "Predictions served, by endpoint and outcome")
	collector.Describe(MetricPredictionLatency, "Time spent in the prediction service")
	collector.Describe(MetricModelLoaded, "Model load attempts at startup, by result")
	return &PredictionMetrics{collector: collector}
}

// Collector exposes the underlying collector for export.
func (pm *PredictionMetrics) Collector() *MetricsCollector {
	return pm.collector
}

// RecordPrediction counts one request. outcome is "ok" or an error kind.
func (pm *PredictionMetrics) RecordPrediction(endpoint, outcome string, elapsed time.Duration) {
	pm.collector.IncrCounter(MetricPredictions, 1, map[string]string{
		"endpoint": endpoint,
		"outcome":  outcome,
	})
	pm.collector.Observe(MetricPredictionLatency, elapsed.Seconds(), map[string]string{
		"endpoint": endpoint,
	})
}

// RecordModelLoad notes whether the startup load succeeded.
func (pm *PredictionMetrics) RecordModelLoad(loaded bool) {
	result := "failed"
	if loaded {
		result = "loaded"
	}
	pm.collector.IncrCounter(MetricModelLoaded, 1, map[string]string{"result": result})
}

// Snapshot is the JSON body of the metrics endpoint.
func (pm *PredictionMetrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"system":  pm.collector.GetSystemStats(),
		"metrics": pm.collector.GetAllMetrics(),
	}
}
