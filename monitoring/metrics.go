package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeSummary MetricType = "summary"
)

// Metric is the exported view of one labelled series.
type Metric struct {
	Name   string            `json:"name"`
	Type   MetricType        `json:"type"`
	Labels map[string]string `json:"labels,omitempty"`
	Help   string            `json:"help,omitempty"`

	// Counter value, or the observation count of a summary.
	Value float64 `json:"value"`

	Sum     float64 `json:"sum,omitempty"`
	Min     float64 `json:"min,omitempty"`
	Max     float64 `json:"max,omitempty"`
	Average float64 `json:"average,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

type series struct {
	metric Metric
}

// MetricsCollector keeps counters and summaries in memory.
type MetricsCollector struct {
	series      map[string]*series
	help        map[string]string
	metricsLock sync.RWMutex

	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		series:    make(map[string]*series),
		help:      make(map[string]string),
		startTime: time.Now(),
	}
}

// Describe attaches help text to a metric name.
func (mc *MetricsCollector) Describe(name, help string) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()
	mc.help[name] = help
}

// IncrCounter 增加计数器
func (mc *MetricsCollector) IncrCounter(name string, value float64, labels map[string]string) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	s := mc.lookup(name, MetricTypeCounter, labels)
	s.metric.Value += value
	s.metric.Timestamp = time.Now()
}

// Observe adds one observation to a summary.
func (mc *MetricsCollector) Observe(name string, value float64, labels map[string]string) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	s := mc.lookup(name, MetricTypeSummary, labels)
	m := &s.metric
	if m.Value == 0 || value < m.Min {
		m.Min = value
	}
	if m.Value == 0 || value > m.Max {
		m.Max = value
	}
	m.Value++
	m.Sum += value
	m.Average = m.Sum / m.Value
	m.Timestamp = time.Now()
}

func (mc *MetricsCollector) lookup(name string, typ MetricType, labels map[string]string) *series {
	key := seriesKey(name, labels)
	s, ok := mc.series[key]
	if !ok {
		copied := make(map[string]string, len(labels))
		for k, v := range labels {
			copied[k] = v
		}
		s = &series{metric: Metric{Name: name, Type: typ, Labels: copied}}
		mc.series[key] = s
	}
	return s
}

// GetMetric returns every series of a metric, one entry per label set.
func (mc *MetricsCollector) GetMetric(name string) ([]Metric, error) {
	all := mc.GetAllMetrics()
	metrics, ok := all[name]
	if !ok {
		return nil, fmt.Errorf("metric %s not found", name)
	}
	return metrics, nil
}

// GetAllMetrics 获取所有指标
func (mc *MetricsCollector) GetAllMetrics() map[string][]Metric {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	keys := make([]string, 0, len(mc.series))
	for k := range mc.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make(map[string][]Metric)
	for _, k := range keys {
		m := mc.series[k].metric
		m.Help = mc.help[m.Name]
		labels := make(map[string]string, len(m.Labels))
		for lk, lv := range m.Labels {
			labels[lk] = lv
		}
		m.Labels = labels
		result[m.Name] = append(result[m.Name], m)
	}
	return result
}

// ExportPrometheus 导出Prometheus格式
func (mc *MetricsCollector) ExportPrometheus() string {
	var sb strings.Builder

	metrics := mc.GetAllMetrics()
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		list := metrics[name]
		help := list[0].Help
		if help == "" {
			help = fmt.Sprintf("Metric %s", name)
		}
		fmt.Fprintf(&sb, "# HELP %s %s\n", name, help)
		fmt.Fprintf(&sb, "# TYPE %s %s\n", name, list[0].Type)

		for _, m := range list {
			labels := formatLabels(m.Labels)
			switch m.Type {
			case MetricTypeSummary:
				fmt.Fprintf(&sb, "%s_sum%s %g\n", name, labels, m.Sum)
				fmt.Fprintf(&sb, "%s_count%s %g\n", name, labels, m.Value)
			default:
				fmt.Fprintf(&sb, "%s%s %g\n", name, labels, m.Value)
			}
		}
	}
	return sb.String()
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats 获取系统统计
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime":     mc.GetUptime().String(),
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc":      m.Alloc,
			"heap_alloc": m.HeapAlloc,
			"heap_inuse": m.HeapInuse,
			"gc_count":   m.NumGC,
		},
		"num_cpu": runtime.NumCPU(),
	}
}

func seriesKey(name string, labels map[string]string) string {
	return name + formatLabels(labels)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
