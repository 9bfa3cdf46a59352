package telemetry

import (
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/companion/config"
)

// Telemetry records pipeline metrics and exposes them for scraping. Each
// instance owns its registry so parallel test servers do not collide on
// collector registration.
type Telemetry struct {
	enabled  bool
	logger   *log.Logger
	registry *prometheus.Registry

	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	tokens     *prometheus.CounterVec
	overBudget *prometheus.CounterVec
}

// New creates a telemetry instance. When disabled, all record calls are
// no-ops and Handler serves an empty registry. With a log_file configured
// the telemetry log goes there instead of the process log; periodic_logs
// emits a one-minute summary snapshot.
func New(cfg config.TelemetryConfig) *Telemetry {
	var out io.Writer = log.Writer()
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Printf("[TELEMETRY] open log file %s: %v, using default writer", cfg.LogFile, err)
		} else {
			out = f
		}
	}

	t := &Telemetry{
		enabled:  cfg.Enabled,
		logger:   log.New(out, "[TELEMETRY] ", log.LstdFlags),
		registry: prometheus.NewRegistry(),
	}

	t.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_pipeline_requests_total",
		Help: "Pipeline operations by outcome.",
	}, []string{"operation", "model", "status"})
	t.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "companion_pipeline_duration_seconds",
		Help:    "Wall-clock duration of pipeline operations.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"operation"})
	t.tokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_llm_tokens_total",
		Help: "Token usage by kind (prompt, completion, estimated).",
	}, []string{"operation", "kind"})
	t.overBudget = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_prompt_over_budget_total",
		Help: "Prompts whose estimated size exceeded the advisory context-window budget.",
	}, []string{"model"})

	t.registry.MustRegister(t.requests, t.duration, t.tokens, t.overBudget)

	if cfg.Enabled && cfg.PeriodicLogs {
		go t.startPeriodicLogging()
	}
	return t
}

func (t *Telemetry) startPeriodicLogging() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		t.logSnapshot()
	}
}

// logSnapshot writes a one-line summary of the counters gathered so far.
func (t *Telemetry) logSnapshot() {
	families, err := t.registry.Gather()
	if err != nil {
		t.logger.Printf("gather metrics: %v", err)
		return
	}
	var success, failure, tokens float64
	for _, mf := range families {
		switch mf.GetName() {
		case "companion_pipeline_requests_total":
			for _, m := range mf.GetMetric() {
				status := ""
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "status" {
						status = lp.GetValue()
					}
				}
				if status == "success" {
					success += m.GetCounter().GetValue()
				} else {
					failure += m.GetCounter().GetValue()
				}
			}
		case "companion_llm_tokens_total":
			for _, m := range mf.GetMetric() {
				tokens += m.GetCounter().GetValue()
			}
		}
	}
	t.logger.Printf("metrics snapshot: requests=%.0f/%.0f tokens=%.0f",
		success, success+failure, tokens)
}

// Handler serves the metrics endpoint for this instance's registry.
func (t *Telemetry) Handler() http.Handler {
	if t == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// RecordRequest tracks one pipeline operation outcome.
func (t *Telemetry) RecordRequest(operation, model string, duration time.Duration, err error) {
	if t == nil || !t.enabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	t.requests.WithLabelValues(operation, model, status).Inc()
	t.duration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		t.logger.Printf("%s (%s) failed after %s: %v", operation, model, duration, err)
	}
}

// RecordTokens tracks token usage. Prompt and completion counts come from
// the upstream when available; estimated is the local ceil(chars/4) figure.
func (t *Telemetry) RecordTokens(operation string, prompt, completion int64, estimated int) {
	if t == nil || !t.enabled {
		return
	}
	if prompt > 0 {
		t.tokens.WithLabelValues(operation, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		t.tokens.WithLabelValues(operation, "completion").Add(float64(completion))
	}
	if estimated > 0 {
		t.tokens.WithLabelValues(operation, "estimated").Add(float64(estimated))
	}
}

// RecordOverBudget flags an advisory prompt-budget violation.
func (t *Telemetry) RecordOverBudget(model string, estimated, window int) {
	if t == nil || !t.enabled {
		return
	}
	t.overBudget.WithLabelValues(model).Inc()
	t.logger.Printf("prompt over advisory budget: model=%s estimated=%d window=%d", model, estimated, window)
}
