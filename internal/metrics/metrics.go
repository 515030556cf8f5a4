package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispositionMetrics exposes counters/histograms for the call webhook pipeline.
type DispositionMetrics struct {
	webhookEvents  *prometheus.CounterVec
	dispositions   *prometheus.CounterVec
	stepFailures   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
	dispatchTotal  *prometheus.CounterVec
}

func NewDispositionMetrics(reg prometheus.Registerer) *DispositionMetrics {
	m := &DispositionMetrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialer",
			Name:      "webhook_events_total",
			Help:      "Voice-AI call webhooks by event and result",
		}, []string{"event", "result"}),
		dispositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialer",
			Name:      "dispositions_total",
			Help:      "Classified call dispositions",
		}, []string{"disposition"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialer",
			Name:      "pipeline_step_failures_total",
			Help:      "Downstream write steps that failed and were rolled back",
		}, []string{"step"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dialer",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of call webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialer",
			Name:      "function_dispatch_total",
			Help:      "Sibling function invocations by function and status",
		}, []string{"function", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookEvents, m.dispositions, m.stepFailures, m.webhookLatency, m.dispatchTotal)
	return m
}

func (m *DispositionMetrics) ObserveWebhook(event, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(event, result).Inc()
}

func (m *DispositionMetrics) ObserveDisposition(disposition string) {
	if m == nil {
		return
	}
	m.dispositions.WithLabelValues(disposition).Inc()
}

func (m *DispositionMetrics) ObserveStepFailure(step string) {
	if m == nil {
		return
	}
	m.stepFailures.WithLabelValues(step).Inc()
}

func (m *DispositionMetrics) ObserveWebhookLatency(event string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(event).Observe(seconds)
}

func (m *DispositionMetrics) ObserveDispatch(function string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.dispatchTotal.WithLabelValues(function, status).Inc()
}
