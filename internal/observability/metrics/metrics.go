package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatbotMetrics exposes counters/histograms for the conversation engine.
type ChatbotMetrics struct {
	turnsTotal         *prometheus.CounterVec
	functionCallsTotal *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	directoryLookups   *prometheus.CounterVec
	llmLatency         *prometheus.HistogramVec
}

func NewChatbotMetrics(reg prometheus.Registerer) *ChatbotMetrics {
	m := &ChatbotMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmesol",
			Subsystem: "chatbot",
			Name:      "turns_total",
			Help:      "Total conversation operations by outcome",
		}, []string{"operation", "outcome"}),
		functionCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmesol",
			Subsystem: "chatbot",
			Name:      "function_calls_total",
			Help:      "Model-issued function calls by name and result",
		}, []string{"function", "result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmesol",
			Subsystem: "chatbot",
			Name:      "state_transitions_total",
			Help:      "Applied conversation state transitions",
		}, []string{"from", "to"}),
		directoryLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmesol",
			Subsystem: "directory",
			Name:      "lookups_total",
			Help:      "Pharmacy directory lookups by result",
		}, []string{"result"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pharmesol",
			Subsystem: "chatbot",
			Name:      "llm_latency_seconds",
			Help:      "Latency of LLM capability calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.functionCallsTotal, m.transitionsTotal, m.directoryLookups, m.llmLatency)
	return m
}

func (m *ChatbotMetrics) ObserveTurn(operation, outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *ChatbotMetrics) ObserveFunctionCall(function, result string) {
	if m == nil {
		return
	}
	m.functionCallsTotal.WithLabelValues(function, result).Inc()
}

func (m *ChatbotMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveDirectoryLookup records hit, miss, not_found or error.
func (m *ChatbotMetrics) ObserveDirectoryLookup(result string) {
	if m == nil {
		return
	}
	m.directoryLookups.WithLabelValues(result).Inc()
}

func (m *ChatbotMetrics) ObserveLLMLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(operation).Observe(seconds)
}
