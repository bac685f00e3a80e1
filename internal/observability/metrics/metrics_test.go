package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestChatbotMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatbotMetrics(reg)
	m.ObserveTurn("send_message", "ok")
	m.ObserveTurn("send_message", "ok")
	m.ObserveFunctionCall("schedule_callback", "applied")
	m.ObserveTransition("COLLECTING_LEAD_INFO", "DISCUSSING_SERVICES")
	m.ObserveDirectoryLookup("hit")
	m.ObserveLLMLatency("reply", 0.4)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	found := map[string]*dto.MetricFamily{}
	for _, mf := range families {
		found[mf.GetName()] = mf
	}
	turns, ok := found["pharmesol_chatbot_turns_total"]
	if !ok {
		t.Fatalf("expected turns counter to be registered, got %v", found)
	}
	if got := turns.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 turns, got %v", got)
	}
	for _, name := range []string{
		"pharmesol_chatbot_function_calls_total",
		"pharmesol_chatbot_state_transitions_total",
		"pharmesol_directory_lookups_total",
		"pharmesol_chatbot_llm_latency_seconds",
	} {
		if _, ok := found[name]; !ok {
			t.Fatalf("expected %s to be exported", name)
		}
	}
}

func TestChatbotMetricsNilSafe(t *testing.T) {
	var m *ChatbotMetrics
	m.ObserveTurn("start_chat", "ok")
	m.ObserveFunctionCall("x", "unknown")
	m.ObserveTransition("a", "b")
	m.ObserveDirectoryLookup("miss")
	m.ObserveLLMLatency("reply", 0.1)
}
