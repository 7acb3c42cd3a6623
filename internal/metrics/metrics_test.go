package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/assistant"
	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// gauge returns the value of the metric with the given name and labels.
func gauge(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) (float64, bool) {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if matches(m, labels) {
				return m.GetGauge().GetValue(), true
			}
		}
	}
	return 0, false
}

func matches(m *dto.Metric, labels map[string]string) bool {
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestSnapshotGauges(t *testing.T) {
	core := conversation.New(conversation.Options{})
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	for _, m := range []conversation.Message{
		{Contact: "A", Body: "Olá", Direction: conversation.Inbound, Timestamp: t0},
		{Contact: "A", Body: "Oi!", Direction: conversation.Outbound, Origin: conversation.OriginAssistant, Timestamp: t0.Add(2 * time.Minute)},
		{Contact: "B", Body: "hey", Direction: conversation.Inbound, Timestamp: t0},
	} {
		if _, err := core.Append(m); err != nil {
			t.Fatal(err)
		}
	}
	c := NewCollector(core, nil)
	reg := c.Registry()

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"wppbot_messages", map[string]string{"direction": "inbound"}, 2},
		{"wppbot_messages", map[string]string{"direction": "outbound"}, 1},
		{"wppbot_active_conversations", nil, 2},
		// A's message was answered; only B's is pending.
		{"wppbot_unread_messages", nil, 1},
		{"wppbot_response_rate_percent", nil, 50},
		{"wppbot_average_response_seconds", nil, 120},
		{"wppbot_response_samples", nil, 1},
	}
	for _, tt := range tests {
		got, ok := gauge(t, reg, tt.name, tt.labels)
		if !ok {
			t.Errorf("%s%v missing", tt.name, tt.labels)
			continue
		}
		if got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}

	core.MarkRead("B")
	if got, _ := gauge(t, reg, "wppbot_unread_messages", nil); got != 0 {
		t.Errorf("unread after MarkRead = %v, want 0", got)
	}
}

func TestAverageResponseAbsentWithoutPairs(t *testing.T) {
	c := NewCollector(conversation.New(conversation.Options{}), nil)
	if _, ok := gauge(t, c.Registry(), "wppbot_average_response_seconds", nil); ok {
		t.Error("average response exported with no samples")
	}
	if got, _ := gauge(t, c.Registry(), "wppbot_response_rate_percent", nil); got != 0 {
		t.Errorf("response rate = %v, want 0", got)
	}
}

func TestSessionState(t *testing.T) {
	m := status.NewMachine(nil)
	c := NewCollector(conversation.New(conversation.Options{}), m)
	_ = m.Transition(status.Connecting)
	_ = m.Transition(status.Syncing)

	if got, _ := gauge(t, c.Registry(), "wppbot_session_state", map[string]string{"state": "SYNCING", "online": "true"}); got != 1 {
		t.Errorf("SYNCING = %v, want 1", got)
	}
	if got, _ := gauge(t, c.Registry(), "wppbot_session_state", map[string]string{"state": "BOOTING", "online": "false"}); got != 0 {
		t.Errorf("BOOTING = %v, want 0", got)
	}
}

func TestBusDroppedEvents(t *testing.T) {
	b := bus.New()
	c := NewCollector(conversation.New(conversation.Options{}), nil)
	c.WatchBus(b)

	_, unsub := b.Subscribe(bus.PrefixMessage, 1)
	defer unsub()
	for i := 0; i < 4; i++ {
		b.Publish(bus.Event{Kind: bus.KindMessageAppended})
	}

	expected := `
# HELP wppbot_bus_dropped_events_total Event deliveries skipped because a subscriber buffer was full.
# TYPE wppbot_bus_dropped_events_total counter
wppbot_bus_dropped_events_total 3
`
	if err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "wppbot_bus_dropped_events_total"); err != nil {
		t.Error(err)
	}
}

func TestObserveReply(t *testing.T) {
	c := NewCollector(conversation.New(conversation.Options{}), nil)
	c.ObserveReply(assistant.OutcomeGenerated, 800*time.Millisecond)
	c.ObserveReply(assistant.OutcomeGenerated, 1200*time.Millisecond)
	c.ObserveReply(assistant.OutcomeFallback, 30*time.Second)

	if got := testutil.ToFloat64(c.replies.WithLabelValues("generated")); got != 2 {
		t.Errorf("generated = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.replies.WithLabelValues("fallback")); got != 1 {
		t.Errorf("fallback = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.replyLatency); n != 2 {
		t.Errorf("latency series = %d, want 2", n)
	}
}

func TestServerExposesMetrics(t *testing.T) {
	c := NewCollector(conversation.New(conversation.Options{}), nil)
	s := NewServer("127.0.0.1:0", c, zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"wppbot_replies_total", "wppbot_active_conversations"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("response missing %s", want)
		}
	}
}

func TestServerDisabled(t *testing.T) {
	s := NewServer("", NewCollector(conversation.New(conversation.Options{}), nil), nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if s.Addr() != "" {
		t.Errorf("Addr() = %q, want empty", s.Addr())
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}
