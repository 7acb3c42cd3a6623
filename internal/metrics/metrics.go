// Package metrics exports conversation statistics and reply outcomes to
// Prometheus.
package metrics

import (
	"time"

	"github.com/matheus3301/wppbot/internal/assistant"
	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/status"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wppbot"

var replyBuckets = []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60}

// Collector owns the registry served on /metrics. Conversation gauges are
// computed from a core snapshot on every scrape; reply metrics are pushed by
// the responder through ObserveReply.
type Collector struct {
	registry *prometheus.Registry

	replyLatency *prometheus.HistogramVec
	replies      *prometheus.CounterVec
}

// NewCollector registers all wppbot metrics on a fresh registry. machine may
// be nil, in which case no session metrics are exported.
func NewCollector(core *conversation.Core, machine *status.Machine) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		replyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_generation_seconds",
			Help:      "Time spent producing a reply, including fallbacks.",
			Buckets:   replyBuckets,
		}, []string{"outcome"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Reply cycles by outcome.",
		}, []string{"outcome"}),
	}
	// Pre-create both outcome series.
	for _, o := range []assistant.Outcome{assistant.OutcomeGenerated, assistant.OutcomeFallback} {
		c.replies.WithLabelValues(string(o))
	}

	c.registry.MustRegister(c.replyLatency, c.replies, newSnapshotCollector(core, machine))
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WatchBus exports the bus's dropped-delivery count.
func (c *Collector) WatchBus(b *bus.Bus) {
	c.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_dropped_events_total",
		Help:      "Event deliveries skipped because a subscriber buffer was full.",
	}, func() float64 { return float64(b.Dropped()) }))
}

// ObserveReply implements assistant.Observer.
func (c *Collector) ObserveReply(outcome assistant.Outcome, latency time.Duration) {
	c.replies.WithLabelValues(string(outcome)).Inc()
	c.replyLatency.WithLabelValues(string(outcome)).Observe(latency.Seconds())
}

// snapshotCollector reads the core and the session machine at scrape time.
type snapshotCollector struct {
	core    *conversation.Core
	machine *status.Machine

	messages     *prometheus.Desc
	active       *prometheus.Desc
	unread       *prometheus.Desc
	responseRate *prometheus.Desc
	avgResponse  *prometheus.Desc
	pairs        *prometheus.Desc
	sessionState *prometheus.Desc
}

func newSnapshotCollector(core *conversation.Core, machine *status.Machine) *snapshotCollector {
	return &snapshotCollector{
		core:    core,
		machine: machine,
		messages: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "messages"),
			"Messages held in the store by direction.",
			[]string{"direction"}, nil),
		active: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_conversations"),
			"Contacts with at least one message.", nil, nil),
		unread: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "unread_messages"),
			"Inbound messages not yet acknowledged by the operator.", nil, nil),
		responseRate: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "response_rate_percent"),
			"Outgoing messages as a percentage of incoming ones.", nil, nil),
		avgResponse: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "average_response_seconds"),
			"Mean delay between an inbound message and the next reply. Absent until a reply exists.", nil, nil),
		pairs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "response_samples"),
			"Inbound messages that have been answered.", nil, nil),
		sessionState: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "session", "state"),
			"1 for the current WhatsApp session state, 0 otherwise.",
			[]string{"state", "online"}, nil),
	}
}

func (s *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.messages
	ch <- s.active
	ch <- s.unread
	ch <- s.responseRate
	ch <- s.avgResponse
	ch <- s.pairs
	if s.machine != nil {
		ch <- s.sessionState
	}
}

func (s *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	st := s.core.Snapshot().Stats

	ch <- prometheus.MustNewConstMetric(s.messages, prometheus.GaugeValue, float64(st.IncomingMessages), string(conversation.Inbound))
	ch <- prometheus.MustNewConstMetric(s.messages, prometheus.GaugeValue, float64(st.OutgoingMessages), string(conversation.Outbound))
	ch <- prometheus.MustNewConstMetric(s.active, prometheus.GaugeValue, float64(st.ActiveConversations))
	ch <- prometheus.MustNewConstMetric(s.unread, prometheus.GaugeValue, float64(st.UnreadMessages))
	ch <- prometheus.MustNewConstMetric(s.responseRate, prometheus.GaugeValue, float64(st.ResponseRate))
	ch <- prometheus.MustNewConstMetric(s.pairs, prometheus.GaugeValue, float64(st.AverageResponseTime.Samples))
	if st.AverageResponseTime.Available() {
		ch <- prometheus.MustNewConstMetric(s.avgResponse, prometheus.GaugeValue, st.AverageResponseTime.Mean.Seconds())
	}

	if s.machine == nil {
		return
	}
	current := s.machine.Current()
	for _, state := range status.All {
		v := 0.0
		if state == current {
			v = 1
		}
		online := "false"
		if state.Online() {
			online = "true"
		}
		ch <- prometheus.MustNewConstMetric(s.sessionState, prometheus.GaugeValue, v, string(state), online)
	}
}
