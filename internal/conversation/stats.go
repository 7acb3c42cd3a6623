package conversation

import (
	"math"
	"time"
)

// Stats holds the global analytics derived from the message log.
type Stats struct {
	TotalMessages       int
	IncomingMessages    int
	OutgoingMessages    int
	ActiveConversations int
	UnreadMessages      int
	ResponseRate        int // percent of outgoing over incoming
	AverageResponseTime ResponseTime
}

// ResponseTime is the mean delay between an inbound message and the reply
// that followed it.
type ResponseTime struct {
	Mean    time.Duration
	Samples int
}

// Available reports whether at least one inbound message has been answered.
func (r ResponseTime) Available() bool {
	return r.Samples > 0
}

func (r ResponseTime) String() string {
	if !r.Available() {
		return "unavailable"
	}
	return r.Mean.Round(time.Second).String()
}

// Recompute derives Stats from the messages (in arrival order) and the
// current conversations. It has no side effects.
func Recompute(msgs []Message, convs []Conversation) Stats {
	st := Stats{
		TotalMessages:       len(msgs),
		ActiveConversations: len(convs),
	}
	for _, c := range convs {
		st.UnreadMessages += c.UnreadCount
	}

	var total time.Duration
	waiting := make(map[string][]time.Time)
	for _, m := range msgs {
		switch m.Direction {
		case Inbound:
			st.IncomingMessages++
			waiting[m.Contact] = append(waiting[m.Contact], m.Timestamp)
		case Outbound:
			st.OutgoingMessages++
			for _, sent := range waiting[m.Contact] {
				total += max(m.Timestamp.Sub(sent), 0)
				st.AverageResponseTime.Samples++
			}
			delete(waiting, m.Contact)
		}
	}

	st.ResponseRate = ResponseRate(st.OutgoingMessages, st.IncomingMessages)
	if n := st.AverageResponseTime.Samples; n > 0 {
		st.AverageResponseTime.Mean = total / time.Duration(n)
	}
	return st
}

// ResponseRate returns round(outgoing/incoming*100), or 0 when nothing came in.
func ResponseRate(outgoing, incoming int) int {
	if incoming == 0 {
		return 0
	}
	return int(math.Round(float64(outgoing) / float64(incoming) * 100))
}
