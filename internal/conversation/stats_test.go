package conversation

import (
	"testing"
	"time"
)

func TestResponseRate(t *testing.T) {
	tests := []struct {
		out, in int
		want    int
	}{
		{0, 0, 0},
		{3, 0, 0},
		{1, 1, 100},
		{1, 3, 33},
		{2, 3, 67},
		{5, 2, 250},
	}
	for _, tt := range tests {
		if got := ResponseRate(tt.out, tt.in); got != tt.want {
			t.Errorf("ResponseRate(%d, %d) = %d, want %d", tt.out, tt.in, got, tt.want)
		}
	}
}

func TestRecomputeEmpty(t *testing.T) {
	st := Recompute(nil, nil)
	if st != (Stats{}) {
		t.Errorf("stats = %+v, want zero", st)
	}
	if st.AverageResponseTime.String() != "unavailable" {
		t.Errorf("average = %q, want unavailable", st.AverageResponseTime.String())
	}
}

func TestStatsSingleExchange(t *testing.T) {
	c := New(Options{})
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mustAppend(t, c, Message{Contact: "A", Body: "Olá", Direction: Inbound, Timestamp: t0})
	mustAppend(t, c, Message{Contact: "A", Body: "Oi!", Direction: Outbound, Timestamp: t0.Add(2 * time.Minute)})

	list := c.Conversations()
	if len(list) != 1 || list[0].Contact != "A" || list[0].LastMessageSummary != "Oi!" || list[0].UnreadCount != 0 {
		t.Errorf("list = %+v, want one answered conversation for A", list)
	}

	st := c.Stats()
	want := Stats{
		TotalMessages:       2,
		IncomingMessages:    1,
		OutgoingMessages:    1,
		ActiveConversations: 1,
		UnreadMessages:      0,
		ResponseRate:        100,
		AverageResponseTime: ResponseTime{Mean: 2 * time.Minute, Samples: 1},
	}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
	if got := st.AverageResponseTime.String(); got != "2m0s" {
		t.Errorf("average = %q, want 2m0s", got)
	}
}

func TestRecomputeResponseTimePairing(t *testing.T) {
	t0 := time.Unix(0, 0)
	msgs := []Message{
		{Contact: "a", Direction: Inbound, Timestamp: t0},
		{Contact: "b", Direction: Inbound, Timestamp: t0.Add(10 * time.Second)},
		{Contact: "a", Direction: Inbound, Timestamp: t0.Add(20 * time.Second)},
		// Answers both pending inbound messages from a.
		{Contact: "a", Direction: Outbound, Timestamp: t0.Add(60 * time.Second)},
		// A second reply with nothing pending adds no sample.
		{Contact: "a", Direction: Outbound, Timestamp: t0.Add(70 * time.Second)},
		// Clock skew clamps to zero.
		{Contact: "b", Direction: Outbound, Timestamp: t0},
	}
	st := Recompute(msgs, nil)
	if st.AverageResponseTime.Samples != 3 {
		t.Fatalf("samples = %d, want 3", st.AverageResponseTime.Samples)
	}
	// (60 + 40 + 0) / 3
	want := 100 * time.Second / 3
	if st.AverageResponseTime.Mean != want {
		t.Errorf("mean = %v, want %v", st.AverageResponseTime.Mean, want)
	}
	if st.ResponseRate != 100 {
		t.Errorf("rate = %d, want 100", st.ResponseRate)
	}
}

func TestRecomputeIsPure(t *testing.T) {
	msgs := []Message{{Contact: "a", Body: "x", Direction: Inbound, Timestamp: time.Unix(1, 0)}}
	convs := []Conversation{{Contact: "a", MessageIDs: []string{"1"}, UnreadCount: 1}}
	first := Recompute(msgs, convs)
	second := Recompute(msgs, convs)
	if first != second {
		t.Errorf("recompute not deterministic: %+v vs %+v", first, second)
	}
	if convs[0].UnreadCount != 1 || len(msgs) != 1 {
		t.Error("recompute mutated its inputs")
	}
}
