package digest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/store"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func seededCore(t *testing.T) *conversation.Core {
	t.Helper()
	core := conversation.New(conversation.Options{})
	for _, m := range []conversation.Message{
		{Contact: "A", Body: "Olá", Direction: conversation.Inbound, Timestamp: t0},
		{Contact: "A", Body: "Oi!", Direction: conversation.Outbound, Origin: conversation.OriginAssistant, Timestamp: t0.Add(2 * time.Minute)},
	} {
		if _, err := core.Append(m); err != nil {
			t.Fatal(err)
		}
	}
	return core
}

func TestRunStoresAndPublishes(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	ch, unsub := b.Subscribe("stats.", 4)
	defer unsub()

	s := NewScheduler(Options{Core: seededCore(t), DB: db, Bus: b, Logger: zap.NewNop()})
	d, err := s.Run(t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if d.ID == 0 || d.TotalMessages != 2 || d.ResponseRate != 100 {
		t.Errorf("digest = %+v", d)
	}
	if d.AverageResponse == nil || *d.AverageResponse != 2*time.Minute {
		t.Errorf("average response = %v, want 2m", d.AverageResponse)
	}

	select {
	case evt := <-ch:
		st, ok := evt.Payload.(conversation.Stats)
		if evt.Kind != "stats.digest" || !ok || st.TotalMessages != 2 {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for stats.digest")
	}

	stored, err := db.RecentDigests(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].UnreadMessages != 0 {
		t.Errorf("stored = %+v", stored)
	}
}

func TestRunPrunesExpired(t *testing.T) {
	db := testDB(t)
	if err := db.SaveDigest(&store.Digest{TakenAt: t0.Add(-48 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveDigest(&store.Digest{TakenAt: t0.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	s := NewScheduler(Options{Core: conversation.New(conversation.Options{}), DB: db, Retention: 24 * time.Hour})
	if _, err := s.Run(t0); err != nil {
		t.Fatal(err)
	}

	stored, err := db.RecentDigests(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Fatalf("got %d digests, want 2 after pruning", len(stored))
	}
	if stored[0].AverageResponse != nil {
		t.Error("empty core should store no average response")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(Options{Schedule: "every tuesday"})
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestStartEmptyScheduleIsNoop(t *testing.T) {
	s := NewScheduler(Options{})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if !s.NextRun().IsZero() {
		t.Error("disabled scheduler reports a next run")
	}
	s.Stop()
}

func TestStartSchedulesNextRun(t *testing.T) {
	s := NewScheduler(Options{Core: conversation.New(conversation.Options{}), DB: testDB(t), Schedule: "@hourly"})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	// cron computes entry times asynchronously after Start.
	deadline := time.After(2 * time.Second)
	for s.NextRun().IsZero() {
		select {
		case <-deadline:
			t.Fatal("next run never scheduled")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if next := s.NextRun(); next.After(time.Now().Add(time.Hour)) {
		t.Errorf("next run %v is more than an hour away", next)
	}
}
