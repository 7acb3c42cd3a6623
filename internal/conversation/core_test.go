package conversation

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingJournal struct {
	mu       sync.Mutex
	messages []Message
	statuses map[string]Status
	marks    map[string]uint64
	clears   map[string]uint64
	fail     bool
}

func newRecordingJournal() *recordingJournal {
	return &recordingJournal{statuses: map[string]Status{}, marks: map[string]uint64{}, clears: map[string]uint64{}}
}

func (j *recordingJournal) SaveMessage(m Message) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail {
		return errors.New("disk full")
	}
	j.messages = append(j.messages, m)
	return nil
}

func (j *recordingJournal) SaveStatus(id string, s Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.statuses[id] = s
	return nil
}

func (j *recordingJournal) SaveReadMark(contact string, seq uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.marks[contact] = seq
	return nil
}

func (j *recordingJournal) SaveClearMark(contact string, seq uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.clears[contact] = seq
	return nil
}

// replay returns the journaled messages with their latest statuses applied.
func (j *recordingJournal) replay() []Message {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Message, len(j.messages))
	for i, m := range j.messages {
		if s, ok := j.statuses[m.ID]; ok {
			m.Status = s
		}
		out[i] = m
	}
	return out
}

func TestCoreAppendFeedsWindowAndIndex(t *testing.T) {
	c := New(Options{WindowSize: 4})
	mustAppend(t, c, Message{Contact: "a", Body: "q", Direction: Inbound})
	mustAppend(t, c, Message{Contact: "a", Body: "sorry", Direction: Outbound, Origin: OriginFallback})
	mustAppend(t, c, Message{Contact: "a", Body: "r", Direction: Outbound})

	turns := c.Window().Turns("a")
	if len(turns) != 2 || turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Errorf("turns = %+v, want [user assistant]", turns)
	}

	conv, msgs, ok := c.Conversation("a")
	if !ok {
		t.Fatal("conversation missing")
	}
	if len(msgs) != 3 || len(conv.MessageIDs) != 3 {
		t.Errorf("messages = %d, ids = %d, want 3", len(msgs), len(conv.MessageIDs))
	}
}

func TestCoreRejectedAppendChangesNothing(t *testing.T) {
	j := newRecordingJournal()
	c := New(Options{Journal: j})
	if _, err := c.Append(Message{Contact: "a", Body: "", Direction: Inbound}); err == nil {
		t.Fatal("expected validation error")
	}
	if len(c.Conversations()) != 0 || c.Window().Len("a") != 0 || len(j.messages) != 0 {
		t.Error("rejected append left state behind")
	}
}

func TestCoreWindowBoundUnderLoad(t *testing.T) {
	c := New(Options{})
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 25 {
				dir := Inbound
				if i%2 == 1 {
					dir = Outbound
				}
				if _, err := c.Append(Message{Contact: fmt.Sprintf("c%d", g%3), Body: "x", Direction: dir}); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	for i := range 3 {
		if n := c.Window().Len(fmt.Sprintf("c%d", i)); n != DefaultWindowSize {
			t.Errorf("c%d window len = %d, want %d", i, n, DefaultWindowSize)
		}
	}
	if st := c.Stats(); st.TotalMessages != 200 {
		t.Errorf("total = %d, want 200", st.TotalMessages)
	}
}

func TestCoreUpdateStatusJournals(t *testing.T) {
	j := newRecordingJournal()
	c := New(Options{Journal: j})
	m := mustAppend(t, c, Message{Contact: "a", Body: "hi", Direction: Outbound})

	if _, err := c.UpdateStatus(m.ID, StatusSent); err != nil {
		t.Fatal(err)
	}
	if j.statuses[m.ID] != StatusSent {
		t.Errorf("journaled status = %s, want sent", j.statuses[m.ID])
	}

	// Repeating the same status is not journaled again.
	delete(j.statuses, m.ID)
	if _, err := c.UpdateStatus(m.ID, StatusSent); err != nil {
		t.Fatal(err)
	}
	if _, ok := j.statuses[m.ID]; ok {
		t.Error("no-op transition was journaled")
	}

	_, err := c.UpdateStatus(m.ID, StatusPending)
	var terr *InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Errorf("error = %v, want InvalidTransitionError", err)
	}

	_, err = c.UpdateStatus("nope", StatusRead)
	var nerr *NotFoundError
	if !errors.As(err, &nerr) {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

func TestCoreJournalFailureKeepsMemoryState(t *testing.T) {
	j := newRecordingJournal()
	j.fail = true
	c := New(Options{Journal: j})
	if _, err := c.Append(Message{Contact: "a", Body: "hi", Direction: Inbound}); err != nil {
		t.Fatalf("Append() error = %v, want nil on journal failure", err)
	}
	if c.Store().Len() != 1 {
		t.Errorf("store len = %d, want 1", c.Store().Len())
	}
}

func TestCoreRestore(t *testing.T) {
	j := newRecordingJournal()
	c := New(Options{Journal: j})
	t0 := time.Unix(1000, 0)
	mustAppend(t, c, Message{Contact: "a", Body: "one", Direction: Inbound, Timestamp: t0})
	mustAppend(t, c, Message{Contact: "a", Body: "two", Direction: Outbound, Timestamp: t0.Add(time.Second)})
	c.MarkRead("a")
	mustAppend(t, c, Message{Contact: "a", Body: "three", Direction: Inbound, Timestamp: t0.Add(2 * time.Second)})

	restored := New(Options{})
	if err := restored.Restore(j.replay(), Marks{Read: j.marks, Cleared: j.clears}); err != nil {
		t.Fatal(err)
	}

	if got, want := restored.Stats(), c.Stats(); got != want {
		t.Errorf("restored stats = %+v, want %+v", got, want)
	}
	if got := unread(t, restored, "a"); got != 1 {
		t.Errorf("restored unread = %d, want 1", got)
	}
	if got := restored.Window().Len("a"); got != 3 {
		t.Errorf("restored window len = %d, want 3", got)
	}
}

func TestCoreClearHistoryKeepsLog(t *testing.T) {
	c := New(Options{})
	mustAppend(t, c, Message{Contact: "a", Body: "hi", Direction: Inbound})
	if !c.ClearHistory("a") {
		t.Fatal("ClearHistory() returned false")
	}
	if c.Window().Len("a") != 0 {
		t.Error("window not cleared")
	}
	if _, msgs, _ := c.Conversation("a"); len(msgs) != 1 {
		t.Errorf("messages = %d, want 1", len(msgs))
	}

	mustAppend(t, c, Message{Contact: "a", Body: "again", Direction: Inbound})
	if turns := c.Window().Turns("a"); len(turns) != 1 || turns[0].Text != "again" {
		t.Errorf("turns = %+v, want only the new turn", turns)
	}
}

func TestCoreClearHistorySurvivesRebuild(t *testing.T) {
	j := newRecordingJournal()
	c := New(Options{Journal: j})
	mustAppend(t, c, Message{Contact: "a", Body: "forget me", Direction: Inbound})
	mustAppend(t, c, Message{Contact: "b", Body: "keep me", Direction: Inbound})
	if !c.ClearHistory("a") {
		t.Fatal("ClearHistory() returned false")
	}
	if j.clears["a"] != 1 {
		t.Errorf("journaled clear mark = %d, want 1", j.clears["a"])
	}

	c.Rebuild()
	if n := c.Window().Len("a"); n != 0 {
		t.Errorf("window len after rebuild = %d, want 0", n)
	}

	mustAppend(t, c, Message{Contact: "a", Body: "new topic", Direction: Inbound})
	restored := New(Options{})
	if err := restored.Restore(j.replay(), Marks{Read: j.marks, Cleared: j.clears}); err != nil {
		t.Fatal(err)
	}
	if turns := restored.Window().Turns("a"); len(turns) != 1 || turns[0].Text != "new topic" {
		t.Errorf("restored a turns = %+v, want only the turn after the clear", turns)
	}
	if n := restored.Window().Len("b"); n != 1 {
		t.Errorf("restored b len = %d, want 1", n)
	}
}

func TestCoreOutboundAcknowledgesInbound(t *testing.T) {
	j := newRecordingJournal()
	c := New(Options{Journal: j})
	a1 := mustAppend(t, c, Message{Contact: "a", Body: "Olá", Direction: Inbound})
	a2 := mustAppend(t, c, Message{Contact: "a", Body: "Tudo bem?", Direction: Inbound})
	b1 := mustAppend(t, c, Message{Contact: "b", Body: "Oi", Direction: Inbound})
	if got := unread(t, c, "a"); got != 2 {
		t.Fatalf("unread before reply = %d, want 2", got)
	}

	mustAppend(t, c, Message{Contact: "a", Body: "Tudo ótimo!", Direction: Outbound})

	if got := unread(t, c, "a"); got != 0 {
		t.Errorf("unread after reply = %d, want 0", got)
	}
	for _, id := range []string{a1.ID, a2.ID} {
		if m, _ := c.Store().Get(id); m.Status != StatusRead {
			t.Errorf("status of %s = %s, want read", id, m.Status)
		}
		if j.statuses[id] != StatusRead {
			t.Errorf("journaled status of %s = %s, want read", id, j.statuses[id])
		}
	}
	if m, _ := c.Store().Get(b1.ID); m.Status != StatusUnread || unread(t, c, "b") != 1 {
		t.Errorf("other contact touched: status %s", m.Status)
	}

	mustAppend(t, c, Message{Contact: "a", Body: "Outra coisa", Direction: Inbound})
	if got := unread(t, c, "a"); got != 1 {
		t.Errorf("unread after new inbound = %d, want 1", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := New(Options{})
	mustAppend(t, c, Message{ID: "1", Contact: "a", Body: "hi", Direction: Inbound})
	snap := c.Snapshot()
	snap.Conversations[0].MessageIDs[0] = "changed"

	conv, _ := c.Index().Get("a")
	if conv.MessageIDs[0] != "1" {
		t.Error("snapshot aliases index state")
	}
}

func TestSnapshotConsistentUnderAppends(t *testing.T) {
	c := New(Options{})
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for g := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 2000 {
				select {
				case <-stop:
					return
				default:
				}
				contact := fmt.Sprintf("g%d-%d", g, i%50)
				if _, err := c.Append(Message{Contact: contact, Body: "x", Direction: Inbound}); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}

	for range 200 {
		snap := c.Snapshot()
		ids := 0
		for _, conv := range snap.Conversations {
			ids += len(conv.MessageIDs)
		}
		if ids != snap.Stats.TotalMessages || len(snap.Conversations) != snap.Stats.ActiveConversations {
			t.Errorf("snapshot disagrees: %d ids in %d conversations, stats %+v", ids, len(snap.Conversations), snap.Stats)
			break
		}
	}
	close(stop)
	wg.Wait()
}
