package store

import (
	"fmt"
	"time"

	"github.com/matheus3301/wppbot/internal/conversation"
)

// SaveMessage journals an appended message. Saving an ID twice is a no-op.
func (db *DB) SaveMessage(m conversation.Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (seq, msg_id, contact, body, direction, status, origin, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(msg_id) DO NOTHING`,
		m.Seq, m.ID, m.Contact, m.Body, string(m.Direction), string(m.Status), string(m.Origin),
		m.Timestamp.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save message %q: %w", m.ID, err)
	}
	return nil
}

// SaveStatus journals a status change.
func (db *DB) SaveStatus(id string, status conversation.Status) error {
	_, err := db.Exec(`UPDATE messages SET status = ? WHERE msg_id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("save status %q: %w", id, err)
	}
	return nil
}

// SaveReadMark journals a contact's MarkRead watermark. The stored value never decreases.
func (db *DB) SaveReadMark(contact string, seq uint64) error {
	return db.saveMark("read_marks", contact, seq)
}

// SaveClearMark journals a contact's ClearHistory watermark. The stored value never decreases.
func (db *DB) SaveClearMark(contact string, seq uint64) error {
	return db.saveMark("clear_marks", contact, seq)
}

func (db *DB) saveMark(table, contact string, seq uint64) error {
	_, err := db.Exec(`
		INSERT INTO `+table+` (contact, seq, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(contact) DO UPDATE SET
			seq = MAX(`+table+`.seq, excluded.seq),
			updated_at = excluded.updated_at`,
		contact, seq, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save %s %q: %w", table, contact, err)
	}
	return nil
}

// LoadMessages returns every journaled message in arrival order.
func (db *DB) LoadMessages() ([]conversation.Message, error) {
	rows, err := db.Query(`
		SELECT seq, msg_id, contact, body, direction, status, origin, timestamp
		FROM messages ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []conversation.Message
	for rows.Next() {
		var (
			m                         conversation.Message
			direction, status, origin string
			ts                        int64
		)
		if err := rows.Scan(&m.Seq, &m.ID, &m.Contact, &m.Body, &direction, &status, &origin, &ts); err != nil {
			return nil, err
		}
		m.Direction = conversation.Direction(direction)
		m.Status = conversation.Status(status)
		m.Origin = conversation.Origin(origin)
		m.Timestamp = time.UnixMilli(ts)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// LoadMarks returns every journaled read and clear watermark keyed by contact.
func (db *DB) LoadMarks() (conversation.Marks, error) {
	read, err := db.loadMarks("read_marks")
	if err != nil {
		return conversation.Marks{}, err
	}
	cleared, err := db.loadMarks("clear_marks")
	if err != nil {
		return conversation.Marks{}, err
	}
	return conversation.Marks{Read: read, Cleared: cleared}, nil
}

func (db *DB) loadMarks(table string) (map[string]uint64, error) {
	rows, err := db.Query(`SELECT contact, seq FROM ` + table)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	marks := make(map[string]uint64)
	for rows.Next() {
		var contact string
		var seq uint64
		if err := rows.Scan(&contact, &seq); err != nil {
			return nil, err
		}
		marks[contact] = seq
	}
	return marks, rows.Err()
}

// MessageCount returns the total number of journaled messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
