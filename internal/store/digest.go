package store

import (
	"database/sql"
	"time"
)

// SaveDigest persists a statistics snapshot.
func (db *DB) SaveDigest(d *Digest) error {
	var avg sql.NullInt64
	if d.AverageResponse != nil {
		avg = sql.NullInt64{Int64: d.AverageResponse.Milliseconds(), Valid: true}
	}
	res, err := db.Exec(`
		INSERT INTO stats_digests (taken_at, total_messages, incoming_messages, outgoing_messages,
			active_conversations, unread_messages, response_rate, avg_response_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.TakenAt.UnixMilli(), d.TotalMessages, d.IncomingMessages, d.OutgoingMessages,
		d.ActiveConversations, d.UnreadMessages, d.ResponseRate, avg)
	if err != nil {
		return err
	}
	d.ID, err = res.LastInsertId()
	return err
}

// RecentDigests returns up to limit digests, newest first.
func (db *DB) RecentDigests(limit int) ([]Digest, error) {
	if limit <= 0 {
		limit = 24
	}
	rows, err := db.Query(`
		SELECT id, taken_at, total_messages, incoming_messages, outgoing_messages,
			active_conversations, unread_messages, response_rate, avg_response_ms
		FROM stats_digests ORDER BY taken_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Digest
	for rows.Next() {
		var (
			d       Digest
			takenAt int64
			avg     sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &takenAt, &d.TotalMessages, &d.IncomingMessages, &d.OutgoingMessages,
			&d.ActiveConversations, &d.UnreadMessages, &d.ResponseRate, &avg); err != nil {
			return nil, err
		}
		d.TakenAt = time.UnixMilli(takenAt)
		if avg.Valid {
			v := time.Duration(avg.Int64) * time.Millisecond
			d.AverageResponse = &v
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PruneDigests deletes digests older than cutoff. Returns the number removed.
func (db *DB) PruneDigests(cutoff time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM stats_digests WHERE taken_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
