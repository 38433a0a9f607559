package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/attain.works/internal/services/goals/domain/history"
	"github.com/louisbranch/attain.works/internal/services/goals/storage"
	"github.com/louisbranch/attain.works/internal/services/goals/storage/cursor"
)

const defaultHistoryPageSize = 50
const maxHistoryPageSize = 200

// ListHistory returns entries for a host goal in ascending sequence order.
// filter is an optional AIP-160 expression; pageToken is an opaque cursor
// from a previous page and is rejected when the filter changed between
// calls.
func (s *Store) ListHistory(ctx context.Context, hostGoalID, filter string, pageSize int, pageToken string) (storage.HistoryPage, error) {
	if s == nil || s.sqlDB == nil {
		return storage.HistoryPage{}, fmt.Errorf("storage is not configured")
	}

	if pageSize <= 0 {
		pageSize = defaultHistoryPageSize
	}
	if pageSize > maxHistoryPageSize {
		pageSize = maxHistoryPageSize
	}

	var afterSeq int64
	if pageToken != "" {
		c, err := cursor.Decode(pageToken)
		if err != nil {
			return storage.HistoryPage{}, fmt.Errorf("invalid page token: %w", err)
		}
		if err := cursor.ValidateFilterHash(c, filter); err != nil {
			return storage.HistoryPage{}, fmt.Errorf("invalid page token: %w", err)
		}
		afterSeq = c.Seq
	}

	condition, err := parseHistoryFilter(filter)
	if err != nil {
		return storage.HistoryPage{}, err
	}

	query := `
SELECT host_goal_id, seq, subject, action, source, actor_type, actor_id, criterion_id, ts, prev_json, next_json
FROM history_entries
WHERE host_goal_id = ? AND seq > ?`
	params := []any{hostGoalID, afterSeq}
	if condition.Clause != "" {
		query += " AND " + condition.Clause
		params = append(params, condition.Params...)
	}
	// Fetch one extra row to detect whether another page exists.
	query += " ORDER BY seq LIMIT ?"
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return storage.HistoryPage{}, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return storage.HistoryPage{}, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return storage.HistoryPage{}, fmt.Errorf("iterate history: %w", err)
	}

	page := storage.HistoryPage{Entries: entries}
	if len(entries) > pageSize {
		page.Entries = entries[:pageSize]
		token, err := cursor.Encode(cursor.NewNextPageCursor(page.Entries[pageSize-1].Seq, filter))
		if err != nil {
			return storage.HistoryPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// appendHistoryTx assigns the next per-goal sequence number and inserts
// the entry in the surrounding transaction.
func appendHistoryTx(ctx context.Context, tx *sql.Tx, entry history.Entry) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO history_seq (host_goal_id, next_seq) VALUES (?, 1)
ON CONFLICT(host_goal_id) DO UPDATE SET next_seq = next_seq + 1`, entry.HostGoalID); err != nil {
		return fmt.Errorf("advance history seq: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT next_seq FROM history_seq WHERE host_goal_id = ?", entry.HostGoalID).Scan(&seq); err != nil {
		return fmt.Errorf("read history seq: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO history_entries (host_goal_id, seq, subject, action, source, actor_type, actor_id, criterion_id, ts, prev_json, next_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.HostGoalID,
		seq,
		string(entry.Subject),
		string(entry.Action),
		string(entry.Source),
		string(entry.ActorType),
		entry.ActorID,
		entry.CriterionID,
		toMillis(entry.Timestamp),
		entry.Prev,
		entry.Next,
	); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func scanHistoryEntry(row rowScanner) (history.Entry, error) {
	var (
		entry     history.Entry
		subject   string
		action    string
		source    string
		actorType string
		ts        int64
	)
	err := row.Scan(&entry.HostGoalID, &entry.Seq, &subject, &action, &source, &actorType, &entry.ActorID, &entry.CriterionID, &ts, &entry.Prev, &entry.Next)
	if err != nil {
		return history.Entry{}, fmt.Errorf("scan history entry: %w", err)
	}
	entry.Subject = history.Subject(subject)
	entry.Action = history.Action(action)
	entry.Source = history.Source(source)
	entry.ActorType = history.ActorType(actorType)
	entry.Timestamp = fromMillis(ts)
	return entry, nil
}
