package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/attain.works/internal/services/goals/domain/goal"
	"github.com/louisbranch/attain.works/internal/services/goals/storage"
)

// CreateGoal inserts a goal record.
func (s *Store) CreateGoal(ctx context.Context, g goal.Goal) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	ancestors, err := marshalAncestors(g.Ancestors)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO goals (id, title, status, ancestors, achieved_weight, created_at, updated_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID,
		g.Title,
		goal.StatusLabel(g.Status),
		ancestors,
		g.AchievedWeight,
		toMillis(g.CreatedAt),
		toMillis(g.UpdatedAt),
		toNullMillis(g.CompletedAt),
	)
	if err != nil {
		return mapStoreError(fmt.Errorf("insert goal: %w", err))
	}
	return nil
}

// GetGoal loads a goal by id.
func (s *Store) GetGoal(ctx context.Context, id string) (goal.Goal, error) {
	if s == nil || s.sqlDB == nil {
		return goal.Goal{}, fmt.Errorf("storage is not configured")
	}
	return scanGoal(s.sqlDB.QueryRowContext(ctx, `
SELECT id, title, status, ancestors, achieved_weight, created_at, updated_at, completed_at
FROM goals WHERE id = ?`, id))
}

// UpdateGoal replaces a goal's mutable fields.
func (s *Store) UpdateGoal(ctx context.Context, g goal.Goal) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	ancestors, err := marshalAncestors(g.Ancestors)
	if err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE goals SET title = ?, status = ?, ancestors = ?, updated_at = ?, completed_at = ?
WHERE id = ?`,
		g.Title,
		goal.StatusLabel(g.Status),
		ancestors,
		toMillis(g.UpdatedAt),
		toNullMillis(g.CompletedAt),
		g.ID,
	)
	if err != nil {
		return mapStoreError(fmt.Errorf("update goal: %w", err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update goal rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (goal.Goal, error) {
	var (
		g           goal.Goal
		statusLabel string
		ancestors   string
		createdAt   int64
		updatedAt   int64
		completedAt sql.NullInt64
	)
	err := row.Scan(&g.ID, &g.Title, &statusLabel, &ancestors, &g.AchievedWeight, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goal.Goal{}, storage.ErrNotFound
		}
		return goal.Goal{}, fmt.Errorf("scan goal: %w", err)
	}

	status, err := goal.StatusFromLabel(statusLabel)
	if err != nil {
		return goal.Goal{}, fmt.Errorf("parse goal status: %w", err)
	}
	g.Status = status

	g.Ancestors, err = unmarshalAncestors(ancestors)
	if err != nil {
		return goal.Goal{}, err
	}

	g.CreatedAt = fromMillis(createdAt)
	g.UpdatedAt = fromMillis(updatedAt)
	g.CompletedAt = fromNullMillis(completedAt)
	return g, nil
}

func getGoalTx(ctx context.Context, tx *sql.Tx, id string) (goal.Goal, error) {
	return scanGoal(tx.QueryRowContext(ctx, `
SELECT id, title, status, ancestors, achieved_weight, created_at, updated_at, completed_at
FROM goals WHERE id = ?`, id))
}
