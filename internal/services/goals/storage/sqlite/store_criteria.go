package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/attain.works/internal/platform/errors"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/criterion"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/history"
	"github.com/louisbranch/attain.works/internal/services/goals/storage"
)

// CreateCriterion validates and inserts a criterion, appending entry.
// Title uniqueness, the weight budget, and binding rules are all checked
// against the rows read inside this transaction.
func (s *Store) CreateCriterion(ctx context.Context, c criterion.Criterion, entry history.Entry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getGoalTx(ctx, tx, c.HostGoalID); err != nil {
			return err
		}
		siblings, err := listCriteriaTx(ctx, tx, c.HostGoalID)
		if err != nil {
			return err
		}
		if err := s.validateCriterionTx(ctx, tx, c, "", siblings); err != nil {
			return err
		}
		if err := insertCriterionTx(ctx, tx, c); err != nil {
			return err
		}
		if err := appendHistoryTx(ctx, tx, entry); err != nil {
			return err
		}
		return recomputeAchievedTx(ctx, tx, c.HostGoalID, toMillis(c.CreatedAt))
	})
}

// UpdateCriterion validates and replaces a criterion, appending entry.
func (s *Store) UpdateCriterion(ctx context.Context, c criterion.Criterion, entry history.Entry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getCriterionTx(ctx, tx, c.HostGoalID, c.ID); err != nil {
			return err
		}
		siblings, err := listCriteriaTx(ctx, tx, c.HostGoalID)
		if err != nil {
			return err
		}
		if err := s.validateCriterionTx(ctx, tx, c, c.ID, siblings); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
UPDATE criteria SET title = ?, weight = ?, mode = ?, target_goal_id = ?, task_key = ?, updated_at = ?
WHERE host_goal_id = ? AND id = ?`,
			c.Title,
			c.Weight,
			criterion.ModeLabel(c.Mode),
			c.TargetGoalID,
			c.TaskKey,
			toMillis(c.UpdatedAt),
			c.HostGoalID,
			c.ID,
		)
		if err != nil {
			return fmt.Errorf("update criterion: %w", err)
		}
		if err := appendHistoryTx(ctx, tx, entry); err != nil {
			return err
		}
		return recomputeAchievedTx(ctx, tx, c.HostGoalID, toMillis(c.UpdatedAt))
	})
}

// RemoveCriterion deletes a criterion, appending entry.
func (s *Store) RemoveCriterion(ctx context.Context, hostGoalID, criterionID string, entry history.Entry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getCriterionTx(ctx, tx, hostGoalID, criterionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM criteria WHERE host_goal_id = ? AND id = ?", hostGoalID, criterionID); err != nil {
			return fmt.Errorf("delete criterion: %w", err)
		}
		if err := appendHistoryTx(ctx, tx, entry); err != nil {
			return err
		}
		return recomputeAchievedTx(ctx, tx, hostGoalID, toMillis(entry.Timestamp))
	})
}

// SetCriterionDone flips the done flag, appending entry. When the stored
// flag already matches the request nothing is written, keeping repeated
// toggles idempotent.
func (s *Store) SetCriterionDone(ctx context.Context, hostGoalID, criterionID string, done bool, entry history.Entry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getCriterionTx(ctx, tx, hostGoalID, criterionID)
		if err != nil {
			return err
		}
		if current.Done == done {
			return nil
		}
		return setDoneTx(ctx, tx, hostGoalID, criterionID, done, entry)
	})
}

// GetCriterion loads one criterion of a host goal.
func (s *Store) GetCriterion(ctx context.Context, hostGoalID, criterionID string) (criterion.Criterion, error) {
	if s == nil || s.sqlDB == nil {
		return criterion.Criterion{}, fmt.Errorf("storage is not configured")
	}
	return scanCriterion(s.sqlDB.QueryRowContext(ctx, criterionColumns+`
FROM criteria WHERE host_goal_id = ? AND id = ?`, hostGoalID, criterionID))
}

// ListCriteria returns the host's criteria ordered by creation time.
func (s *Store) ListCriteria(ctx context.Context, hostGoalID string) ([]criterion.Criterion, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, criterionColumns+`
FROM criteria WHERE host_goal_id = ? ORDER BY created_at, id`, hostGoalID)
	if err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	defer rows.Close()
	return collectCriteria(rows)
}

// ListCriteriaTargeting returns every goal-mode criterion bound to the
// given target goal, across all hosts.
func (s *Store) ListCriteriaTargeting(ctx context.Context, targetGoalID string) ([]criterion.Criterion, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, criterionColumns+`
FROM criteria WHERE target_goal_id = ? ORDER BY host_goal_id, created_at`, targetGoalID)
	if err != nil {
		return nil, fmt.Errorf("list criteria targeting: %w", err)
	}
	defer rows.Close()
	return collectCriteria(rows)
}

// PropagateTargetDone flips every bound criterion whose done flag differs
// from the target goal's new state. Each flip appends its own history
// entry; criteria already in the requested state are untouched so the
// operation can be replayed safely.
func (s *Store) PropagateTargetDone(ctx context.Context, targetGoalID string, done bool, makeEntry func(prev, next criterion.Criterion) (history.Entry, error)) ([]criterion.Criterion, error) {
	var changed []criterion.Criterion
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, criterionColumns+`
FROM criteria WHERE target_goal_id = ? AND done != ? ORDER BY host_goal_id, created_at`,
			targetGoalID, boolToInt(done))
		if err != nil {
			return fmt.Errorf("list stale bound criteria: %w", err)
		}
		stale, err := collectCriteria(rows)
		rows.Close()
		if err != nil {
			return err
		}

		for _, prev := range stale {
			next := prev
			next.Done = done
			entry, err := makeEntry(prev, next)
			if err != nil {
				return err
			}
			if err := setDoneTx(ctx, tx, prev.HostGoalID, prev.ID, done, entry); err != nil {
				return err
			}
			changed = append(changed, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

// validateCriterionTx re-runs the domain rules against in-transaction
// state: duplicate title, weight budget, and the binding checks including
// an authoritative cycle walk over criterion edges.
func (s *Store) validateCriterionTx(ctx context.Context, tx *sql.Tx, c criterion.Criterion, ownCriterionID string, siblings []criterion.Criterion) error {
	for _, sibling := range siblings {
		if ownCriterionID != "" && sibling.ID == ownCriterionID {
			continue
		}
		if sibling.Title == c.Title {
			return apperrors.WithMetadata(
				apperrors.CodeCriterionTitleDuplicate,
				fmt.Sprintf("criterion title already exists on goal: %s", c.Title),
				map[string]string{"Title": c.Title},
			)
		}
	}

	if err := criterion.ReserveWeight(siblings, ownCriterionID, c.Weight); err != nil {
		return err
	}

	if c.Mode != criterion.ModeGoal {
		return nil
	}

	host, err := getGoalTx(ctx, tx, c.HostGoalID)
	if err != nil {
		return err
	}
	if _, err := getGoalTx(ctx, tx, c.TargetGoalID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.WithMetadata(
				apperrors.CodeNotFound,
				fmt.Sprintf("target goal not found: %s", c.TargetGoalID),
				map[string]string{"GoalID": c.TargetGoalID},
			)
		}
		return err
	}
	if err := criterion.ValidateBinding(c.HostGoalID, c.TargetGoalID, ownCriterionID, siblings, host.Ancestors); err != nil {
		return err
	}
	return criterion.DetectCycle(ctx, c.HostGoalID, c.TargetGoalID, parentResolverTx(tx))
}

// parentResolverTx resolves binding-graph parents from in-transaction
// state: the hosts whose criteria target the given goal.
func parentResolverTx(tx *sql.Tx) criterion.ParentResolver {
	return func(ctx context.Context, goalID string) ([]string, error) {
		rows, err := tx.QueryContext(ctx,
			"SELECT DISTINCT host_goal_id FROM criteria WHERE target_goal_id = ?", goalID)
		if err != nil {
			return nil, fmt.Errorf("query parents: %w", err)
		}
		defer rows.Close()

		var parents []string
		for rows.Next() {
			var parent string
			if err := rows.Scan(&parent); err != nil {
				return nil, fmt.Errorf("scan parent: %w", err)
			}
			parents = append(parents, parent)
		}
		return parents, rows.Err()
	}
}

const criterionColumns = `
SELECT id, host_goal_id, title, weight, done, mode, target_goal_id, task_key, created_at, updated_at`

func insertCriterionTx(ctx context.Context, tx *sql.Tx, c criterion.Criterion) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO criteria (id, host_goal_id, title, weight, done, mode, target_goal_id, task_key, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.HostGoalID,
		c.Title,
		c.Weight,
		boolToInt(c.Done),
		criterion.ModeLabel(c.Mode),
		c.TargetGoalID,
		c.TaskKey,
		toMillis(c.CreatedAt),
		toMillis(c.UpdatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return apperrors.Wrap(apperrors.CodeConflict, "criterion insert conflicted with a concurrent write", err)
		}
		return fmt.Errorf("insert criterion: %w", err)
	}
	return nil
}

func setDoneTx(ctx context.Context, tx *sql.Tx, hostGoalID, criterionID string, done bool, entry history.Entry) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE criteria SET done = ?, updated_at = ? WHERE host_goal_id = ? AND id = ?",
		boolToInt(done), toMillis(entry.Timestamp), hostGoalID, criterionID)
	if err != nil {
		return fmt.Errorf("set criterion done: %w", err)
	}
	if err := appendHistoryTx(ctx, tx, entry); err != nil {
		return err
	}
	return recomputeAchievedTx(ctx, tx, hostGoalID, toMillis(entry.Timestamp))
}

func getCriterionTx(ctx context.Context, tx *sql.Tx, hostGoalID, criterionID string) (criterion.Criterion, error) {
	return scanCriterion(tx.QueryRowContext(ctx, criterionColumns+`
FROM criteria WHERE host_goal_id = ? AND id = ?`, hostGoalID, criterionID))
}

func listCriteriaTx(ctx context.Context, tx *sql.Tx, hostGoalID string) ([]criterion.Criterion, error) {
	rows, err := tx.QueryContext(ctx, criterionColumns+`
FROM criteria WHERE host_goal_id = ? ORDER BY created_at, id`, hostGoalID)
	if err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	defer rows.Close()
	return collectCriteria(rows)
}

// recomputeAchievedTx refreshes the host's derived completion weight
// after any criterion change committed in this transaction.
func recomputeAchievedTx(ctx context.Context, tx *sql.Tx, hostGoalID string, updatedAtMillis int64) error {
	_, err := tx.ExecContext(ctx, `
UPDATE goals
SET achieved_weight = (SELECT COALESCE(SUM(weight), 0) FROM criteria WHERE host_goal_id = ? AND done = 1),
    updated_at = ?
WHERE id = ?`, hostGoalID, updatedAtMillis, hostGoalID)
	if err != nil {
		return fmt.Errorf("recompute achieved weight: %w", err)
	}
	return nil
}

func scanCriterion(row rowScanner) (criterion.Criterion, error) {
	var (
		c         criterion.Criterion
		done      int
		modeLabel string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&c.ID, &c.HostGoalID, &c.Title, &c.Weight, &done, &modeLabel, &c.TargetGoalID, &c.TaskKey, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return criterion.Criterion{}, storage.ErrNotFound
		}
		return criterion.Criterion{}, fmt.Errorf("scan criterion: %w", err)
	}

	mode, err := criterion.ModeFromLabel(modeLabel)
	if err != nil {
		return criterion.Criterion{}, fmt.Errorf("parse criterion mode: %w", err)
	}
	c.Mode = mode
	c.Done = done != 0
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

func collectCriteria(rows *sql.Rows) ([]criterion.Criterion, error) {
	var criteria []criterion.Criterion
	for rows.Next() {
		c, err := scanCriterion(rows)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate criteria: %w", err)
	}
	return criteria, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
