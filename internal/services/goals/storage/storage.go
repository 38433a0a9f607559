// Package storage defines the persistence contracts for the goals engine.
package storage

import (
	"context"

	apperrors "github.com/louisbranch/attain.works/internal/platform/errors"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/criterion"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/goal"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/history"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// GoalStore persists goal records.
type GoalStore interface {
	CreateGoal(ctx context.Context, g goal.Goal) error
	GetGoal(ctx context.Context, id string) (goal.Goal, error)
	UpdateGoal(ctx context.Context, g goal.Goal) error
}

// CriterionStore persists criterion records. Every mutation re-validates
// the candidate change against the rows it reads inside its own
// transaction, appends the given history entry, and recomputes the host's
// achieved weight, so concurrent writers cannot commit a state that the
// domain rules reject.
type CriterionStore interface {
	// CreateCriterion validates and inserts a criterion, appending entry.
	CreateCriterion(ctx context.Context, c criterion.Criterion, entry history.Entry) error
	// UpdateCriterion validates and replaces a criterion, appending entry.
	UpdateCriterion(ctx context.Context, c criterion.Criterion, entry history.Entry) error
	// RemoveCriterion deletes a criterion, appending entry.
	RemoveCriterion(ctx context.Context, hostGoalID, criterionID string, entry history.Entry) error
	// SetCriterionDone flips the done flag, appending entry. It is a
	// no-op (no history) when the stored flag already matches.
	SetCriterionDone(ctx context.Context, hostGoalID, criterionID string, done bool, entry history.Entry) error
	// GetCriterion loads one criterion of a host goal.
	GetCriterion(ctx context.Context, hostGoalID, criterionID string) (criterion.Criterion, error)
	// ListCriteria returns the host's criteria ordered by creation time.
	ListCriteria(ctx context.Context, hostGoalID string) ([]criterion.Criterion, error)
	// ListCriteriaTargeting returns every goal-mode criterion bound to
	// the given target goal, across all hosts.
	ListCriteriaTargeting(ctx context.Context, targetGoalID string) ([]criterion.Criterion, error)
	// PropagateTargetDone sets the done flag on every goal-mode
	// criterion bound to targetGoalID whose flag differs, appending one
	// history entry per changed criterion built by makeEntry. It
	// returns the criteria actually changed.
	PropagateTargetDone(ctx context.Context, targetGoalID string, done bool, makeEntry func(prev, next criterion.Criterion) (history.Entry, error)) ([]criterion.Criterion, error)
}

// HistoryPage is one page of a goal's change log.
type HistoryPage struct {
	Entries       []history.Entry
	NextPageToken string
}

// HistoryStore reads the append-only change log. Appends happen only
// through CriterionStore mutations.
type HistoryStore interface {
	// ListHistory returns entries for a host goal in ascending sequence
	// order. filter is an optional AIP-160 expression over entry fields.
	ListHistory(ctx context.Context, hostGoalID, filter string, pageSize int, pageToken string) (HistoryPage, error)
}

// Store is the composite interface the application layer depends on.
type Store interface {
	GoalStore
	CriterionStore
	HistoryStore
}
