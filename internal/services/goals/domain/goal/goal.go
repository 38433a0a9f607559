// Package goal defines the Goal entity and its lifecycle rules.
package goal

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/attain.works/internal/platform/errors"
	"github.com/louisbranch/attain.works/internal/platform/id"
)

// Status describes the lifecycle of a goal.
type Status int

const (
	// StatusUnspecified represents an invalid status value.
	StatusUnspecified Status = iota
	// StatusOpen indicates the goal has been created but work has not started.
	StatusOpen
	// StatusInProgress indicates the goal is being worked on.
	StatusInProgress
	// StatusCompleted indicates the goal is done.
	StatusCompleted
	// StatusArchived indicates the goal has been retired without completion.
	StatusArchived
)

var (
	// ErrEmptyTitle indicates a missing goal title.
	ErrEmptyTitle = apperrors.New(apperrors.CodeGoalTitleEmpty, "goal title is required")
	// ErrInvalidStatusTransition indicates a disallowed goal status change.
	ErrInvalidStatusTransition = apperrors.New(apperrors.CodeGoalInvalidStatusTransition, "goal status transition is not allowed")
)

// Goal represents a unit of work whose completion is tracked through
// weighted achievement criteria.
type Goal struct {
	ID     string
	Title  string
	Status Status
	// Ancestors is the chain of goal ids this goal is reachable from,
	// nearest first. Maintained on write; the binding validator uses it
	// to reject criterion edges that would close a cycle.
	Ancestors []string
	// AchievedWeight is the derived completion percentage (0-100): the sum
	// of the weights of criteria marked done. Recomputed inside every
	// criterion mutation; never set directly by callers.
	AchievedWeight int
	// CreatedAt is the timestamp when the goal was created.
	CreatedAt time.Time
	// UpdatedAt is the timestamp when goal metadata last changed.
	UpdatedAt time.Time
	// CompletedAt is the timestamp when the goal was completed.
	CompletedAt *time.Time
}

// CreateGoalInput describes the metadata needed to create a goal.
type CreateGoalInput struct {
	Title string
	// Ancestors seeds the ancestor chain when the goal is created as a
	// child of an existing goal (e.g. through criterion conversion).
	Ancestors []string
}

// CreateGoal creates a new goal with a generated ID and timestamps.
func CreateGoal(input CreateGoalInput, now func() time.Time, idGenerator func() (string, error)) (Goal, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateGoalInput(input)
	if err != nil {
		return Goal{}, err
	}

	goalID, err := idGenerator()
	if err != nil {
		return Goal{}, fmt.Errorf("generate goal id: %w", err)
	}

	createdAt := now().UTC()
	return Goal{
		ID:        goalID,
		Title:     normalized.Title,
		Status:    StatusOpen,
		Ancestors: normalized.Ancestors,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// NormalizeCreateGoalInput trims and validates goal input metadata.
func NormalizeCreateGoalInput(input CreateGoalInput) (CreateGoalInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return CreateGoalInput{}, ErrEmptyTitle
	}
	seen := make(map[string]struct{}, len(input.Ancestors))
	deduped := make([]string, 0, len(input.Ancestors))
	for _, ancestor := range input.Ancestors {
		ancestor = strings.TrimSpace(ancestor)
		if ancestor == "" {
			continue
		}
		if _, ok := seen[ancestor]; ok {
			continue
		}
		seen[ancestor] = struct{}{}
		deduped = append(deduped, ancestor)
	}
	input.Ancestors = deduped
	return input, nil
}

// TransitionStatus applies a status transition and updates timestamps.
func TransitionStatus(g Goal, target Status, now func() time.Time) (Goal, error) {
	if now == nil {
		now = time.Now
	}
	if !isStatusTransitionAllowed(g.Status, target) {
		fromStatus := StatusLabel(g.Status)
		toStatus := StatusLabel(target)
		return Goal{}, apperrors.WithMetadata(
			apperrors.CodeGoalInvalidStatusTransition,
			fmt.Sprintf("goal status transition not allowed: %s -> %s", fromStatus, toStatus),
			map[string]string{"FromStatus": fromStatus, "ToStatus": toStatus},
		)
	}

	updated := g
	updated.Status = target
	updatedAt := now().UTC()
	updated.UpdatedAt = updatedAt
	if target == StatusCompleted && updated.CompletedAt == nil {
		updated.CompletedAt = &updatedAt
	}
	if g.Status == StatusCompleted && target != StatusCompleted {
		updated.CompletedAt = nil
	}
	return updated, nil
}

// isStatusTransitionAllowed reports whether a status transition is permitted.
func isStatusTransitionAllowed(from, to Status) bool {
	switch from {
	case StatusOpen:
		return to == StatusInProgress || to == StatusCompleted || to == StatusArchived
	case StatusInProgress:
		return to == StatusCompleted || to == StatusArchived
	case StatusCompleted:
		// Reopening a completed goal drives the uncomplete propagation path.
		return to == StatusInProgress || to == StatusArchived
	case StatusArchived:
		return to == StatusOpen
	default:
		return false
	}
}

// StatusLabel returns a stable label for a goal status.
func StatusLabel(status Status) string {
	switch status {
	case StatusOpen:
		return "OPEN"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusCompleted:
		return "COMPLETED"
	case StatusArchived:
		return "ARCHIVED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel parses a string label into a Status.
// It trims whitespace and matches case-insensitively. Both short ("OPEN")
// and prefixed ("GOAL_STATUS_OPEN") forms are accepted.
func StatusFromLabel(value string) (Status, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StatusUnspecified, apperrors.New(apperrors.CodeGoalInvalidStatus, "goal status is required")
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "OPEN", "GOAL_STATUS_OPEN":
		return StatusOpen, nil
	case "IN_PROGRESS", "GOAL_STATUS_IN_PROGRESS":
		return StatusInProgress, nil
	case "COMPLETED", "GOAL_STATUS_COMPLETED":
		return StatusCompleted, nil
	case "ARCHIVED", "GOAL_STATUS_ARCHIVED":
		return StatusArchived, nil
	default:
		return StatusUnspecified, apperrors.WithMetadata(
			apperrors.CodeGoalInvalidStatus,
			fmt.Sprintf("unknown goal status: %s", trimmed),
			map[string]string{"Status": trimmed},
		)
	}
}

// HasAncestor reports whether the given goal id appears in the ancestor chain.
func (g Goal) HasAncestor(goalID string) bool {
	for _, ancestor := range g.Ancestors {
		if ancestor == goalID {
			return true
		}
	}
	return false
}
