// Package criterion defines achievement criteria and the pure validation
// rules shared by advisory checks and authoritative commits.
package criterion

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/attain.works/internal/platform/errors"
	"github.com/louisbranch/attain.works/internal/platform/id"
)

// Mode describes how a criterion is satisfied.
type Mode int

const (
	// ModeUnspecified represents an invalid mode value.
	ModeUnspecified Mode = iota
	// ModeSimple is a free-text criterion checked off by hand.
	ModeSimple
	// ModeGoal binds the criterion to another goal's completion.
	ModeGoal
	// ModeExternalTask binds the criterion to a task in an external tracker.
	ModeExternalTask
)

// MaxBudget is the weight capacity of a single host goal.
const MaxBudget = 100

var (
	// ErrEmptyTitle indicates a missing criterion title.
	ErrEmptyTitle = apperrors.New(apperrors.CodeCriterionTitleEmpty, "criterion title is required")
	// ErrInvalidMode indicates a missing or invalid criterion mode.
	ErrInvalidMode = apperrors.New(apperrors.CodeCriterionInvalidMode, "criterion mode is required")
	// ErrTargetRequired indicates a goal-mode criterion without a target goal.
	ErrTargetRequired = apperrors.New(apperrors.CodeCriterionTargetRequired, "target goal id is required for goal criteria")
	// ErrTaskKeyRequired indicates an external-task criterion without a task key.
	ErrTaskKeyRequired = apperrors.New(apperrors.CodeCriterionTaskKeyRequired, "task key is required for external-task criteria")
)

// Criterion is one weighted sub-condition of a host goal.
type Criterion struct {
	ID         string
	HostGoalID string
	// Title is unique within the host's criteria set, case-sensitive.
	Title string
	// Weight is the criterion's share of the host's 100-point budget.
	// Zero means no weight has been chosen yet; such rows do not count
	// against the budget or the achieved percentage.
	Weight int
	Done   bool
	Mode   Mode
	// TargetGoalID is set only when Mode is ModeGoal.
	TargetGoalID string
	// TaskKey is set only when Mode is ModeExternalTask.
	TaskKey   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput describes a candidate criterion.
type CreateInput struct {
	HostGoalID   string
	Title        string
	Weight       int
	Mode         Mode
	TargetGoalID string
	TaskKey      string
}

// UpdateInput describes a partial criterion edit. Nil fields are unchanged.
type UpdateInput struct {
	Title        *string
	Weight       *int
	Mode         *Mode
	TargetGoalID *string
	TaskKey      *string
}

// New creates a criterion with a generated ID and timestamps.
func New(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Criterion, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Criterion{}, err
	}

	criterionID, err := idGenerator()
	if err != nil {
		return Criterion{}, fmt.Errorf("generate criterion id: %w", err)
	}

	createdAt := now().UTC()
	return Criterion{
		ID:           criterionID,
		HostGoalID:   normalized.HostGoalID,
		Title:        normalized.Title,
		Weight:       normalized.Weight,
		Mode:         normalized.Mode,
		TargetGoalID: normalized.TargetGoalID,
		TaskKey:      normalized.TaskKey,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// NormalizeCreateInput trims and validates candidate criterion fields.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.HostGoalID = strings.TrimSpace(input.HostGoalID)
	input.Title = strings.TrimSpace(input.Title)
	input.TargetGoalID = strings.TrimSpace(input.TargetGoalID)
	input.TaskKey = strings.TrimSpace(input.TaskKey)

	if input.Title == "" {
		return CreateInput{}, ErrEmptyTitle
	}
	if err := validateWeightValue(input.Weight); err != nil {
		return CreateInput{}, err
	}
	switch input.Mode {
	case ModeSimple:
		input.TargetGoalID = ""
		input.TaskKey = ""
	case ModeGoal:
		if input.TargetGoalID == "" {
			return CreateInput{}, ErrTargetRequired
		}
		input.TaskKey = ""
	case ModeExternalTask:
		if input.TaskKey == "" {
			return CreateInput{}, ErrTaskKeyRequired
		}
		input.TargetGoalID = ""
	default:
		return CreateInput{}, ErrInvalidMode
	}
	return input, nil
}

// ApplyUpdate merges a partial edit into an existing criterion and
// re-validates the result.
func ApplyUpdate(c Criterion, input UpdateInput, now func() time.Time) (Criterion, error) {
	if now == nil {
		now = time.Now
	}

	updated := c
	if input.Title != nil {
		updated.Title = *input.Title
	}
	if input.Weight != nil {
		updated.Weight = *input.Weight
	}
	if input.Mode != nil {
		updated.Mode = *input.Mode
	}
	if input.TargetGoalID != nil {
		updated.TargetGoalID = *input.TargetGoalID
	}
	if input.TaskKey != nil {
		updated.TaskKey = *input.TaskKey
	}

	normalized, err := NormalizeCreateInput(CreateInput{
		HostGoalID:   updated.HostGoalID,
		Title:        updated.Title,
		Weight:       updated.Weight,
		Mode:         updated.Mode,
		TargetGoalID: updated.TargetGoalID,
		TaskKey:      updated.TaskKey,
	})
	if err != nil {
		return Criterion{}, err
	}

	updated.Title = normalized.Title
	updated.Weight = normalized.Weight
	updated.Mode = normalized.Mode
	updated.TargetGoalID = normalized.TargetGoalID
	updated.TaskKey = normalized.TaskKey
	updated.UpdatedAt = now().UTC()
	return updated, nil
}

// validateWeightValue accepts weights in [0, MaxBudget]. Zero is the
// transient "no weight chosen yet" value; committed weights are >= 1 and
// budget-checked separately.
func validateWeightValue(weight int) error {
	if weight < 0 || weight > MaxBudget {
		return apperrors.WithMetadata(
			apperrors.CodeCriterionInvalidWeight,
			fmt.Sprintf("criterion weight must be between 0 and %d, got %d", MaxBudget, weight),
			map[string]string{"Weight": fmt.Sprintf("%d", weight)},
		)
	}
	return nil
}

// ModeLabel returns a stable label for a criterion mode.
func ModeLabel(mode Mode) string {
	switch mode {
	case ModeSimple:
		return "SIMPLE"
	case ModeGoal:
		return "GOAL"
	case ModeExternalTask:
		return "EXTERNAL_TASK"
	default:
		return "UNSPECIFIED"
	}
}

// ModeFromLabel parses a string label into a Mode.
// It trims whitespace and matches case-insensitively. Both short ("GOAL")
// and prefixed ("CRITERION_MODE_GOAL") forms are accepted.
func ModeFromLabel(value string) (Mode, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ModeUnspecified, ErrInvalidMode
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "SIMPLE", "CRITERION_MODE_SIMPLE":
		return ModeSimple, nil
	case "GOAL", "CRITERION_MODE_GOAL":
		return ModeGoal, nil
	case "EXTERNAL_TASK", "EXTERNAL-TASK", "CRITERION_MODE_EXTERNAL_TASK":
		return ModeExternalTask, nil
	default:
		return ModeUnspecified, apperrors.WithMetadata(
			apperrors.CodeCriterionInvalidMode,
			fmt.Sprintf("unknown criterion mode: %s", trimmed),
			map[string]string{"Mode": trimmed},
		)
	}
}
