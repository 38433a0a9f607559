package app

import (
	"context"

	apperrors "github.com/louisbranch/attain.works/internal/platform/errors"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/criterion"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/goal"
)

// ConversionResult reports the outcome of converting a criterion into a
// standalone goal.
type ConversionResult struct {
	CreatedGoal goal.Goal
	Criterion   criterion.Criterion
}

// ConvertCriterionToGoal turns a simple criterion into a new goal and
// rebinds the criterion to it. newGoalTitle names the created goal; when
// empty the criterion's title is used.
//
// The conversion runs in two phases: create the goal, then rebind the
// criterion. The phases are not atomic. When rebinding fails the created
// goal is left in place and the error carries its id, so the caller can
// retry the rebind or clean up.
func (s *Service) ConvertCriterionToGoal(ctx context.Context, actorID, hostGoalID, criterionID, newGoalTitle string) (ConversionResult, error) {
	ctx, span := s.tracer.Start(ctx, "goals.ConvertCriterionToGoal")
	defer span.End()

	current, err := s.store.GetCriterion(ctx, hostGoalID, criterionID)
	if err != nil {
		return ConversionResult{}, err
	}
	if current.Mode != criterion.ModeSimple {
		return ConversionResult{}, apperrors.WithMetadata(
			apperrors.CodeCriterionNotConvertible,
			"only simple criteria can be converted to goals",
			map[string]string{"CriterionID": criterionID, "Mode": criterion.ModeLabel(current.Mode)},
		)
	}

	host, err := s.store.GetGoal(ctx, hostGoalID)
	if err != nil {
		return ConversionResult{}, err
	}

	title := newGoalTitle
	if title == "" {
		title = current.Title
	}

	// Phase 1: create the goal as a child of the host so the ancestor
	// chain covers it for future binding checks.
	created, err := s.CreateGoal(ctx, goal.CreateGoalInput{
		Title:     title,
		Ancestors: append([]string{host.ID}, host.Ancestors...),
	})
	if err != nil {
		return ConversionResult{}, err
	}

	// Phase 2: rebind the criterion to the created goal.
	mode := criterion.ModeGoal
	rebound, err := s.UpdateCriterion(ctx, actorID, hostGoalID, criterionID, criterion.UpdateInput{
		Mode:         &mode,
		TargetGoalID: &created.ID,
	})
	if err != nil {
		return ConversionResult{}, apperrors.WrapWithMetadata(
			apperrors.CodeConversionIncomplete,
			"goal created but criterion rebind failed",
			map[string]string{"CreatedGoalID": created.ID, "CriterionID": criterionID},
			err,
		)
	}

	return ConversionResult{CreatedGoal: created, Criterion: rebound}, nil
}
