package app

import (
	"context"
	"log"

	"github.com/louisbranch/attain.works/internal/services/goals/domain/criterion"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/goal"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/history"
)

// propagateStatusChange pushes a goal's completion state into every
// goal-mode criterion bound to it. Completing the goal marks the bound
// criteria done; leaving the completed state clears them. Criteria
// already in the right state are skipped, so replays append no duplicate
// history.
func (s *Service) propagateStatusChange(ctx context.Context, previous goal.Status, updated goal.Goal) error {
	completedNow := updated.Status == goal.StatusCompleted
	completedBefore := previous == goal.StatusCompleted
	if completedNow == completedBefore {
		return nil
	}

	action := history.ActionComplete
	if !completedNow {
		action = history.ActionUncomplete
	}
	makeEntry := func(prev, next criterion.Criterion) (history.Entry, error) {
		return history.NewCriterionEntry(action, history.SourcePropagated, history.ActorTypeSystem, "", prev, next, s.clock)
	}

	changed, err := s.store.PropagateTargetDone(ctx, updated.ID, completedNow, makeEntry)
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		log.Printf("propagated goal %s completion=%t to %d bound criteria", updated.ID, completedNow, len(changed))
	}
	return nil
}

// HandleLifecycleNotification applies a goal status event observed on the
// notification channel. Goals completed elsewhere mark their bound
// criteria done; any other status clears them. The underlying propagation
// skips criteria already in the right state, so duplicate deliveries are
// harmless.
func (s *Service) HandleLifecycleNotification(ctx context.Context, notification GoalStatusNotification) error {
	ctx, span := s.tracer.Start(ctx, "goals.HandleLifecycleNotification")
	defer span.End()

	status, err := goal.StatusFromLabel(notification.Status)
	if err != nil {
		return err
	}
	completed := status == goal.StatusCompleted

	action := history.ActionComplete
	if !completed {
		action = history.ActionUncomplete
	}
	makeEntry := func(prev, next criterion.Criterion) (history.Entry, error) {
		return history.NewCriterionEntry(action, history.SourcePropagated, history.ActorTypeSystem, "", prev, next, s.clock)
	}

	return s.retryOnConflict(ctx, func(ctx context.Context) error {
		changed, err := s.store.PropagateTargetDone(ctx, notification.GoalID, completed, makeEntry)
		if err != nil {
			return err
		}
		if len(changed) > 0 {
			log.Printf("applied lifecycle event goal=%s status=%s to %d bound criteria", notification.GoalID, notification.Status, len(changed))
		}
		return nil
	})
}
