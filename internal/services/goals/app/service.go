// Package app orchestrates goal and criterion operations over storage,
// propagation, and external task lookups.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/attain.works/internal/platform/errors"
	"github.com/louisbranch/attain.works/internal/platform/id"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/criterion"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/goal"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/history"
	"github.com/louisbranch/attain.works/internal/services/goals/storage"
)

// TaskChecker verifies external task references.
type TaskChecker interface {
	// TaskExists reports whether the external tracker knows the task key.
	TaskExists(ctx context.Context, key string) (bool, error)
}

// LifecyclePublisher emits goal status notifications to other processes.
type LifecyclePublisher interface {
	Publish(ctx context.Context, notification GoalStatusNotification) error
}

// Service coordinates the goals engine operations.
type Service struct {
	store       storage.Store
	tasks       TaskChecker
	notifier    LifecyclePublisher
	clock       func() time.Time
	idGenerator func() (string, error)
	tracer      trace.Tracer
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides the id generator.
func WithIDGenerator(generator func() (string, error)) Option {
	return func(s *Service) {
		if generator != nil {
			s.idGenerator = generator
		}
	}
}

// WithTaskChecker wires the external task lookup collaborator.
func WithTaskChecker(tasks TaskChecker) Option {
	return func(s *Service) {
		s.tasks = tasks
	}
}

// WithLifecyclePublisher wires the goal status notification publisher.
func WithLifecyclePublisher(notifier LifecyclePublisher) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// NewService constructs a goals service over the given store.
func NewService(store storage.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	s := &Service{
		store:       store,
		clock:       time.Now,
		idGenerator: id.NewID,
		tracer:      otel.Tracer("goals"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// CreateGoal creates a goal.
func (s *Service) CreateGoal(ctx context.Context, input goal.CreateGoalInput) (goal.Goal, error) {
	ctx, span := s.tracer.Start(ctx, "goals.CreateGoal")
	defer span.End()

	g, err := goal.CreateGoal(input, s.clock, s.idGenerator)
	if err != nil {
		return goal.Goal{}, err
	}
	if err := s.store.CreateGoal(ctx, g); err != nil {
		return goal.Goal{}, err
	}
	return g, nil
}

// GetGoal loads a goal by id.
func (s *Service) GetGoal(ctx context.Context, goalID string) (goal.Goal, error) {
	ctx, span := s.tracer.Start(ctx, "goals.GetGoal")
	defer span.End()
	return s.store.GetGoal(ctx, goalID)
}

// TransitionGoalStatus applies a status change and propagates completion
// into criteria bound to the goal.
func (s *Service) TransitionGoalStatus(ctx context.Context, goalID string, target goal.Status) (goal.Goal, error) {
	ctx, span := s.tracer.Start(ctx, "goals.TransitionGoalStatus")
	defer span.End()

	// The status write and the propagation commit in separate
	// transactions. Once the write lands, a retry replays only the
	// propagation; re-running the transition would read its own result
	// and reject COMPLETED -> COMPLETED.
	var updated goal.Goal
	var previous goal.Status
	committed := false
	err := s.retryOnConflict(ctx, func(ctx context.Context) error {
		if !committed {
			current, err := s.store.GetGoal(ctx, goalID)
			if err != nil {
				return err
			}
			next, err := goal.TransitionStatus(current, target, s.clock)
			if err != nil {
				return err
			}
			if err := s.store.UpdateGoal(ctx, next); err != nil {
				return err
			}
			previous = current.Status
			updated = next
			committed = true
		}
		return s.propagateStatusChange(ctx, previous, updated)
	})
	if err != nil {
		return goal.Goal{}, err
	}

	if s.notifier != nil {
		notification := GoalStatusNotification{GoalID: updated.ID, Status: goal.StatusLabel(updated.Status)}
		if err := s.notifier.Publish(ctx, notification); err != nil {
			// Notifications are best effort; the transition already
			// committed.
			log.Printf("publish lifecycle notification for goal %s: %v", updated.ID, err)
		}
	}
	return updated, nil
}

// AddCriterion creates a criterion on a host goal.
func (s *Service) AddCriterion(ctx context.Context, actorID string, input criterion.CreateInput) (criterion.Criterion, error) {
	ctx, span := s.tracer.Start(ctx, "goals.AddCriterion")
	defer span.End()

	c, err := criterion.New(input, s.clock, s.idGenerator)
	if err != nil {
		return criterion.Criterion{}, err
	}

	entry, err := history.NewCriterionEntry(history.ActionAdd, history.SourceManual, history.ActorTypeUser, actorID, criterion.Criterion{}, c, s.clock)
	if err != nil {
		return criterion.Criterion{}, err
	}

	err = s.retryOnConflict(ctx, func(ctx context.Context) error {
		return s.store.CreateCriterion(ctx, c, entry)
	})
	if err != nil {
		return criterion.Criterion{}, err
	}
	return c, nil
}

// UpdateCriterion applies a partial edit to a criterion.
func (s *Service) UpdateCriterion(ctx context.Context, actorID, hostGoalID, criterionID string, input criterion.UpdateInput) (criterion.Criterion, error) {
	ctx, span := s.tracer.Start(ctx, "goals.UpdateCriterion")
	defer span.End()

	var updated criterion.Criterion
	err := s.retryOnConflict(ctx, func(ctx context.Context) error {
		current, err := s.store.GetCriterion(ctx, hostGoalID, criterionID)
		if err != nil {
			return err
		}
		next, err := criterion.ApplyUpdate(current, input, s.clock)
		if err != nil {
			return err
		}
		entry, err := history.NewCriterionEntry(history.ActionEdit, history.SourceManual, history.ActorTypeUser, actorID, current, next, s.clock)
		if err != nil {
			return err
		}
		if err := s.store.UpdateCriterion(ctx, next, entry); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return criterion.Criterion{}, err
	}
	return updated, nil
}

// RemoveCriterion deletes a criterion from its host goal.
func (s *Service) RemoveCriterion(ctx context.Context, actorID, hostGoalID, criterionID string) error {
	ctx, span := s.tracer.Start(ctx, "goals.RemoveCriterion")
	defer span.End()

	return s.retryOnConflict(ctx, func(ctx context.Context) error {
		current, err := s.store.GetCriterion(ctx, hostGoalID, criterionID)
		if err != nil {
			return err
		}
		entry, err := history.NewCriterionEntry(history.ActionRemove, history.SourceManual, history.ActorTypeUser, actorID, current, criterion.Criterion{}, s.clock)
		if err != nil {
			return err
		}
		return s.store.RemoveCriterion(ctx, hostGoalID, criterionID, entry)
	})
}

// ToggleCriterionDone flips the done flag of a criterion.
//
// Goal-bound criteria whose target has completed derive their state from
// the target and cannot be toggled by hand. External-task criteria are
// verified against the tracker before they can be marked done.
func (s *Service) ToggleCriterionDone(ctx context.Context, actorID, hostGoalID, criterionID string, done bool) (criterion.Criterion, error) {
	ctx, span := s.tracer.Start(ctx, "goals.ToggleCriterionDone")
	defer span.End()

	var updated criterion.Criterion
	err := s.retryOnConflict(ctx, func(ctx context.Context) error {
		current, err := s.store.GetCriterion(ctx, hostGoalID, criterionID)
		if err != nil {
			return err
		}
		if err := s.checkToggleAllowed(ctx, current, done); err != nil {
			return err
		}

		next := current
		next.Done = done
		action := history.ActionComplete
		if !done {
			action = history.ActionUncomplete
		}
		entry, err := history.NewCriterionEntry(action, history.SourceManual, history.ActorTypeUser, actorID, current, next, s.clock)
		if err != nil {
			return err
		}
		if err := s.store.SetCriterionDone(ctx, hostGoalID, criterionID, done, entry); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return criterion.Criterion{}, err
	}
	return updated, nil
}

func (s *Service) checkToggleAllowed(ctx context.Context, c criterion.Criterion, done bool) error {
	switch c.Mode {
	case criterion.ModeGoal:
		target, err := s.store.GetGoal(ctx, c.TargetGoalID)
		if err != nil {
			return err
		}
		if target.Status == goal.StatusCompleted {
			return apperrors.WithMetadata(
				apperrors.CodeCriterionStateDerived,
				"criterion state is derived from its completed target goal",
				map[string]string{"CriterionID": c.ID, "TargetGoalID": c.TargetGoalID},
			)
		}
		return nil
	case criterion.ModeExternalTask:
		if !done || s.tasks == nil {
			return nil
		}
		exists, err := s.tasks.TaskExists(ctx, c.TaskKey)
		if err != nil {
			return apperrors.WrapWithMetadata(
				apperrors.CodeTaskLookupFailed,
				"external task lookup failed",
				map[string]string{"TaskKey": c.TaskKey},
				err,
			)
		}
		if !exists {
			return apperrors.WithMetadata(
				apperrors.CodeTaskNotFound,
				fmt.Sprintf("external task not found: %s", c.TaskKey),
				map[string]string{"TaskKey": c.TaskKey},
			)
		}
		return nil
	default:
		return nil
	}
}

// CriteriaView is the listCriteria result: the criteria plus the derived
// budget figures computed from the same snapshot.
type CriteriaView struct {
	Criteria        []criterion.Criterion
	AchievedWeight  int
	RemainingWeight int
}

// ListCriteria returns the host's criteria with the achieved percentage
// and remaining budget.
func (s *Service) ListCriteria(ctx context.Context, hostGoalID string) (CriteriaView, error) {
	ctx, span := s.tracer.Start(ctx, "goals.ListCriteria")
	defer span.End()

	criteria, err := s.store.ListCriteria(ctx, hostGoalID)
	if err != nil {
		return CriteriaView{}, err
	}
	return CriteriaView{
		Criteria:        criteria,
		AchievedWeight:  criterion.AchievedWeight(criteria),
		RemainingWeight: criterion.RemainingWeight(criteria, ""),
	}, nil
}

// ValidateBinding is the advisory pre-check clients call before saving a
// goal-mode criterion. The same rules run again inside the commit, so a
// pass here is not a reservation.
func (s *Service) ValidateBinding(ctx context.Context, hostGoalID, targetGoalID, ownCriterionID string) error {
	ctx, span := s.tracer.Start(ctx, "goals.ValidateBinding")
	defer span.End()

	host, err := s.store.GetGoal(ctx, hostGoalID)
	if err != nil {
		return err
	}
	if _, err := s.store.GetGoal(ctx, targetGoalID); err != nil {
		return err
	}
	criteria, err := s.store.ListCriteria(ctx, hostGoalID)
	if err != nil {
		return err
	}
	if err := criterion.ValidateBinding(hostGoalID, targetGoalID, ownCriterionID, criteria, host.Ancestors); err != nil {
		return err
	}
	return criterion.DetectCycle(ctx, hostGoalID, targetGoalID, s.parentResolver())
}

func (s *Service) parentResolver() criterion.ParentResolver {
	return func(ctx context.Context, goalID string) ([]string, error) {
		bound, err := s.store.ListCriteriaTargeting(ctx, goalID)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(bound))
		var parents []string
		for _, c := range bound {
			if _, ok := seen[c.HostGoalID]; ok {
				continue
			}
			seen[c.HostGoalID] = struct{}{}
			parents = append(parents, c.HostGoalID)
		}
		return parents, nil
	}
}

// ListHistory returns a page of the goal's change log.
func (s *Service) ListHistory(ctx context.Context, hostGoalID, filter string, pageSize int, pageToken string) (storage.HistoryPage, error) {
	ctx, span := s.tracer.Start(ctx, "goals.ListHistory")
	defer span.End()
	return s.store.ListHistory(ctx, hostGoalID, filter, pageSize, pageToken)
}

// retryOnConflict retries fn once when a concurrent write aborts the
// first attempt. Validation failures and other errors surface directly.
func (s *Service) retryOnConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || apperrors.KindOf(err) != apperrors.KindConsistency {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(err, ctxErr)
	}
	return fn(ctx)
}
