package app

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/louisbranch/attain.works/internal/platform/errors"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/criterion"
	"github.com/louisbranch/attain.works/internal/services/goals/domain/goal"
)

func TestConvertCriterionToGoal(t *testing.T) {
	store := newFakeStore()
	seedGoal(store, "g1", "Host", goal.StatusOpen)
	store.goals["g1"] = goal.Goal{ID: "g1", Title: "Host", Status: goal.StatusOpen, Ancestors: []string{"root"}}
	seedCriterion(store, criterion.Criterion{
		ID: "c1", HostGoalID: "g1", Title: "Design the schema", Weight: 30,
		Mode: criterion.ModeSimple, CreatedAt: serviceTime, UpdatedAt: serviceTime,
	})
	svc := newTestService(t, store)

	result, err := svc.ConvertCriterionToGoal(context.Background(), "user-1", "g1", "c1", "New work item")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if result.CreatedGoal.Title != "New work item" {
		t.Fatalf("expected goal titled from input, got %q", result.CreatedGoal.Title)
	}
	if len(result.CreatedGoal.Ancestors) != 2 || result.CreatedGoal.Ancestors[0] != "g1" || result.CreatedGoal.Ancestors[1] != "root" {
		t.Fatalf("expected host chain as ancestors, got %v", result.CreatedGoal.Ancestors)
	}
	if result.Criterion.Mode != criterion.ModeGoal || result.Criterion.TargetGoalID != result.CreatedGoal.ID {
		t.Fatalf("expected criterion rebound to created goal, got %+v", result.Criterion)
	}
	if result.Criterion.Weight != 30 {
		t.Fatalf("expected weight preserved, got %d", result.Criterion.Weight)
	}
}

func TestConvertCriterionToGoalRejectsNonSimple(t *testing.T) {
	store := newFakeStore()
	seedGoal(store, "g1", "Host", goal.StatusOpen)
	seedGoal(store, "g2", "Target", goal.StatusOpen)
	seedCriterion(store, criterion.Criterion{
		ID: "c1", HostGoalID: "g1", Title: "Already bound", Weight: 30,
		Mode: criterion.ModeGoal, TargetGoalID: "g2",
	})
	svc := newTestService(t, store)

	_, err := svc.ConvertCriterionToGoal(context.Background(), "user-1", "g1", "c1", "New work item")
	if apperrors.CodeOf(err) != apperrors.CodeCriterionNotConvertible {
		t.Fatalf("expected not-convertible, got %v", err)
	}
}

func TestConvertCriterionToGoalRebindFailure(t *testing.T) {
	store := newFakeStore()
	seedGoal(store, "g1", "Host", goal.StatusOpen)
	seedCriterion(store, criterion.Criterion{
		ID: "c1", HostGoalID: "g1", Title: "Design the schema", Weight: 30,
		Mode: criterion.ModeSimple,
	})
	store.failUpdateCriterion = errors.New("disk full")
	svc := newTestService(t, store)

	_, err := svc.ConvertCriterionToGoal(context.Background(), "user-1", "g1", "c1", "")
	if apperrors.CodeOf(err) != apperrors.CodeConversionIncomplete {
		t.Fatalf("expected conversion-incomplete, got %v", err)
	}

	createdID := apperrors.MetadataOf(err)["CreatedGoalID"]
	if createdID == "" {
		t.Fatal("expected created goal id in metadata")
	}
	if _, ok := store.goals[createdID]; !ok {
		t.Fatalf("expected created goal %s to remain", createdID)
	}
	if store.crits["c1"].Mode != criterion.ModeSimple {
		t.Fatal("expected criterion left unbound after failed rebind")
	}
}
