package criterion

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/attain.works/internal/platform/errors"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNew(t *testing.T) {
	createdAt := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	c, err := New(CreateInput{
		HostGoalID: " goal-1 ",
		Title:      "  Write launch checklist ",
		Weight:     30,
		Mode:       ModeSimple,
	}, fixedClock(createdAt), func() (string, error) { return "crit-1", nil })
	if err != nil {
		t.Fatalf("new criterion: %v", err)
	}
	if c.ID != "crit-1" || c.HostGoalID != "goal-1" {
		t.Fatalf("unexpected ids: %q %q", c.ID, c.HostGoalID)
	}
	if c.Title != "Write launch checklist" {
		t.Fatalf("expected trimmed title, got %q", c.Title)
	}
	if c.Done {
		t.Fatal("new criterion must start not done")
	}
	if !c.CreatedAt.Equal(createdAt) || !c.UpdatedAt.Equal(createdAt) {
		t.Fatalf("expected timestamps %v, got %v / %v", createdAt, c.CreatedAt, c.UpdatedAt)
	}
}

func TestNormalizeCreateInput(t *testing.T) {
	tests := []struct {
		name     string
		input    CreateInput
		wantCode apperrors.Code
	}{
		{
			name:     "empty title",
			input:    CreateInput{Title: "   ", Mode: ModeSimple},
			wantCode: apperrors.CodeCriterionTitleEmpty,
		},
		{
			name:     "negative weight",
			input:    CreateInput{Title: "t", Weight: -1, Mode: ModeSimple},
			wantCode: apperrors.CodeCriterionInvalidWeight,
		},
		{
			name:     "weight over maximum",
			input:    CreateInput{Title: "t", Weight: 101, Mode: ModeSimple},
			wantCode: apperrors.CodeCriterionInvalidWeight,
		},
		{
			name:     "missing mode",
			input:    CreateInput{Title: "t", Weight: 10},
			wantCode: apperrors.CodeCriterionInvalidMode,
		},
		{
			name:     "goal mode without target",
			input:    CreateInput{Title: "t", Weight: 10, Mode: ModeGoal},
			wantCode: apperrors.CodeCriterionTargetRequired,
		},
		{
			name:     "external task without key",
			input:    CreateInput{Title: "t", Weight: 10, Mode: ModeExternalTask},
			wantCode: apperrors.CodeCriterionTaskKeyRequired,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeCreateInput(tc.input)
			if apperrors.CodeOf(err) != tc.wantCode {
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
		})
	}
}

func TestNormalizeCreateInputClearsForeignFields(t *testing.T) {
	normalized, err := NormalizeCreateInput(CreateInput{
		Title:   "t",
		Weight:  10,
		Mode:    ModeSimple,
		TaskKey: "PROJ-1",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if normalized.TaskKey != "" || normalized.TargetGoalID != "" {
		t.Fatalf("expected mode-foreign fields cleared, got %+v", normalized)
	}
}

func TestNormalizeCreateInputZeroWeight(t *testing.T) {
	normalized, err := NormalizeCreateInput(CreateInput{Title: "t", Mode: ModeSimple})
	if err != nil {
		t.Fatalf("expected zero weight to be accepted: %v", err)
	}
	if normalized.Weight != 0 {
		t.Fatalf("expected weight 0, got %d", normalized.Weight)
	}
}

func TestApplyUpdate(t *testing.T) {
	base := Criterion{
		ID:         "crit-1",
		HostGoalID: "goal-1",
		Title:      "Old title",
		Weight:     10,
		Mode:       ModeSimple,
		CreatedAt:  time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
	}
	updatedAt := base.UpdatedAt.Add(time.Hour)

	title := "  New title "
	weight := 25
	updated, err := ApplyUpdate(base, UpdateInput{Title: &title, Weight: &weight}, fixedClock(updatedAt))
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if updated.Title != "New title" || updated.Weight != 25 {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if !updated.UpdatedAt.Equal(updatedAt) {
		t.Fatalf("expected updated_at %v, got %v", updatedAt, updated.UpdatedAt)
	}
	if !updated.CreatedAt.Equal(base.CreatedAt) {
		t.Fatal("created_at must not change on update")
	}
	if base.Title != "Old title" {
		t.Fatal("update must not mutate the input criterion")
	}
}

func TestApplyUpdateModeSwitchRequiresTarget(t *testing.T) {
	base := Criterion{ID: "crit-1", HostGoalID: "goal-1", Title: "t", Weight: 10, Mode: ModeSimple}
	mode := ModeGoal
	_, err := ApplyUpdate(base, UpdateInput{Mode: &mode}, nil)
	if !errors.Is(err, ErrTargetRequired) {
		t.Fatalf("expected ErrTargetRequired, got %v", err)
	}
}

func TestModeLabelsRoundTrip(t *testing.T) {
	for _, mode := range []Mode{ModeSimple, ModeGoal, ModeExternalTask} {
		parsed, err := ModeFromLabel(ModeLabel(mode))
		if err != nil {
			t.Fatalf("parse %s: %v", ModeLabel(mode), err)
		}
		if parsed != mode {
			t.Fatalf("round trip mismatch: %v != %v", parsed, mode)
		}
	}
	if _, err := ModeFromLabel("criterion_mode_goal"); err != nil {
		t.Fatalf("expected prefixed lowercase label to parse: %v", err)
	}
	if _, err := ModeFromLabel("bogus"); err == nil {
		t.Fatal("expected unknown label to fail")
	}
}
