package history

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/louisbranch/attain.works/internal/services/goals/domain/criterion"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewCriterionEntryAdd(t *testing.T) {
	at := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	next := criterion.Criterion{
		ID:         "crit-1",
		HostGoalID: "goal-1",
		Title:      "Draft proposal",
		Weight:     20,
		Mode:       criterion.ModeSimple,
	}

	entry, err := NewCriterionEntry(ActionAdd, SourceManual, ActorTypeUser, "user-1", criterion.Criterion{}, next, fixedClock(at))
	if err != nil {
		t.Fatalf("new entry: %v", err)
	}
	if entry.HostGoalID != "goal-1" || entry.CriterionID != "crit-1" {
		t.Fatalf("unexpected ids: %+v", entry)
	}
	if entry.Prev != "" {
		t.Fatalf("add entry must not have a prev snapshot, got %q", entry.Prev)
	}
	if entry.Next == "" {
		t.Fatal("add entry must have a next snapshot")
	}
	if entry.Seq != 0 {
		t.Fatalf("seq must be unassigned before persistence, got %d", entry.Seq)
	}
	if !entry.Timestamp.Equal(at) {
		t.Fatalf("expected timestamp %v, got %v", at, entry.Timestamp)
	}

	var snapshot map[string]any
	if err := json.Unmarshal([]byte(entry.Next), &snapshot); err != nil {
		t.Fatalf("next snapshot is not valid JSON: %v", err)
	}
	if snapshot["mode"] != "SIMPLE" {
		t.Fatalf("expected mode label in snapshot, got %v", snapshot["mode"])
	}
}

func TestNewCriterionEntryRemove(t *testing.T) {
	prev := criterion.Criterion{ID: "crit-1", HostGoalID: "goal-1", Title: "t", Weight: 10, Mode: criterion.ModeSimple}
	entry, err := NewCriterionEntry(ActionRemove, SourceManual, ActorTypeUser, "user-1", prev, criterion.Criterion{}, nil)
	if err != nil {
		t.Fatalf("new entry: %v", err)
	}
	if entry.Next != "" {
		t.Fatalf("remove entry must not have a next snapshot, got %q", entry.Next)
	}
	if entry.Prev == "" {
		t.Fatal("remove entry must have a prev snapshot")
	}
	if entry.HostGoalID != "goal-1" {
		t.Fatalf("expected host from prev, got %q", entry.HostGoalID)
	}
}

func TestNewCriterionEntryPropagatedComplete(t *testing.T) {
	prev := criterion.Criterion{ID: "crit-1", HostGoalID: "goal-1", Title: "t", Weight: 10, Mode: criterion.ModeGoal, TargetGoalID: "goal-2"}
	next := prev
	next.Done = true

	entry, err := NewCriterionEntry(ActionComplete, SourcePropagated, ActorTypeSystem, "", prev, next, nil)
	if err != nil {
		t.Fatalf("new entry: %v", err)
	}
	if entry.Source != SourcePropagated || entry.ActorType != ActorTypeSystem {
		t.Fatalf("unexpected attribution: %+v", entry)
	}
	if entry.Prev == "" || entry.Next == "" {
		t.Fatal("complete entry must carry both snapshots")
	}
}

func TestGroupEntries(t *testing.T) {
	entries := []Entry{
		{Seq: 1, Subject: SubjectCriteria, Source: SourceManual, ActorType: ActorTypeUser, ActorID: "u1", Action: ActionAdd},
		{Seq: 2, Subject: SubjectCriteria, Source: SourceManual, ActorType: ActorTypeUser, ActorID: "u1", Action: ActionEdit},
		{Seq: 3, Subject: SubjectCriteria, Source: SourcePropagated, ActorType: ActorTypeSystem, Action: ActionComplete},
		{Seq: 4, Subject: SubjectCriteria, Source: SourcePropagated, ActorType: ActorTypeSystem, Action: ActionComplete},
		{Seq: 5, Subject: SubjectCriteria, Source: SourceManual, ActorType: ActorTypeUser, ActorID: "u2", Action: ActionEdit},
	}

	groups := GroupEntries(entries)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if len(groups[0].Entries) != 2 || groups[0].ActorID != "u1" {
		t.Fatalf("unexpected first group: %+v", groups[0])
	}
	if len(groups[1].Entries) != 2 || groups[1].Source != SourcePropagated {
		t.Fatalf("unexpected second group: %+v", groups[1])
	}
	if len(groups[2].Entries) != 1 || groups[2].ActorID != "u2" {
		t.Fatalf("unexpected third group: %+v", groups[2])
	}
}

func TestGroupEntriesEmpty(t *testing.T) {
	if groups := GroupEntries(nil); groups != nil {
		t.Fatalf("expected nil groups for no entries, got %v", groups)
	}
}
