// Package history defines the append-only change log kept per goal.
//
// Every criterion mutation appends exactly one entry inside the same
// transaction that commits the change. Entries are never edited or
// deleted; sequence numbers are assigned per host goal at append time.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/attain.works/internal/services/goals/domain/criterion"
)

// Subject identifies what kind of record an entry describes.
type Subject string

// SubjectCriteria marks entries recording criterion changes.
const SubjectCriteria Subject = "criteria"

// Action describes what happened to the subject.
type Action string

const (
	ActionAdd        Action = "add"
	ActionEdit       Action = "edit"
	ActionRemove     Action = "remove"
	ActionComplete   Action = "complete"
	ActionUncomplete Action = "uncomplete"
)

// Source describes what initiated the change.
type Source string

const (
	// SourceManual marks changes made directly by a caller.
	SourceManual Source = "manual"
	// SourcePropagated marks changes applied by completion propagation.
	SourcePropagated Source = "propagated"
)

// ActorType distinguishes user-driven changes from engine-driven ones.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// Entry is one record in a goal's change log.
type Entry struct {
	HostGoalID string
	// Seq orders entries within a host goal. Assigned by the store at
	// append time; zero until persisted.
	Seq         int64
	Subject     Subject
	Action      Action
	Source      Source
	ActorType   ActorType
	ActorID     string
	CriterionID string
	Timestamp   time.Time
	// Prev and Next hold JSON snapshots of the criterion before and
	// after the change. Prev is empty for adds, Next for removes.
	Prev string
	Next string
}

// criterionSnapshot is the stable JSON shape stored in Prev/Next.
type criterionSnapshot struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Weight       int    `json:"weight"`
	Done         bool   `json:"done"`
	Mode         string `json:"mode"`
	TargetGoalID string `json:"target_goal_id,omitempty"`
	TaskKey      string `json:"task_key,omitempty"`
}

// SnapshotCriterion serializes a criterion into the snapshot format used
// by Prev/Next fields.
func SnapshotCriterion(c criterion.Criterion) (string, error) {
	raw, err := json.Marshal(criterionSnapshot{
		ID:           c.ID,
		Title:        c.Title,
		Weight:       c.Weight,
		Done:         c.Done,
		Mode:         criterion.ModeLabel(c.Mode),
		TargetGoalID: c.TargetGoalID,
		TaskKey:      c.TaskKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal criterion snapshot: %w", err)
	}
	return string(raw), nil
}

// NewCriterionEntry builds an entry describing a criterion change. prev and
// next may be zero-valued criteria for adds and removes respectively.
func NewCriterionEntry(action Action, source Source, actorType ActorType, actorID string, prev, next criterion.Criterion, now func() time.Time) (Entry, error) {
	if now == nil {
		now = time.Now
	}

	entry := Entry{
		Subject:   SubjectCriteria,
		Action:    action,
		Source:    source,
		ActorType: actorType,
		ActorID:   actorID,
		Timestamp: now().UTC(),
	}

	switch action {
	case ActionAdd:
		entry.HostGoalID = next.HostGoalID
		entry.CriterionID = next.ID
	default:
		entry.HostGoalID = prev.HostGoalID
		entry.CriterionID = prev.ID
	}

	if action != ActionAdd {
		snapshot, err := SnapshotCriterion(prev)
		if err != nil {
			return Entry{}, err
		}
		entry.Prev = snapshot
	}
	if action != ActionRemove {
		snapshot, err := SnapshotCriterion(next)
		if err != nil {
			return Entry{}, err
		}
		entry.Next = snapshot
	}
	return entry, nil
}
