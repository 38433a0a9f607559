package criterion

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/attain.works/internal/platform/errors"
)

// MaxAncestorDepth bounds the ancestor walk during cycle detection.
// Chains deeper than this are treated as cyclic rather than traversed.
const MaxAncestorDepth = 16

var (
	// ErrBindingSelf indicates a goal bound as a criterion of itself.
	ErrBindingSelf = apperrors.New(apperrors.CodeBindingSelf, "goal cannot be a criterion of itself")
	// ErrBindingDuplicate indicates a target already bound on the host.
	ErrBindingDuplicate = apperrors.New(apperrors.CodeBindingDuplicate, "target goal is already a criterion of this goal")
	// ErrBindingCycle indicates an edge that would close a goal cycle.
	ErrBindingCycle = apperrors.New(apperrors.CodeBindingCycle, "binding would create a cycle between goals")
)

// ValidateBinding checks a candidate host -> target criterion edge.
// Checks run in order: self-binding, duplicate binding, cycle. ownCriterionID
// exempts the criterion being edited so that re-saving an existing binding
// stays idempotent. hostAncestors is the host's stored ancestor chain; a
// target found there already reaches the host, so binding it would close a
// cycle.
func ValidateBinding(hostGoalID, targetGoalID, ownCriterionID string, hostCriteria []Criterion, hostAncestors []string) error {
	if targetGoalID == hostGoalID {
		return apperrors.WithMetadata(
			apperrors.CodeBindingSelf,
			"goal cannot be a criterion of itself",
			map[string]string{"GoalID": hostGoalID},
		)
	}
	for _, c := range hostCriteria {
		if c.Mode != ModeGoal {
			continue
		}
		if ownCriterionID != "" && c.ID == ownCriterionID {
			continue
		}
		if c.TargetGoalID == targetGoalID {
			return apperrors.WithMetadata(
				apperrors.CodeBindingDuplicate,
				fmt.Sprintf("goal %s is already a criterion of goal %s", targetGoalID, hostGoalID),
				map[string]string{"GoalID": targetGoalID, "CriterionID": c.ID},
			)
		}
	}
	for _, ancestor := range hostAncestors {
		if ancestor == targetGoalID {
			return cycleError(hostGoalID, targetGoalID)
		}
	}
	return nil
}

// ParentResolver returns the goal ids whose criteria target the given goal,
// i.e. the goal's parents in the binding graph.
type ParentResolver func(ctx context.Context, goalID string) ([]string, error)

// DetectCycle walks the binding graph upward from the host and reports
// whether the candidate target already reaches it. This is the
// authoritative check run inside the commit transaction; the stored
// ancestor chain used by ValidateBinding is advisory and can lag under
// concurrent writes.
func DetectCycle(ctx context.Context, hostGoalID, targetGoalID string, resolve ParentResolver) error {
	visited := map[string]struct{}{hostGoalID: {}}
	frontier := []string{hostGoalID}

	for depth := 0; depth < MaxAncestorDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, goalID := range frontier {
			parents, err := resolve(ctx, goalID)
			if err != nil {
				return fmt.Errorf("resolve parents of %s: %w", goalID, err)
			}
			for _, parent := range parents {
				if parent == targetGoalID {
					return cycleError(hostGoalID, targetGoalID)
				}
				if _, seen := visited[parent]; seen {
					continue
				}
				visited[parent] = struct{}{}
				next = append(next, parent)
			}
		}
		frontier = next
	}

	if len(frontier) > 0 {
		// Depth limit hit with unexplored parents: reject rather than
		// risk committing an undetected cycle.
		return cycleError(hostGoalID, targetGoalID)
	}
	return nil
}

func cycleError(hostGoalID, targetGoalID string) error {
	return apperrors.WithMetadata(
		apperrors.CodeBindingCycle,
		fmt.Sprintf("binding goal %s under goal %s would create a cycle", targetGoalID, hostGoalID),
		map[string]string{"GoalID": targetGoalID, "HostGoalID": hostGoalID},
	)
}
