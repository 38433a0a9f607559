package criterion

import (
	"fmt"

	apperrors "github.com/louisbranch/attain.works/internal/platform/errors"
)

// CommittedWeight sums the weights currently committed against a host's
// budget. Criteria with weight zero have no weight chosen yet and do not
// count. Pass excludeCriterionID to leave one criterion out, e.g. the one
// being edited.
func CommittedWeight(criteria []Criterion, excludeCriterionID string) int {
	total := 0
	for _, c := range criteria {
		if excludeCriterionID != "" && c.ID == excludeCriterionID {
			continue
		}
		total += c.Weight
	}
	return total
}

// RemainingWeight reports how much of the host's budget is still free.
func RemainingWeight(criteria []Criterion, excludeCriterionID string) int {
	remaining := MaxBudget - CommittedWeight(criteria, excludeCriterionID)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ReserveWeight checks a candidate weight against the host's remaining
// budget. Weight zero always passes since unweighted criteria are not
// budgeted.
func ReserveWeight(criteria []Criterion, excludeCriterionID string, weight int) error {
	if err := validateWeightValue(weight); err != nil {
		return err
	}
	if weight == 0 {
		return nil
	}
	remaining := RemainingWeight(criteria, excludeCriterionID)
	if weight > remaining {
		return apperrors.WithMetadata(
			apperrors.CodeCriterionWeightOverBudget,
			fmt.Sprintf("criterion weight %d exceeds remaining budget %d", weight, remaining),
			map[string]string{
				"Weight":    fmt.Sprintf("%d", weight),
				"Remaining": fmt.Sprintf("%d", remaining),
			},
		)
	}
	return nil
}

// AchievedWeight sums the weights of done criteria, giving the host's
// completion percentage. Unweighted done criteria contribute nothing.
func AchievedWeight(criteria []Criterion) int {
	total := 0
	for _, c := range criteria {
		if c.Done {
			total += c.Weight
		}
	}
	return total
}
