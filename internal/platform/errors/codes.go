// Package errors provides structured error handling for the goals engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Goal errors
	CodeGoalTitleEmpty              Code = "GOAL_TITLE_EMPTY"
	CodeGoalInvalidStatus           Code = "GOAL_INVALID_STATUS"
	CodeGoalInvalidStatusTransition Code = "GOAL_INVALID_STATUS_TRANSITION"

	// Criterion errors
	CodeCriterionTitleEmpty       Code = "CRITERION_TITLE_EMPTY"
	CodeCriterionTitleDuplicate   Code = "CRITERION_TITLE_DUPLICATE"
	CodeCriterionInvalidWeight    Code = "CRITERION_INVALID_WEIGHT"
	CodeCriterionWeightOverBudget Code = "CRITERION_WEIGHT_OVER_BUDGET"
	CodeCriterionInvalidMode      Code = "CRITERION_INVALID_MODE"
	CodeCriterionTargetRequired   Code = "CRITERION_TARGET_REQUIRED"
	CodeCriterionTaskKeyRequired  Code = "CRITERION_TASK_KEY_REQUIRED"
	CodeCriterionStateDerived     Code = "CRITERION_STATE_DERIVED"
	CodeCriterionNotConvertible   Code = "CRITERION_NOT_CONVERTIBLE"

	// Binding errors
	CodeBindingSelf      Code = "BINDING_SELF"
	CodeBindingDuplicate Code = "BINDING_DUPLICATE"
	CodeBindingCycle     Code = "BINDING_CYCLE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"

	// Collaborator errors
	CodeTaskLookupFailed     Code = "TASK_LOOKUP_FAILED"
	CodeTaskNotFound         Code = "TASK_NOT_FOUND"
	CodeConversionIncomplete Code = "CONVERSION_INCOMPLETE"
)

// Kind groups codes into the engine's error taxonomy. Validation errors are
// recoverable by the caller correcting input; consistency errors are retried
// once internally before surfacing; dependency errors carry enough context
// for the caller to decide on cleanup or retry.
type Kind int

const (
	// KindUnknown classifies unrecognized codes.
	KindUnknown Kind = iota
	// KindValidation marks locally recoverable input rejections.
	KindValidation
	// KindConsistency marks concurrent-write races detected at commit.
	KindConsistency
	// KindNotFound marks operations on missing records.
	KindNotFound
	// KindDependency marks collaborator failures.
	KindDependency
)

// Kind reports the taxonomy bucket for a code.
func (c Code) Kind() Kind {
	switch c {
	case CodeGoalTitleEmpty,
		CodeGoalInvalidStatus,
		CodeGoalInvalidStatusTransition,
		CodeCriterionTitleEmpty,
		CodeCriterionTitleDuplicate,
		CodeCriterionInvalidWeight,
		CodeCriterionWeightOverBudget,
		CodeCriterionInvalidMode,
		CodeCriterionTargetRequired,
		CodeCriterionTaskKeyRequired,
		CodeCriterionStateDerived,
		CodeCriterionNotConvertible,
		CodeBindingSelf,
		CodeBindingDuplicate,
		CodeBindingCycle:
		return KindValidation
	case CodeConflict:
		return KindConsistency
	case CodeNotFound, CodeTaskNotFound:
		return KindNotFound
	case CodeTaskLookupFailed, CodeConversionIncomplete:
		return KindDependency
	default:
		return KindUnknown
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeGoalTitleEmpty,
		CodeGoalInvalidStatus,
		CodeCriterionTitleEmpty,
		CodeCriterionInvalidWeight,
		CodeCriterionInvalidMode,
		CodeCriterionTargetRequired,
		CodeCriterionTaskKeyRequired,
		CodeBindingSelf:
		return codes.InvalidArgument

	// FailedPrecondition - current state disallows the operation
	case CodeGoalInvalidStatusTransition,
		CodeCriterionTitleDuplicate,
		CodeCriterionWeightOverBudget,
		CodeCriterionStateDerived,
		CodeCriterionNotConvertible,
		CodeBindingDuplicate,
		CodeBindingCycle,
		CodeConversionIncomplete:
		return codes.FailedPrecondition

	case CodeNotFound, CodeTaskNotFound:
		return codes.NotFound

	case CodeConflict:
		return codes.Aborted

	case CodeTaskLookupFailed:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
