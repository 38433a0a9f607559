package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeBindingCycle, "binding would create a cycle")
	target := New(CodeBindingCycle, "different message")
	if !errors.Is(err, target) {
		t.Fatal("expected errors with the same code to match")
	}
	other := New(CodeBindingSelf, "binding would create a cycle")
	if errors.Is(err, other) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestCodeOfUnwrapsChains(t *testing.T) {
	base := WithMetadata(CodeCriterionWeightOverBudget, "weight over budget", map[string]string{"Remaining": "40"})
	wrapped := fmt.Errorf("add criterion: %w", base)

	if got := CodeOf(wrapped); got != CodeCriterionWeightOverBudget {
		t.Fatalf("expected code %s, got %s", CodeCriterionWeightOverBudget, got)
	}
	meta := MetadataOf(wrapped)
	if meta["Remaining"] != "40" {
		t.Fatalf("expected Remaining metadata, got %v", meta)
	}
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("expected unknown code for plain error, got %s", got)
	}
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		code Code
		kind Kind
	}{
		{CodeCriterionWeightOverBudget, KindValidation},
		{CodeCriterionTitleDuplicate, KindValidation},
		{CodeBindingSelf, KindValidation},
		{CodeBindingDuplicate, KindValidation},
		{CodeBindingCycle, KindValidation},
		{CodeConflict, KindConsistency},
		{CodeNotFound, KindNotFound},
		{CodeTaskLookupFailed, KindDependency},
		{CodeConversionIncomplete, KindDependency},
		{Code("BOGUS"), KindUnknown},
	}
	for _, tc := range tests {
		if got := tc.code.Kind(); got != tc.kind {
			t.Fatalf("code %s: expected kind %d, got %d", tc.code, tc.kind, got)
		}
	}
}

func TestToGRPCStatusCarriesReason(t *testing.T) {
	err := WithMetadata(CodeBindingDuplicate, "goal is already bound", map[string]string{"TargetGoalID": "g2"})
	st, ok := status.FromError(err.ToGRPCStatus())
	if !ok {
		t.Fatal("expected a grpc status")
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", st.Code())
	}
	if st.Message() != "goal is already bound" {
		t.Fatalf("unexpected message %q", st.Message())
	}
	if len(st.Details()) == 0 {
		t.Fatal("expected error details")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		grpc codes.Code
	}{
		{CodeCriterionTitleEmpty, codes.InvalidArgument},
		{CodeBindingSelf, codes.InvalidArgument},
		{CodeCriterionWeightOverBudget, codes.FailedPrecondition},
		{CodeBindingCycle, codes.FailedPrecondition},
		{CodeNotFound, codes.NotFound},
		{CodeConflict, codes.Aborted},
		{CodeTaskLookupFailed, codes.Unavailable},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.grpc {
			t.Fatalf("code %s: expected %v, got %v", tc.code, tc.grpc, got)
		}
	}
}
