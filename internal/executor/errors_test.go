package executor

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsSkip(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if IsSkip(nil) {
			t.Fatal("nil should not be a skip")
		}
	})

	t.Run("generic error", func(t *testing.T) {
		if IsSkip(errors.New("boom")) {
			t.Fatal("generic errors must not be treated as skips")
		}
	})

	t.Run("direct skip", func(t *testing.T) {
		if !IsSkip(&SkipError{Stage: StagePlan, Reason: "empty plan"}) {
			t.Fatal("SkipError should be detected")
		}
	})

	t.Run("wrapped skip", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", &SkipError{Stage: StageClassify, Reason: "infeasible"})
		if !IsSkip(wrapped) {
			t.Fatal("wrapped SkipError should be detected")
		}
	})
}

func TestStageError(t *testing.T) {
	base := errors.New("connection refused")
	err := stageErr(StageClone, base)

	if err.Error() != "clone: connection refused" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("StageError should unwrap to the cause")
	}
	if StageOf(err) != StageClone {
		t.Errorf("StageOf() = %q", StageOf(err))
	}

	// Re-wrapping keeps the innermost stage.
	if StageOf(stageErr(StagePush, err)) != StageClone {
		t.Error("stageErr should not re-wrap a StageError")
	}
	if stageErr(StagePush, nil) != nil {
		t.Error("stageErr(nil) should be nil")
	}
	if StageOf(&SkipError{Stage: StagePlan}) != StagePlan {
		t.Error("StageOf should report skip stages")
	}
	if StageOf(base) != "" {
		t.Error("StageOf should be empty for plain errors")
	}
}
