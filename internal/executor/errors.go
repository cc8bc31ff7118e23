package executor

import (
	"errors"
	"fmt"
)

// Stage names used in errors and run logs.
const (
	StageFind      = "find"
	StageRepo      = "repository"
	StageClone     = "clone"
	StageContext   = "context"
	StageClassify  = "classify"
	StagePlan      = "plan"
	StageImplement = "implement"
	StageCritique  = "critique"
	StageWrite     = "write"
	StageValidate  = "validate"
	StageCommit    = "commit"
	StagePush      = "push"
	StagePR        = "pull_request"
	StageRecord    = "record"
)

// StageError wraps a failure with the pipeline stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// SkipError ends a run early without it being a failure: the issue is not
// a good fit (infeasible, empty plan, critic rejection, no diff).
type SkipError struct {
	Stage  string
	Reason string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skipped at %s: %s", e.Stage, e.Reason)
}

// IsSkip reports whether err ended the run as a skip.
func IsSkip(err error) bool {
	if err == nil {
		return false
	}
	var target *SkipError
	return errors.As(err, &target)
}

// StageOf returns the stage an error was raised in, or "".
func StageOf(err error) string {
	var skip *SkipError
	if errors.As(err, &skip) {
		return skip.Stage
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
