package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrScoringDegraded marks a risk dimension that fell back to its neutral value.
	ErrScoringDegraded = errors.New("scoring degraded")
	// ErrExecutionFailed marks a filesystem or remote store call that did not complete.
	ErrExecutionFailed = errors.New("execution failed")
	// ErrRollbackImpossible marks an undo that cannot proceed (no snapshot, already undone).
	ErrRollbackImpossible = errors.New("rollback impossible")
	// ErrPatternConflict marks feedback that tried to push a pattern count below zero.
	ErrPatternConflict = errors.New("pattern conflict")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExecutionFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Reason renders err for user-facing result rows. The marker prefix is kept so
// summaries still show the failure class.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
