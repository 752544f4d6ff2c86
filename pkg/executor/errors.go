package executor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/dumbo/pkg/version"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedStatement is matched by every *UnsupportedStatementError.
	ErrUnsupportedStatement = errors.New("unsupported statement")
)

const (
	// ViolationMissing marks a successful history entry with no resolved
	// migration.
	ViolationMissing ViolationKind = "missing"

	// ViolationChecksumMismatch marks an applied migration whose script changed
	// after it was applied.
	ViolationChecksumMismatch ViolationKind = "checksum mismatch"

	// ViolationIgnored marks a pending migration older than the latest applied
	// one when out of order migrations are disabled.
	ViolationIgnored ViolationKind = "ignored"
)

type (
	// ViolationKind classifies a validation violation.
	ViolationKind string

	// Violation describes one inconsistency between the history table and the
	// resolved migrations.
	Violation struct {
		Kind    ViolationKind
		Version version.Version
		Script  string

		// Checksums are only set for ViolationChecksumMismatch. Applied is nil
		// when the history entry has no checksum.
		AppliedChecksum  *int32
		ResolvedChecksum int32
	}

	// ValidationError reports every violation found by a validation pass.
	ValidationError struct {
		Violations []Violation
	}

	// ExecutionError is returned when a statement of a migration fails. The
	// failure has been recorded in the history table by the time it is
	// returned.
	ExecutionError struct {
		Script    string
		Version   version.Version
		Line      int
		Statement string
		Err       error
	}

	// UnsupportedStatementError is returned for migrations containing
	// statements that cannot be run through a session, such as COPY FROM STDIN.
	// None of the migration's statements are executed.
	UnsupportedStatementError struct {
		Script    string
		Version   version.Version
		Line      int
		Statement string
	}
)

func (v Violation) String() string {
	switch v.Kind {
	case ViolationMissing:
		return fmt.Sprintf("migration %s (%s) was applied but is not resolved locally", v.Version, v.Script)
	case ViolationChecksumMismatch:
		applied := "null"
		if v.AppliedChecksum != nil {
			applied = fmt.Sprint(*v.AppliedChecksum)
		}
		return fmt.Sprintf(
			"checksum mismatch for migration %s (%s): applied %s, resolved %d",
			v.Version, v.Script, applied, v.ResolvedChecksum,
		)
	case ViolationIgnored:
		return fmt.Sprintf("migration %s (%s) is older than the latest applied migration", v.Version, v.Script)
	default:
		return fmt.Sprintf("%s: %s (%s)", v.Kind, v.Version, v.Script)
	}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}

	return fmt.Sprintf("%s with %d violation(s): %s", ErrValidation, len(e.Violations), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func (e *ExecutionError) Error() string {
	// commit failures have no statement
	if e.Line == 0 {
		return fmt.Sprintf("migration %s failed: %v", e.Script, e.Err)
	}

	return fmt.Sprintf("migration %s failed at line %d: %v", e.Script, e.Line, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *UnsupportedStatementError) Error() string {
	return fmt.Sprintf("%s in %s at line %d: %s", ErrUnsupportedStatement, e.Script, e.Line, firstLine(e.Statement))
}

func (e *UnsupportedStatementError) Unwrap() error {
	return ErrUnsupportedStatement
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
