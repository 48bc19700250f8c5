package vmsg

import "fmt"

// DiagnosticKind classifies a non-fatal anomaly seen while parsing.
type DiagnosticKind string

const (
	DiagUnexpectedLine   DiagnosticKind = "unexpected_line"
	DiagUnknownSection   DiagnosticKind = "unknown_section"
	DiagMisplacedSection DiagnosticKind = "misplaced_section"
	DiagMismatchedEnd    DiagnosticKind = "mismatched_end"
	DiagUnclosedSection  DiagnosticKind = "unclosed_section"
	DiagInvalidTimestamp DiagnosticKind = "invalid_timestamp"
	DiagIgnoredTimestamp DiagnosticKind = "ignored_timestamp"
	DiagInvalidDirection DiagnosticKind = "invalid_direction"
	DiagVersion          DiagnosticKind = "version"
	DiagMissingContainer DiagnosticKind = "missing_container"
)

// Diagnostic records one skipped or ignored construct.
type Diagnostic struct {
	Line    int
	Section Section
	Kind    DiagnosticKind
	Text    string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d (%s): %s: %s", d.Line, d.Section, d.Kind, d.Text)
}

// LogAttrs returns the diagnostic as slog key/value pairs.
func (d Diagnostic) LogAttrs() []any {
	return []any{
		"line", d.Line,
		"section", d.Section.String(),
		"kind", string(d.Kind),
		"text", d.Text,
	}
}
