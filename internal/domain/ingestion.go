package domain

import "time"

// IntakeMessage is one accepted request body bound for a collection.
// It is consumed exactly once by the intake pipeline and then dropped.
type IntakeMessage struct {
	ID         string
	ReceivedAt time.Time
	Collection string
	Body       []byte
}

// MismatchPolicy decides what happens to a row whose value disagrees with
// the type already inferred for its column.
type MismatchPolicy string

const (
	// MismatchReject fails the whole batch.
	MismatchReject MismatchPolicy = "reject"
	// MismatchDropRow drops the offending row and keeps the rest.
	MismatchDropRow MismatchPolicy = "drop_row"
)

// Validate checks that the policy is a known value.
func (p MismatchPolicy) Validate() error {
	switch p {
	case MismatchReject, MismatchDropRow:
		return nil
	default:
		return ErrValidation("unknown mismatch policy %q (want %q or %q)", p, MismatchReject, MismatchDropRow)
	}
}

// IntakeOutcome is the terminal state of one intake task.
type IntakeOutcome string

// Intake task outcomes. Every task ends in exactly one of these.
const (
	OutcomeWritten           IntakeOutcome = "written"
	OutcomeMalformedPayload  IntakeOutcome = "malformed_payload"
	OutcomeMalformedRow      IntakeOutcome = "malformed_row"
	OutcomeEmptyPayload      IntakeOutcome = "empty_payload"
	OutcomeTypeMismatch      IntakeOutcome = "type_mismatch"
	OutcomeConnectionFailure IntakeOutcome = "connection_failure"
	OutcomeWriteFailure      IntakeOutcome = "write_failure"
	OutcomeTimeout           IntakeOutcome = "timeout"
	OutcomePanic             IntakeOutcome = "panic"
)
