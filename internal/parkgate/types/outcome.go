package types

// Outcome is the result of driving one plate event through the processor.
type Outcome string

const (
	OutcomeNotFound    Outcome = "NOT_FOUND"
	OutcomeAlreadyPaid Outcome = "ALREADY_PAID"
	OutcomeClockError  Outcome = "CLOCK_ERROR"
	OutcomeSettled     Outcome = "SETTLED"
	OutcomeDeclined    Outcome = "DECLINED"
	OutcomeUnconfirmed Outcome = "UNCONFIRMED"

	// OutcomeAbandoned means a record-store failure ended the event before
	// any status frame was sent.
	OutcomeAbandoned Outcome = "ABANDONED"
)
