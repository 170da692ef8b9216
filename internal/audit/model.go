package audit

import "time"

// Outcome values stored on a record.
const (
	OutcomeIssued = "issued"
	OutcomeFailed = "failed"
)

// Record is one auth attempt. Session credentials are never part of it.
type Record struct {
	ID          string
	Identity    string
	Intent      string
	DeviceID    string
	ChallengeID *string
	RequestID   string
	Outcome     string
	ErrorKind   string
	CreatedAt   time.Time
}
