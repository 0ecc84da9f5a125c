package transcode

// Status describes where a job is in its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Outcome is the single terminal result of a job. Reason is populated only
// for failures and carries the encoder's diagnostic text verbatim.
type Outcome struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func succeeded() Outcome { return Outcome{Status: StatusSucceeded} }

func failed(reason string) Outcome { return Outcome{Status: StatusFailed, Reason: reason} }

func cancelled() Outcome { return Outcome{Status: StatusCancelled} }
