package requisition

// Status is the lifecycle state of a requisition.
type Status string

const (
	StatusInitiated  Status = "INITIATED"
	StatusSubmitted  Status = "SUBMITTED"
	StatusAuthorized Status = "AUTHORIZED"
	StatusInApproval Status = "IN_APPROVAL"
	StatusApproved   Status = "APPROVED"
	StatusReleased   Status = "RELEASED"
	StatusRejected   Status = "REJECTED"
	StatusSkipped    Status = "SKIPPED"
)

var transitions = map[Status][]Status{
	StatusInitiated:  {StatusSubmitted, StatusSkipped},
	StatusSubmitted:  {StatusAuthorized, StatusRejected},
	StatusAuthorized: {StatusInApproval, StatusApproved, StatusRejected},
	StatusInApproval: {StatusApproved, StatusRejected},
	StatusApproved:   {StatusReleased},
	StatusRejected:   {StatusInitiated},
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusInitiated, StatusSubmitted, StatusAuthorized, StatusInApproval,
		StatusApproved, StatusReleased, StatusRejected, StatusSkipped:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsBatchApprovable reports whether a requisition in this status may be
// loaded into the batch approval grid.
func (s Status) IsBatchApprovable() bool {
	return s == StatusAuthorized || s == StatusInApproval
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}
