package checkout

// Status is a checkout lifecycle state. Transitions only move forward:
//
//	started -> interaction_pending -> continuation_consumed -> finalized
type Status string

const (
	StatusStarted              Status = "started"
	StatusInteractionPending   Status = "interaction_pending"
	StatusContinuationConsumed Status = "continuation_consumed"
	StatusFinalized            Status = "finalized"
)

var next = map[Status]Status{
	StatusStarted:              StatusInteractionPending,
	StatusInteractionPending:   StatusContinuationConsumed,
	StatusContinuationConsumed: StatusFinalized,
}

// CanTransitionTo reports whether to directly follows s.
func (s Status) CanTransitionTo(to Status) bool {
	n, ok := next[s]
	return ok && n == to
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	_, ok := next[s]
	return !ok
}
