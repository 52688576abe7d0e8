package review

import "fmt"

// AlreadyClaimedError means another reviewer holds the claim. The caller
// should refresh its queue view.
type AlreadyClaimedError struct {
	ItemID    string
	ClaimedBy string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("queue item %s already claimed by %s", e.ItemID, e.ClaimedBy)
}

// NotClaimOwnerError means the caller tried to complete or skip an item it
// does not hold.
type NotClaimOwnerError struct {
	ItemID string
	Owner  string
}

func (e *NotClaimOwnerError) Error() string {
	return fmt.Sprintf("queue item %s is claimed by %s, not the caller", e.ItemID, e.Owner)
}

// InvalidStateTransitionError is a usage error: the requested operation is
// not legal from the item's current state. Always surfaced, never swallowed.
type InvalidStateTransitionError struct {
	ItemID string
	From   string
	Op     string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("queue item %s: cannot %s from state %s", e.ItemID, e.Op, e.From)
}
