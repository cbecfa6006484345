package ledger

import "errors"

// SettlementError is a user-facing precondition failure. It never indicates
// corrupted state and is always safe to surface verbatim to the caller.
type SettlementError struct {
	msg string
}

func (e *SettlementError) Error() string {
	return e.msg
}

var (
	ErrFriendshipNotFound  = &SettlementError{"friend relationship not found"}
	ErrNothingToSettle     = &SettlementError{"nothing left to settle for this group"}
	ErrAmountNotPositive   = &SettlementError{"settlement amount must be greater than zero"}
	ErrAmountExceedsOwed   = &SettlementError{"cannot settle more than the outstanding amount"}
	ErrNoOutstandingGroups = &SettlementError{"all shared groups are already settled"}
)

// IsSettlementError reports whether err is a settlement precondition failure.
func IsSettlementError(err error) bool {
	var se *SettlementError
	return errors.As(err, &se)
}
