package ledger

// Direction of a settlement, always from the initiator's point of view.
type Direction string

const (
	DirectionOwesYou Direction = "owes_you"
	DirectionYouOwe  Direction = "you_owe"
)

// OwnerAmount is a signed amount relative to a friendship record's owner:
// positive means the counterparty owes the owner.
type OwnerAmount float64

// InitiatorAmount is a signed amount relative to a settlement's initiator.
// It must go through ForOwner before it can be applied to a Friendship
// record; the two sign conventions are not interchangeable.
type InitiatorAmount float64

// initiatorAmount reads a stored settlement as an initiator-relative value.
func initiatorAmount(direction Direction, amount float64) InitiatorAmount {
	if direction == DirectionOwesYou {
		return InitiatorAmount(Round(amount))
	}
	return InitiatorAmount(-Round(amount))
}

// ForOwner converts to the owner-relative sign for one side of the pair.
// A settlement reduces the initiator's claim, so the sign flips when the
// record owner is the initiator.
func (a InitiatorAmount) ForOwner(ownerIsInitiator bool) OwnerAmount {
	if ownerIsInitiator {
		return OwnerAmount(-a)
	}
	return OwnerAmount(a)
}
