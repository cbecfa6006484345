package domain

const (
	NotificationKindExpense        = "expense_logged"
	NotificationKindSettlement     = "settlement_recorded"
	NotificationKindInvite         = "invite_received"
	NotificationKindInviteAccepted = "invite_accepted"
)

const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRejected = "rejected"
)

const (
	ActivityStatusPosted   = "posted"
	ActivityStatusCredited = "credited"
	ActivityStatusDue      = "due"
)

const OTPPurposeSignup = "signup"

// Realtime push topics, matching what the web client subscribes to.
const (
	TopicNotifications = "notifications"
	TopicInvites       = "invites"
	TopicFriends       = "friends"
	TopicActivity      = "activity"
)
