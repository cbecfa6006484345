package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"balancestudio/internal/domain"
	"balancestudio/internal/ledger"
	"balancestudio/internal/models"
	"balancestudio/internal/repository"
	"balancestudio/internal/ws"
)

// NotificationService creates in-app notifications and fans them out over
// websocket and FCM. Delivery is best effort; a failed push never fails the
// operation that triggered it.
type NotificationService struct {
	notifications *repository.NotificationRepository
	users         *repository.UserRepository
	fcm           *FCMService
	events        *ws.Events
	log           *slog.Logger
}

func NewNotificationService(
	notifications *repository.NotificationRepository,
	users *repository.UserRepository,
	fcm *FCMService,
	events *ws.Events,
	log *slog.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		users:         users,
		fcm:           fcm,
		events:        events,
		log:           log,
	}
}

var _ ledger.Notifier = (*NotificationService)(nil)

// Notify stores a notification for target and pushes it out. Self-directed
// notifications are dropped.
func (s *NotificationService) Notify(targetID, actorID uint, kind, title, body string, data map[string]interface{}) {
	if targetID == 0 || targetID == actorID {
		return
	}
	payload := ""
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = string(b)
		}
	}
	n := &models.Notification{
		UserID:  targetID,
		ActorID: actorID,
		Kind:    kind,
		Title:   title,
		Body:    body,
		Data:    payload,
	}
	if err := s.notifications.Create(n); err != nil {
		s.log.Warn("notification create failed", "target", targetID, "kind", kind, "error", err)
		return
	}

	unread, err := s.notifications.UnreadCount(targetID)
	if err != nil {
		unread = 0
	}
	s.events.NotifyNotificationNew(targetID, unread)

	target, err := s.users.FindByID(targetID)
	if err != nil {
		return
	}
	_ = s.fcm.Send(context.Background(), target.FCMToken, kind, title, body, data)
}

// SettlementRecorded notifies the counterparty of a settlement.
func (s *NotificationService) SettlementRecorded(target, actor *models.User, groupLabel string, amount float64) {
	if target == nil || actor == nil {
		return
	}
	title := "Settlement recorded"
	body := fmt.Sprintf("%s settled %.2f for %q", actor.DisplayName(), amount, groupLabel)
	s.Notify(target.ID, actor.ID, domain.NotificationKindSettlement, title, body, map[string]interface{}{
		"group_label": groupLabel,
		"amount":      amount,
	})
	s.events.NotifyFriendsRefresh(target.ID)
	s.events.NotifyActivityRefresh(target.ID)
}

// ExpenseLogged notifies a participant that they owe a share.
func (s *NotificationService) ExpenseLogged(targetID uint, actor *models.User, expenseID uint, groupLabel string, share float64) {
	title := "New shared expense"
	body := fmt.Sprintf("%s logged %q. Your share is %.2f", actor.DisplayName(), groupLabel, share)
	s.Notify(targetID, actor.ID, domain.NotificationKindExpense, title, body, map[string]interface{}{
		"expense_id":  expenseID,
		"group_label": groupLabel,
		"share":       share,
	})
	s.events.NotifyFriendsRefresh(targetID)
	s.events.NotifyActivityRefresh(targetID)
}

// InviteReceived notifies an existing user about a new friend invite.
func (s *NotificationService) InviteReceived(targetID uint, inviter *models.User, inviteID uint) {
	title := "Friend invite"
	body := fmt.Sprintf("%s wants to split expenses with you", inviter.DisplayName())
	s.Notify(targetID, inviter.ID, domain.NotificationKindInvite, title, body, map[string]interface{}{
		"invite_id": inviteID,
	})
	s.events.NotifyInviteRefresh(targetID)
}

// InviteAccepted notifies the inviter that their invite was accepted.
func (s *NotificationService) InviteAccepted(targetID uint, invitee *models.User) {
	title := "Invite accepted"
	body := fmt.Sprintf("%s accepted your invite. You are now friends.", invitee.DisplayName())
	s.Notify(targetID, invitee.ID, domain.NotificationKindInviteAccepted, title, body, nil)
	s.events.NotifyInviteRefresh(targetID)
	s.events.NotifyFriendsRefresh(targetID)
}
