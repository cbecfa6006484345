package service

import (
	"fmt"

	"balancestudio/internal/ledger"
	"balancestudio/internal/models"
	"balancestudio/pkg/mailer"
)

// MailService composes the transactional emails. It wraps the SMTP mailer
// and stays safe to call when email is not configured.
type MailService struct {
	mail        *mailer.Mailer
	frontendURL string
}

func NewMailService(mail *mailer.Mailer, frontendURL string) *MailService {
	return &MailService{mail: mail, frontendURL: frontendURL}
}

var _ ledger.Mailer = (*MailService)(nil)

// SendOTP emails a signup verification code.
func (s *MailService) SendOTP(email, code string) bool {
	body := fmt.Sprintf("Your verification code is %s.\n\nIt expires in 10 minutes. If you did not request it, ignore this email.", code)
	return s.mail.Send(email, "Your verification code", body)
}

// SendInvite emails a friend invite to someone without an account yet.
func (s *MailService) SendInvite(email string, inviter *models.User, note string) bool {
	body := fmt.Sprintf("%s invited you to split expenses on Balance Studio.\n", inviter.DisplayName())
	if note != "" {
		body += fmt.Sprintf("\nTheir note: %q\n", note)
	}
	body += fmt.Sprintf("\nSign up at %s to accept.", s.frontendURL)
	return s.mail.Send(email, fmt.Sprintf("%s wants to split expenses with you", inviter.DisplayName()), body)
}

// SendPasswordReset emails a reset link carrying the one-time token.
func (s *MailService) SendPasswordReset(email, token string) bool {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)
	body := fmt.Sprintf("Someone requested a password reset for this address.\n\nReset it here: %s\n\nThe link expires in 1 hour. If this was not you, ignore this email.", link)
	return s.mail.Send(email, "Reset your password", body)
}

// SettlementEmail tells the counterparty a settlement was recorded against
// them. Returns whether delivery succeeded.
func (s *MailService) SettlementEmail(rec *models.FriendSettlement, initiator, counterparty *models.User) bool {
	if counterparty == nil || counterparty.Email == "" {
		return false
	}
	verb := "recorded that you paid them"
	if rec.Direction == string(ledger.DirectionYouOwe) {
		verb = "recorded a payment to you"
	}
	body := fmt.Sprintf("%s %s %.2f for %q.\n\nYour shared balances have been updated.",
		initiator.DisplayName(), verb, rec.Amount, rec.GroupLabel)
	return s.mail.Send(counterparty.Email, "Settlement recorded", body)
}
