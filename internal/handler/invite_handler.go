package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"balancestudio/internal/domain"
	"balancestudio/internal/ledger"
	"balancestudio/internal/middleware"
	"balancestudio/internal/models"
	"balancestudio/internal/repository"
	"balancestudio/internal/service"
	"balancestudio/internal/ws"
)

type InviteHandler struct {
	engine      *ledger.Engine
	invites     *repository.InviteRepository
	friendships *repository.FriendshipRepository
	users       *repository.UserRepository
	mail        *service.MailService
	notifier    *service.NotificationService
	events      *ws.Events
	log         *slog.Logger
}

func NewInviteHandler(
	engine *ledger.Engine,
	invites *repository.InviteRepository,
	friendships *repository.FriendshipRepository,
	users *repository.UserRepository,
	mail *service.MailService,
	notifier *service.NotificationService,
	events *ws.Events,
	log *slog.Logger,
) *InviteHandler {
	return &InviteHandler{
		engine:      engine,
		invites:     invites,
		friendships: friendships,
		users:       users,
		mail:        mail,
		notifier:    notifier,
		events:      events,
		log:         log,
	}
}

type CreateInviteRequest struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email" binding:"omitempty,email"`
	Note   string `json:"note" binding:"omitempty,max=255"`
}

// Create invites a user by id or email. Email invites to unregistered
// addresses are claimed when the invitee signs up.
func (h *InviteHandler) Create(c *gin.Context) {
	var req CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID == 0 && req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id or email required"})
		return
	}
	inviterID := middleware.GetUserID(c)
	inviter, err := h.users.FindByID(inviterID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	invite := &models.FriendInvite{
		InviterID: inviterID,
		Note:      strings.TrimSpace(req.Note),
	}

	var invitee *models.User
	if req.UserID != 0 {
		invitee, err = h.users.FindByID(req.UserID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
	} else {
		email := strings.ToLower(strings.TrimSpace(req.Email))
		invite.InviteeEmail = email
		if u, err := h.users.FindByEmail(email); err == nil {
			invitee = u
		}
	}
	if invitee != nil {
		if invitee.ID == inviterID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot invite yourself"})
			return
		}
		already, err := h.friendships.AreFriends(inviterID, invitee.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create invite"})
			return
		}
		if already {
			c.JSON(http.StatusConflict, gin.H{"error": "already friends"})
			return
		}
		pending, err := h.invites.PendingBetween(inviterID, invitee.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create invite"})
			return
		}
		if pending != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "an invite is already pending"})
			return
		}
		invite.InviteeUserID = &invitee.ID
		invite.InviteeEmail = invitee.Email
	}

	if err := h.invites.Create(invite); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create invite"})
		return
	}

	if invitee != nil {
		h.notifier.InviteReceived(invitee.ID, inviter, invite.ID)
	} else {
		// Email invites are only worth keeping if the email went out.
		if !h.mail.SendInvite(invite.InviteeEmail, inviter, invite.Note) {
			if err := h.invites.Delete(invite.ID); err != nil {
				h.log.Warn("roll back undelivered invite", "invite_id", invite.ID, "error", err)
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": service.ErrInviteDelivery.Error()})
			return
		}
	}
	c.JSON(http.StatusCreated, gin.H{"invite": invite})
}

func (h *InviteHandler) Incoming(c *gin.Context) {
	userID := middleware.GetUserID(c)
	// Attach invites sent to this address before the account existed.
	if email := middleware.GetEmail(c); email != "" {
		if err := h.invites.ClaimByEmail(email, userID); err != nil {
			h.log.Warn("claim invites by email", "user_id", userID, "error", err)
		}
	}
	invites, err := h.invites.ListIncoming(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load invites"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": invites})
}

func (h *InviteHandler) Outgoing(c *gin.Context) {
	invites, err := h.invites.ListOutgoing(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load invites"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": invites})
}

// Accept resolves the invite and creates the friendship pair.
func (h *InviteHandler) Accept(c *gin.Context) {
	invite, ok := h.ownInvite(c)
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)
	if err := h.invites.Resolve(invite.ID, domain.InviteStatusAccepted); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "invite already resolved"})
		return
	}
	if err := h.engine.EnsureFriendship(userID, invite.InviterID); err != nil {
		h.log.Error("create friendship on accept", "invite_id", invite.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create friendship"})
		return
	}
	invitee, err := h.users.FindByID(userID)
	if err == nil {
		h.notifier.InviteAccepted(invite.InviterID, invitee)
	}
	h.events.NotifyFriendsRefresh(userID)
	h.events.NotifyInviteRefresh(userID)
	c.JSON(http.StatusOK, gin.H{"message": "invite accepted"})
}

func (h *InviteHandler) Reject(c *gin.Context) {
	invite, ok := h.ownInvite(c)
	if !ok {
		return
	}
	if err := h.invites.Resolve(invite.ID, domain.InviteStatusRejected); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "invite already resolved"})
		return
	}
	h.events.NotifyInviteRefresh(middleware.GetUserID(c))
	c.JSON(http.StatusOK, gin.H{"message": "invite rejected"})
}

func (h *InviteHandler) ownInvite(c *gin.Context) (*models.FriendInvite, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invite id"})
		return nil, false
	}
	invite, err := h.invites.FindByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invite not found"})
		return nil, false
	}
	userID := middleware.GetUserID(c)
	if invite.InviteeUserID == nil || *invite.InviteeUserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your invite"})
		return nil, false
	}
	return invite, true
}
