package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"balancestudio/internal/ledger"
	"balancestudio/internal/middleware"
	"balancestudio/internal/repository"
)

type FriendHandler struct {
	engine      *ledger.Engine
	friendships *repository.FriendshipRepository
	settlements *repository.SettlementRepository
	users       *repository.UserRepository
	log         *slog.Logger
}

func NewFriendHandler(
	engine *ledger.Engine,
	friendships *repository.FriendshipRepository,
	settlements *repository.SettlementRepository,
	users *repository.UserRepository,
	log *slog.Logger,
) *FriendHandler {
	return &FriendHandler{
		engine:      engine,
		friendships: friendships,
		settlements: settlements,
		users:       users,
		log:         log,
	}
}

type friendSummary struct {
	FriendID uint    `json:"friend_id"`
	Name     string  `json:"name"`
	Username string  `json:"username"`
	Balance  float64 `json:"balance"`
}

// List returns the caller's friends with their net balances, largest first,
// plus overall owed/owing totals.
func (h *FriendHandler) List(c *gin.Context) {
	recs, err := h.friendships.ListForUser(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load friends"})
		return
	}
	out := make([]friendSummary, 0, len(recs))
	var owedToYou, youOwe float64
	for _, rec := range recs {
		bal := ledger.Round(rec.Balance)
		if bal > 0 {
			owedToYou += bal
		} else {
			youOwe += -bal
		}
		out = append(out, friendSummary{
			FriendID: rec.FriendID,
			Name:     rec.Friend.DisplayName(),
			Username: rec.Friend.Username,
			Balance:  bal,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"friends":           out,
		"total_owed_to_you": ledger.Round(owedToYou),
		"total_you_owe":     ledger.Round(youOwe),
	})
}

// Breakdown reports the per-group balances with one friend.
func (h *FriendHandler) Breakdown(c *gin.Context) {
	friendID, ok := h.friendParam(c)
	if !ok {
		return
	}
	breakdown, err := h.engine.Breakdown(middleware.GetUserID(c), friendID)
	if err != nil {
		h.renderLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"breakdown": breakdown})
}

type SettleRequest struct {
	GroupSlug  string   `json:"group_slug"`
	GroupLabel string   `json:"group_label"`
	Amount     *float64 `json:"amount"` // nil settles the full outstanding value
}

// Settle records a settlement for one group, partial or full.
func (h *FriendHandler) Settle(c *gin.Context) {
	friendID, ok := h.friendParam(c)
	if !ok {
		return
	}
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slug := req.GroupSlug
	if slug == "" {
		if req.GroupLabel == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "group_slug or group_label required"})
			return
		}
		slug = ledger.SlugifyGroupLabel(req.GroupLabel)
	}

	userID := middleware.GetUserID(c)
	initiator, err := h.users.FindByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	counterparty, err := h.users.FindByID(friendID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "friend not found"})
		return
	}

	rec, delivered, err := h.engine.SettleGroup(userID, friendID, slug, req.Amount, initiator, counterparty)
	if err != nil {
		h.renderLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settlement": rec, "email_delivered": delivered})
}

// SettleAll fully settles every outstanding group with one friend.
func (h *FriendHandler) SettleAll(c *gin.Context) {
	friendID, ok := h.friendParam(c)
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)
	initiator, err := h.users.FindByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	counterparty, err := h.users.FindByID(friendID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "friend not found"})
		return
	}

	results, total, breakdown, err := h.engine.SettleAll(userID, friendID, initiator, counterparty)
	if err != nil {
		// Earlier groups stay settled even when a later one fails.
		if len(results) > 0 {
			h.log.Warn("settle-all stopped partway", "user_id", userID, "friend_id", friendID, "completed", len(results), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":         "settlement stopped partway; completed groups were recorded",
				"settlements":   results,
				"total_settled": total,
			})
			return
		}
		h.renderLedgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"settlements":   results,
		"total_settled": total,
		"breakdown":     breakdown,
	})
}

// Settlements lists the settlement history between the caller and a friend.
func (h *FriendHandler) Settlements(c *gin.Context) {
	friendID, ok := h.friendParam(c)
	if !ok {
		return
	}
	recs, err := h.settlements.ListBetween(middleware.GetUserID(c), friendID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load settlements"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settlements": recs})
}

// Search finds users to invite by name, username or exact email.
func (h *FriendHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if len(q) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query must be at least 2 characters"})
		return
	}
	users, err := h.users.Search(q, middleware.GetUserID(c), 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *FriendHandler) friendParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid friend id"})
		return 0, false
	}
	if uint(id) == middleware.GetUserID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot target yourself"})
		return 0, false
	}
	return uint(id), true
}

func (h *FriendHandler) renderLedgerError(c *gin.Context, err error) {
	switch {
	case err == ledger.ErrFriendshipNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case ledger.IsSettlementError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("ledger operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}
