package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"balancestudio/internal/domain"
	"balancestudio/internal/ledger"
	"balancestudio/internal/middleware"
	"balancestudio/internal/models"
	"balancestudio/internal/repository"
	"balancestudio/internal/service"
	"balancestudio/internal/ws"
)

// shareTolerance is how far participant shares may drift from the total,
// absorbing uneven splits like 100/3.
const shareTolerance = 0.05

type ExpenseHandler struct {
	engine     *ledger.Engine
	expenses   *repository.ExpenseRepository
	activities *repository.ActivityRepository
	users      *repository.UserRepository
	notifier   *service.NotificationService
	events     *ws.Events
	log        *slog.Logger
}

func NewExpenseHandler(
	engine *ledger.Engine,
	expenses *repository.ExpenseRepository,
	activities *repository.ActivityRepository,
	users *repository.UserRepository,
	notifier *service.NotificationService,
	events *ws.Events,
	log *slog.Logger,
) *ExpenseHandler {
	return &ExpenseHandler{
		engine:     engine,
		expenses:   expenses,
		activities: activities,
		users:      users,
		notifier:   notifier,
		events:     events,
		log:        log,
	}
}

type ExpenseShare struct {
	UserID uint    `json:"user_id" binding:"required"`
	Amount float64 `json:"amount"`
}

type CreateExpenseRequest struct {
	GroupName    string         `json:"group_name" binding:"omitempty,max=255"`
	Note         string         `json:"note" binding:"omitempty,max=255"`
	TotalAmount  float64        `json:"total_amount" binding:"required"`
	Participants []ExpenseShare `json:"participants" binding:"required,min=1,dive"`
}

// Create logs a shared expense paid by the caller and updates every
// participant's ledger with them.
func (h *ExpenseHandler) Create(c *gin.Context) {
	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payerID := middleware.GetUserID(c)
	total := ledger.Round(req.TotalAmount)
	if total <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total amount must be greater than zero"})
		return
	}

	// Merge duplicate entries and make sure the payer is present.
	shares := make(map[uint]float64)
	for _, p := range req.Participants {
		amt := ledger.Round(p.Amount)
		if amt < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "shares cannot be negative"})
			return
		}
		shares[p.UserID] += amt
	}
	if _, ok := shares[payerID]; !ok {
		shares[payerID] = 0
	}
	if len(shares) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "an expense needs at least two participants"})
		return
	}
	sum := 0.0
	for _, amt := range shares {
		sum += amt
	}
	if diff := sum - total; diff > shareTolerance || diff < -shareTolerance {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("shares sum to %.2f but total is %.2f", sum, total)})
		return
	}

	payer, err := h.users.FindByID(payerID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	for uid := range shares {
		if uid == payerID {
			continue
		}
		if _, err := h.users.FindByID(uid); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("participant %d not found", uid)})
			return
		}
	}

	expense := &models.Expense{
		PayerID:     payerID,
		GroupName:   req.GroupName,
		Note:        req.Note,
		TotalAmount: total,
	}
	for uid, amt := range shares {
		expense.Participants = append(expense.Participants, models.ExpenseParticipant{
			UserID:  uid,
			Amount:  amt,
			IsPayer: uid == payerID,
		})
	}
	if err := h.expenses.Create(expense); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save expense"})
		return
	}

	rawLabel := req.GroupName
	if rawLabel == "" {
		rawLabel = req.Note
	}
	label := ledger.NormalizeGroupLabel(rawLabel)

	for uid, amt := range shares {
		if uid == payerID || amt == 0 {
			continue
		}
		if err := h.engine.ApplyBalanceChange(payerID, uid, ledger.OwnerAmount(amt), label); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update balances"})
			return
		}
		if err := h.engine.ApplyBalanceChange(uid, payerID, ledger.OwnerAmount(-amt), label); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update balances"})
			return
		}
	}

	h.recordActivity(payer, expense, label, shares)
	for uid, amt := range shares {
		if uid == payerID || amt == 0 {
			continue
		}
		h.notifier.ExpenseLogged(uid, payer, expense.ID, label, amt)
	}
	h.events.NotifyFriendsRefresh(payerID)
	h.events.NotifyActivityRefresh(payerID)

	c.JSON(http.StatusCreated, gin.H{"expense": expense})
}

func (h *ExpenseHandler) recordActivity(payer *models.User, expense *models.Expense, label string, shares map[uint]float64) {
	owedToPayer := 0.0
	for uid, amt := range shares {
		if uid != payer.ID {
			owedToPayer += amt
		}
	}
	status := domain.ActivityStatusPosted
	if owedToPayer > 0 {
		status = domain.ActivityStatusCredited
	}
	entries := []models.Activity{{
		UserID:    payer.ID,
		ActorID:   payer.ID,
		ExpenseID: expense.ID,
		Summary:   fmt.Sprintf("You logged %q", label),
		Detail:    fmt.Sprintf("Total %.2f, others owe you %.2f", expense.TotalAmount, owedToPayer),
		Amount:    ledger.Round(owedToPayer),
		Status:    status,
	}}
	for uid, amt := range shares {
		if uid == payer.ID || amt == 0 {
			continue
		}
		entries = append(entries, models.Activity{
			UserID:    uid,
			ActorID:   payer.ID,
			ExpenseID: expense.ID,
			Summary:   fmt.Sprintf("%s logged %q", payer.DisplayName(), label),
			Detail:    fmt.Sprintf("Your share is %.2f", amt),
			Amount:    -amt,
			Status:    domain.ActivityStatusDue,
		})
	}
	if err := h.activities.CreateAll(entries); err != nil {
		h.log.Warn("record activity", "expense_id", expense.ID, "error", err)
	}
}

func (h *ExpenseHandler) List(c *gin.Context) {
	limit := intQuery(c, "limit", 25)
	expenses, err := h.expenses.ListForUser(middleware.GetUserID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load expenses"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expenses": expenses})
}

func (h *ExpenseHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expense id"})
		return
	}
	expense, err := h.expenses.FindByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "expense not found"})
		return
	}
	userID := middleware.GetUserID(c)
	involved := expense.PayerID == userID
	for _, p := range expense.Participants {
		if p.UserID == userID {
			involved = true
		}
	}
	if !involved {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this expense"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

func (h *ExpenseHandler) Activity(c *gin.Context) {
	limit := intQuery(c, "limit", 40)
	entries, err := h.activities.ListForUser(middleware.GetUserID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load activity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			return n
		}
	}
	return fallback
}
