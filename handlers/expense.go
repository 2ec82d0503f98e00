package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rata-backend/models"
	"rata-backend/utils"
)

// POST /api/groups/:id/expenses
func (h *Handler) CreateExpense(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateExpenseRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	expense, group, err := h.ledger.AddExpense(c.Request.Context(), c.Param("id"), req.Description, amount, req.PayerID, id)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Expense added", gin.H{
		"expense": expense,
		"total":   group.TotalAmount(),
		"share":   group.ShareAmount(),
	})
}

// GET /api/groups/:id/expenses
func (h *Handler) GetGroupExpenses(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	expenses, err := h.ledger.ListExpenses(c.Request.Context(), c.Param("id"), id.ID)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", expenses)
}
