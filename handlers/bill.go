package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"rata-backend/database"
	"rata-backend/models"
	"rata-backend/services"
	"rata-backend/utils"
)

// POST /api/bills
func (h *Handler) CreateBill(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateBillRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	bill, err := h.bills.CreateBill(c.Request.Context(), services.CreateBillInput{
		Description:  req.Description,
		Alias:        req.Alias,
		Amount:       amount,
		FriendsCount: req.FriendsCount,
		GroupID:      req.GroupID,
		GroupMembers: req.GroupMembers,
	}, id)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Bill created", bill)
}

// GET /bills/:id
// Bills are shared by link, so reads need no account.
func (h *Handler) GetBill(c *gin.Context) {
	bill, err := h.bills.GetBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", bill)
}

// GET /bills/:id/events
func (h *Handler) BillEvents(c *gin.Context) {
	billID := c.Param("id")
	h.streamChanges(c, database.KindBill, billID, func(ctx context.Context) (interface{}, int64, error) {
		bill, err := h.bills.GetBill(ctx, billID)
		if err != nil {
			return nil, 0, err
		}
		return bill, bill.Revision, nil
	})
}

// POST /bills/:id/friends/:friendId/paid
// Accepts {"proofUrl"} or a multipart "file".
func (h *Handler) MarkFriendPaid(c *gin.Context) {
	billID, friendID := c.Param("id"), c.Param("friendId")

	var proofURL string
	if isMultipart(c) {
		url, err := uploadFile(c, func(ctx context.Context, body io.Reader, size int64) (string, error) {
			return h.uploads.StoreBillProof(ctx, billID, friendID, body, size)
		})
		if err != nil {
			utils.Fail(c, err)
			return
		}
		proofURL = url
	} else if c.Request.ContentLength != 0 {
		var req models.MarkFriendPaidRequest
		if !bindJSON(c, &req) {
			return
		}
		proofURL = req.ProofURL
	}

	bill, err := h.bills.MarkFriendPaid(c.Request.Context(), billID, friendID, proofURL)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Payment recorded", bill)
}

// POST /bills/:id/friends/:friendId/payment-link
func (h *Handler) CreatePaymentLink(c *gin.Context) {
	url, err := h.bills.CreatePaymentLink(c.Request.Context(), c.Param("id"), c.Param("friendId"))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", models.PaymentLinkResponse{URL: url})
}
