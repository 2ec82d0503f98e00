package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rata-backend/apperrors"
	"rata-backend/models"
	"rata-backend/utils"
)

type storeFunc func(ctx context.Context, body io.Reader, size int64) (string, error)

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// uploadFile stores the multipart "file" field and returns its URL.
func uploadFile(c *gin.Context, store storeFunc) (string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", apperrors.Validation("file is required", err.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return "", apperrors.Validation("could not read file", err.Error())
	}
	defer f.Close()
	return store(c.Request.Context(), f, fh.Size)
}

// POST /api/groups/:id/members/:memberId/proof
// Accepts {"proofUrl"} or a multipart "file".
func (h *Handler) UploadProof(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}
	groupID, memberID := c.Param("id"), c.Param("memberId")

	var proofURL string
	if isMultipart(c) {
		url, err := uploadFile(c, func(ctx context.Context, body io.Reader, size int64) (string, error) {
			return h.uploads.StoreMemberProof(ctx, groupID, memberID, body, size)
		})
		if err != nil {
			utils.Fail(c, err)
			return
		}
		proofURL = url
	} else {
		var req models.UploadProofRequest
		if !bindJSON(c, &req) {
			return
		}
		proofURL = req.ProofURL
	}

	group, err := h.settlement.UploadProof(c.Request.Context(), groupID, memberID, proofURL, id)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Proof submitted", group)
}

// POST /api/groups/:id/members/:memberId/verify
func (h *Handler) VerifyProof(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.VerifyProofRequest
	if !bindJSON(c, &req) {
		return
	}

	group, err := h.settlement.VerifyProof(c.Request.Context(), c.Param("id"), c.Param("memberId"), *req.Approved, id)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	message := "Proof rejected"
	if *req.Approved {
		message = "Payment approved"
	}
	utils.SuccessResponse(c, http.StatusOK, message, group)
}

// POST /api/groups/:id/members/:memberId/toggle
func (h *Handler) TogglePayment(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.ToggleManualRequest
	if !bindJSON(c, &req) {
		return
	}

	group, err := h.settlement.ToggleManual(c.Request.Context(), c.Param("id"), c.Param("memberId"), *req.IsPaid, id)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Payment status updated", group)
}

// POST /api/groups/:id/receipt
// The consolidated proof that the admin paid the vendor.
func (h *Handler) UploadReceipt(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}
	groupID := c.Param("id")

	var receiptURL string
	if isMultipart(c) {
		url, err := uploadFile(c, func(ctx context.Context, body io.Reader, size int64) (string, error) {
			return h.uploads.StoreGroupReceipt(ctx, groupID, body, size)
		})
		if err != nil {
			utils.Fail(c, err)
			return
		}
		receiptURL = url
	} else {
		var req models.ReceiptRequest
		if !bindJSON(c, &req) {
			return
		}
		receiptURL = req.URL
	}

	group, err := h.settlement.UploadConsolidatedReceipt(c.Request.Context(), groupID, receiptURL, id)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Receipt uploaded", group)
}
