package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rata-backend/models"
	"rata-backend/utils"
)

// POST /api/groups/:id/invitations
func (h *Handler) InviteToGroup(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.InviteRequest
	if !bindJSON(c, &req) {
		return
	}

	inv, err := h.membership.Invite(c.Request.Context(), c.Param("id"), req.UserID, id)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Invitation sent", inv)
}

// GET /api/groups/:id/invitations
func (h *Handler) GetGroupInvitations(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	list, err := h.membership.ListPendingInvitationsForGroup(ctx, c.Param("id"), id.ID)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{
		"invitations": list,
		"count":       len(list),
	})
}

// GET /api/invitations
func (h *Handler) ListMyInvitations(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	list, err := h.membership.ListPendingInvitations(c.Request.Context(), id.ID)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", list)
}

// POST /api/invitations/:id/respond
func (h *Handler) RespondToInvitation(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.RespondInvitationRequest
	if !bindJSON(c, &req) {
		return
	}

	groupID, err := h.membership.RespondToInvitation(c.Request.Context(), c.Param("id"), *req.Accept, id)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	message := "Invitation rejected"
	if *req.Accept {
		message = "Invitation accepted"
	}
	utils.SuccessResponse(c, http.StatusOK, message, gin.H{"groupId": groupID})
}

// DELETE /api/invitations/:id
func (h *Handler) CancelInvitation(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.membership.CancelInvitation(c.Request.Context(), c.Param("id"), id); err != nil {
		utils.Fail(c, err)
		return
	}

	utils.StatusOK(c, "Invitation cancelled")
}
