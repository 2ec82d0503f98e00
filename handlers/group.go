package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"rata-backend/database"
	"rata-backend/models"
	"rata-backend/services"
	"rata-backend/utils"
)

// POST /api/groups
func (h *Handler) CreateGroup(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateGroupRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	group, err := h.membership.CreateGroup(c.Request.Context(), services.CreateGroupInput{
		Name:           req.Name,
		PayerName:      req.PayerName,
		Alias:          req.Alias,
		Description:    req.Description,
		Amount:         amount,
		Deadline:       req.Deadline,
		OwnerUID:       id.ID,
		OwnerEmail:     id.Email,
		RecycleMembers: req.RecycleMembers,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Group created", group)
}

// GET /api/groups
func (h *Handler) GetGroups(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	groups, err := h.membership.ListGroupsForUser(c.Request.Context(), id.ID)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", groups)
}

// GET /api/groups/:id
func (h *Handler) GetGroup(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	group, err := h.membership.GetGroup(c.Request.Context(), c.Param("id"), id.ID)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", group)
}

// DELETE /api/groups/:id
func (h *Handler) DeleteGroup(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.lifecycle.DeleteGroup(c.Request.Context(), c.Param("id"), id); err != nil {
		utils.Fail(c, err)
		return
	}

	utils.StatusOK(c, "Group deleted")
}

// DELETE /api/groups/:id/members/:memberId
func (h *Handler) LeaveGroup(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	deleted, err := h.lifecycle.LeaveGroup(c.Request.Context(), c.Param("id"), c.Param("memberId"), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	message := "Left group"
	if deleted {
		message = "Group deleted"
	}
	utils.SuccessResponse(c, http.StatusOK, message, gin.H{"groupDeleted": deleted})
}

// GET /api/groups/:id/events
// Streams the group as it changes. Only members may subscribe.
func (h *Handler) GroupEvents(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	groupID := c.Param("id")
	h.streamChanges(c, database.KindGroup, groupID, func(ctx context.Context) (interface{}, int64, error) {
		group, err := h.membership.GetGroup(ctx, groupID, id.ID)
		if err != nil {
			return nil, 0, err
		}
		return group, group.Revision, nil
	})
}
