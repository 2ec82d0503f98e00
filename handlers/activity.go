package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rata-backend/utils"
)

// GET /api/groups/:id/activity
// Activity feed for a group, newest first.
func (h *Handler) GetGroupActivity(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	var pagination utils.PaginationQuery
	_ = c.ShouldBindQuery(&pagination)
	pagination.Normalize()

	activities, err := h.membership.ListActivity(c.Request.Context(), c.Param("id"), id.ID, pagination.Limit, pagination.Offset())
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", activities)
}
