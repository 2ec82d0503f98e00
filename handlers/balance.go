package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rata-backend/utils"
)

// GET /api/groups/:id/summary
// Totals, per-member share, counts by status and the current debtors.
func (h *Handler) GetGroupSummary(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	group, err := h.membership.GetGroup(c.Request.Context(), c.Param("id"), id.ID)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", group.Summary)
}
