package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rata-backend/models"
	"rata-backend/utils"
)

// PUT /api/users/me/push-token
func (h *Handler) UpdatePushToken(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.PushTokenRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.users.SetPushToken(c.Request.Context(), id.ID, req.Token); err != nil {
		utils.Fail(c, err)
		return
	}

	utils.StatusOK(c, "Push token updated")
}

// GET /api/users/search?q=
func (h *Handler) SearchUsers(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	users, err := h.membership.SearchUsers(c.Request.Context(), c.Query("q"))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", users)
}
