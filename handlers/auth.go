package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rata-backend/utils"
)

// POST /api/users/me
// Called after sign-in so the user shows up in search and can be notified.
func (h *Handler) SyncProfile(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.users.SyncUser(c.Request.Context(), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile synced", user.ToResponse())
}

// GET /api/users/me
func (h *Handler) GetProfile(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), id.ID)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", user.ToResponse())
}
