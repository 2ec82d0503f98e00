package utils

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"rata-backend/apperrors"
	"rata-backend/logger"
	"rata-backend/models"
)

// Standard API response
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Error   *apperrors.AppError `json:"error,omitempty"`
	Data    interface{}         `json:"data,omitempty"`
}

func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func Unauthorized(c *gin.Context, message string) {
	Fail(c, apperrors.Unauthorized(message))
}

// Fail writes err using its classified status. Unclassified errors become a
// generic 500 so internals never leak.
func Fail(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.New(apperrors.UpstreamError, "internal server error", "")
		appErr.Raw = err
	}
	if appErr.Type == apperrors.UpstreamError {
		logger.GetLogger().Errorw("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", appErr.Raw)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, APIResponse{
		Success: false,
		Message: appErr.Message,
		Error:   appErr,
	})
}

const identityKey = "identity"

// Get current user from context (set by auth middleware)
func GetCurrentUser(c *gin.Context) (models.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok && id.ID != ""
}

func SetCurrentUser(c *gin.Context, id models.Identity) {
	c.Set(identityKey, id)
}

// ParseAmount reads a decimal money amount sent as a string.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return decimal.Zero, apperrors.Validation("invalid amount", raw)
	}
	return amount, nil
}

// Pagination helpers
type PaginationQuery struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=20"`
}

const maxPageSize = 100

func (p *PaginationQuery) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
}

func (p *PaginationQuery) Offset() int {
	return (p.Page - 1) * p.Limit
}

// StatusOK is a shorthand used by handlers that only acknowledge.
func StatusOK(c *gin.Context, message string) {
	SuccessResponse(c, http.StatusOK, message, nil)
}
