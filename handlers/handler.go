// Package handlers exposes the services over HTTP with gin.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rata-backend/apperrors"
	"rata-backend/database"
	"rata-backend/models"
	"rata-backend/services"
	"rata-backend/utils"
)

type Handler struct {
	appName        string
	users          *services.UserService
	membership     *services.MembershipService
	settlement     *services.SettlementService
	ledger         *services.LedgerService
	lifecycle      *services.LifecycleService
	bills          *services.BillService
	reconciliation *services.ReconciliationService
	uploads        *services.UploadService
	feed           database.ChangeFeed
}

// Deps groups everything the handlers call into.
type Deps struct {
	AppName        string
	Users          *services.UserService
	Membership     *services.MembershipService
	Settlement     *services.SettlementService
	Ledger         *services.LedgerService
	Lifecycle      *services.LifecycleService
	Bills          *services.BillService
	Reconciliation *services.ReconciliationService
	Uploads        *services.UploadService
	Feed           database.ChangeFeed
}

func New(d Deps) *Handler {
	return &Handler{
		appName:        d.AppName,
		users:          d.Users,
		membership:     d.Membership,
		settlement:     d.Settlement,
		ledger:         d.Ledger,
		lifecycle:      d.Lifecycle,
		bills:          d.Bills,
		reconciliation: d.Reconciliation,
		uploads:        d.Uploads,
		feed:           d.Feed,
	}
}

// RegisterRoutes mounts every endpoint. auth guards the /api group; bill share
// links and the payment webhook are public.
func (h *Handler) RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==========================================
	// PUBLIC ROUTES
	// ==========================================
	r.GET("/bills/:id", h.GetBill)
	r.GET("/bills/:id/events", h.BillEvents)
	r.POST("/bills/:id/friends/:friendId/paid", h.MarkFriendPaid)
	r.POST("/bills/:id/friends/:friendId/payment-link", h.CreatePaymentLink)
	r.POST("/webhooks/mercadopago", h.MercadoPagoWebhook)

	// ==========================================
	// API ROUTES (authenticated)
	// ==========================================
	api := r.Group("/api")
	api.Use(auth)
	{
		// User
		api.POST("/users/me", h.SyncProfile)
		api.GET("/users/me", h.GetProfile)
		api.PUT("/users/me/push-token", h.UpdatePushToken)
		api.GET("/users/search", h.SearchUsers)

		// Invitations
		api.GET("/invitations", h.ListMyInvitations)
		api.POST("/invitations/:id/respond", h.RespondToInvitation)
		api.DELETE("/invitations/:id", h.CancelInvitation)

		// Groups
		api.POST("/groups", h.CreateGroup)
		api.GET("/groups", h.GetGroups)
		api.GET("/groups/:id", h.GetGroup)
		api.DELETE("/groups/:id", h.DeleteGroup)
		api.GET("/groups/:id/events", h.GroupEvents)
		api.POST("/groups/:id/invitations", h.InviteToGroup)
		api.GET("/groups/:id/invitations", h.GetGroupInvitations)
		api.DELETE("/groups/:id/members/:memberId", h.LeaveGroup)

		// Expenses
		api.POST("/groups/:id/expenses", h.CreateExpense)
		api.GET("/groups/:id/expenses", h.GetGroupExpenses)

		// Settlement
		api.POST("/groups/:id/members/:memberId/proof", h.UploadProof)
		api.POST("/groups/:id/members/:memberId/verify", h.VerifyProof)
		api.POST("/groups/:id/members/:memberId/toggle", h.TogglePayment)
		api.POST("/groups/:id/receipt", h.UploadReceipt)

		// Summary and activity
		api.GET("/groups/:id/summary", h.GetGroupSummary)
		api.GET("/groups/:id/activity", h.GetGroupActivity)

		// Bills
		api.POST("/bills", h.CreateBill)
	}
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": h.appName,
	})
}

// currentUser returns the authenticated identity or writes a 401.
func currentUser(c *gin.Context) (models.Identity, bool) {
	id, ok := utils.GetCurrentUser(c)
	if !ok {
		utils.Fail(c, apperrors.Unauthorized("authorization required"))
	}
	return id, ok
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.Fail(c, apperrors.Validation("invalid request body", err.Error()))
		return false
	}
	return true
}
