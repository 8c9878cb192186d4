package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/libtrack/libtrack-server/internal/chatbot"
	"github.com/libtrack/libtrack-server/internal/config"
	"github.com/libtrack/libtrack-server/internal/models"
	"github.com/libtrack/libtrack-server/internal/repository"
	"github.com/libtrack/libtrack-server/internal/service"
	"github.com/libtrack/libtrack-server/internal/utils"
	"github.com/libtrack/libtrack-server/internal/ws"
)

// Handler holds the API dependencies
type Handler struct {
	svc     service.Service
	bot     *chatbot.Bot
	hub     *ws.Hub
	uploads config.UploadConfig
	logger  *utils.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service, bot *chatbot.Bot, hub *ws.Hub, uploads config.UploadConfig, logger *utils.Logger) *Handler {
	return &Handler{
		svc:     svc,
		bot:     bot,
		hub:     hub,
		uploads: uploads,
		logger:  logger,
	}
}

// SetupRoutes registers all API routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Static(h.uploads.ServePrefix, h.uploads.Dir)

	// Public routes
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}
	router.POST("/api/chatbot/message", OptionalAuthMiddleware(), h.ChatbotMessage)

	// Real-time channel for admin dashboards. Browsers cannot set headers on
	// upgrade requests, so the token arrives as a query parameter.
	router.GET("/ws", AuthMiddleware(), gin.WrapF(h.hub.ServeWS))

	// Authenticated routes
	authed := router.Group("/api", AuthMiddleware())
	{
		authed.GET("/books", h.ListBooks)
		authed.GET("/research-papers", h.ListResearchPapers)
		authed.POST("/transactions/borrow", h.Borrow)
		authed.PUT("/transactions/:id/return", h.Return)
		authed.GET("/penalties", h.ListPenalties)
		authed.GET("/penalties/user/:user_id", h.UserPenalties)
		authed.GET("/kiosk/fine-calculation/user/:user_id", h.FinePreview)
		authed.GET("/settings", h.GetSettings)
		authed.POST("/profile/image", h.UploadProfileImage)
	}

	// Admin routes
	admin := router.Group("/api", AuthMiddleware(), AdminMiddleware())
	{
		admin.POST("/books", h.CreateBook)
		admin.POST("/research-papers", h.CreateResearchPaper)
		admin.GET("/users/pending", h.PendingUsers)
		admin.PUT("/users/:id/approve", h.ApproveUser)
		admin.PUT("/penalties/:id/pay", h.PayPenalty)
		admin.PUT("/penalties/:id/waive", h.WaivePenalty)
		admin.POST("/penalties/process-overdue", h.ProcessOverdue)
		admin.POST("/penalties/recalculate", h.Recalculate)
		admin.POST("/penalties/cleanup", h.CleanupPenalties)
		admin.GET("/penalties/export", h.ExportPenalties)
		admin.PUT("/settings", h.UpdateSettings)
		admin.GET("/activity-logs", h.ActivityLogs)
	}
}

// Register handles POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Status: "error", Code: "CONFLICT", Message: err.Error(),
			})
			return
		}
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrAccountNotApproved) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Status: "error", Code: "UNAUTHORIZED", Message: err.Error(),
			})
			return
		}
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// PendingUsers handles GET /api/users/pending
func (h *Handler) PendingUsers(c *gin.Context) {
	users, err := h.svc.PendingUsers(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "users": users})
}

// ApproveUser handles PUT /api/users/:id/approve
func (h *Handler) ApproveUser(c *gin.Context) {
	var req models.ApproveUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	user, err := h.svc.ApproveUser(c.Request.Context(), c.GetString("userId"), c.Param("id"), req)
	if err != nil {
		h.mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "user": user})
}

// Borrow handles POST /api/transactions/borrow
func (h *Handler) Borrow(c *gin.Context) {
	var req models.BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	txn, err := h.svc.Borrow(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		h.mapError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.TransactionResponse{Status: "success", Transaction: txn})
}

// Return handles PUT /api/transactions/:id/return
func (h *Handler) Return(c *gin.Context) {
	txn, err := h.svc.Return(c.Request.Context(), c.GetString("userId"), c.Param("id"))
	if err != nil {
		h.mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TransactionResponse{Status: "success", Transaction: txn})
}

// ListPenalties handles GET /api/penalties
func (h *Handler) ListPenalties(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := repository.PenaltyFilter{
		Status:        c.Query("status"),
		UserID:        c.Query("user_id"),
		TransactionID: c.Query("transaction_id"),
		Page:          page,
		PageSize:      pageSize,
	}

	resp, err := h.svc.ListPenalties(c.Request.Context(), filter)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UserPenalties handles GET /api/penalties/user/:user_id
func (h *Handler) UserPenalties(c *gin.Context) {
	resp, err := h.svc.UserPenalties(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// FinePreview handles GET /api/kiosk/fine-calculation/user/:user_id
func (h *Handler) FinePreview(c *gin.Context) {
	resp, err := h.svc.FinePreview(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// PayPenalty handles PUT /api/penalties/:id/pay
func (h *Handler) PayPenalty(c *gin.Context) {
	penaltyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.badRequest(c, "Invalid penalty ID")
		return
	}

	var req models.PayPenaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	penalty, err := h.svc.PayPenalty(c.Request.Context(), c.GetString("userId"), penaltyID, req)
	if err != nil {
		h.mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "penalty": penalty})
}

// WaivePenalty handles PUT /api/penalties/:id/waive
func (h *Handler) WaivePenalty(c *gin.Context) {
	penaltyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.badRequest(c, "Invalid penalty ID")
		return
	}

	var req models.WaivePenaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	penalty, err := h.svc.WaivePenalty(c.Request.Context(), c.GetString("userId"), penaltyID, req)
	if err != nil {
		h.mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "penalty": penalty})
}

// ProcessOverdue handles POST /api/penalties/process-overdue
func (h *Handler) ProcessOverdue(c *gin.Context) {
	resp, err := h.svc.ProcessOverdue(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Recalculate handles POST /api/penalties/recalculate
func (h *Handler) Recalculate(c *gin.Context) {
	resp, err := h.svc.Recalculate(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CleanupPenalties handles POST /api/penalties/cleanup
func (h *Handler) CleanupPenalties(c *gin.Context) {
	deleted, err := h.svc.CleanupPenalties(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CleanupResponse{Status: "success", RecordsDeleted: deleted})
}

// GetSettings handles GET /api/settings
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.svc.EffectiveSettings(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "settings": settings})
}

// UpdateSettings handles PUT /api/settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	settings, err := h.svc.UpdateSettings(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		h.mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "settings": settings})
}

// ActivityLogs handles GET /api/activity-logs
func (h *Handler) ActivityLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	logs, err := h.svc.ActivityLogs(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "logs": logs})
}

// ChatbotMessage handles POST /api/chatbot/message. The endpoint is public;
// an authenticated caller gets personalized fine answers.
func (h *Handler) ChatbotMessage(c *gin.Context) {
	var req models.ChatbotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	sessionID, reply := h.bot.Reply(c.Request.Context(), req.SessionID, c.GetString("userId"), req.Message)

	c.JSON(http.StatusOK, models.ChatbotResponse{
		Status:    "success",
		SessionID: sessionID,
		Reply:     reply,
	})
}

// Error helpers. Internal errors are logged with full detail but the client
// only sees a generic message.
func (h *Handler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status: "error", Code: "BAD_REQUEST", Message: message,
	})
}

func (h *Handler) internalError(c *gin.Context, err error) {
	h.logger.Error("Internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Status: "error", Code: "INTERNAL_ERROR", Message: "An internal error occurred",
	})
}

func (h *Handler) mapError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status: "error", Code: "NOT_FOUND", Message: "Resource not found",
		})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status: "error", Code: "CONFLICT", Message: "The requested state transition is not allowed",
		})
	case errors.Is(err, service.ErrValidation):
		h.badRequest(c, err.Error())
	case errors.Is(err, service.ErrAccountNotApproved):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Status: "error", Code: "FORBIDDEN", Message: err.Error(),
		})
	default:
		h.internalError(c, err)
	}
}
