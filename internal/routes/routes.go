package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"constructflow/internal/authz"
	"constructflow/internal/handlers"
	"constructflow/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	jwtSecret []byte,
	taskHandler *handlers.TaskHandler,
	notificationHandler *handlers.NotificationHandler, // может быть nil, если каналы не настроены
	integrationsHandler *handlers.IntegrationsHandler, // ОДИН Telegram-хендлер, может быть nil
) *gin.Engine {

	// ---- public
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Telegram webhook публикуем только если есть интеграция
	if integrationsHandler != nil {
		r.POST("/integrations/telegram/webhook", integrationsHandler.Webhook)
	}

	// ---- protected
	r.Use(middleware.AuthMiddleware(jwtSecret))

	if integrationsHandler != nil {
		integr := r.Group("/integrations")
		{
			integr.POST("/telegram/request-link", integrationsHandler.RequestTelegramLink)
		}
	}

	// TASKS
	tasks := r.Group("/tasks",
		middleware.RequireRoles(authz.RoleEmployee, authz.RoleDirector, authz.RoleAdmin),
	)
	{
		tasks.POST("", taskHandler.Create)
		tasks.GET("", taskHandler.List)
		tasks.GET("/:id", taskHandler.GetByID)
		tasks.GET("/:id/approval-chain", taskHandler.ApprovalChain)
		tasks.GET("/:id/report", taskHandler.Report)
		tasks.POST("/:id/assign-director", taskHandler.AssignDirector)
		tasks.POST("/:id/assign-employee", taskHandler.AssignEmployee)
		tasks.POST("/:id/complete", taskHandler.Complete)
		tasks.POST("/:id/director-approval",
			middleware.RequireRoles(authz.RoleDirector, authz.RoleAdmin),
			taskHandler.DirectorDecision,
		)
		tasks.POST("/:id/admin-approval",
			middleware.RequireRoles(authz.RoleAdmin),
			taskHandler.AdminDecision,
		)
	}

	// NOTIFICATIONS (director/admin)
	if notificationHandler != nil {
		n := r.Group("/notifications", middleware.RequireRoles(authz.RoleDirector, authz.RoleAdmin))
		{
			n.POST("/send", notificationHandler.Send)
		}
	}

	return r
}
