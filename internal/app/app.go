package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "constructflow/docs"
	"constructflow/internal/config"
	"constructflow/internal/handlers"
	"constructflow/internal/pdf"
	"constructflow/internal/repositories"
	"constructflow/internal/routes"
	"constructflow/internal/services"
	"constructflow/internal/tracing"
)

const (
	serviceName    = "constructflow"
	serviceVersion = "1.0.0"
)

// Runtime holds the wired stores and services shared by the HTTP server
// and the CLI commands.
type Runtime struct {
	Config   *config.Config
	Log      *logrus.Entry
	DB       *sql.DB // nil in memory mode
	Tasks    repositories.TaskRepository
	Users    repositories.UserRepository
	Links    repositories.TelegramLinkRepository
	Telegram *services.TelegramService // nil when no token is configured
	Notifier *services.NotificationService
	Workflow services.WorkflowService
}

func NewRuntime(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Log: log}

	if cfg.Tracing.Enabled {
		if err := tracing.Init(serviceName, serviceVersion, cfg.Tracing.Output); err != nil {
			return nil, errors.Wrap(err, "init tracing")
		}
	}

	// === Store ===
	switch cfg.Store {
	case "memory":
		rt.Tasks = repositories.NewMemoryTaskRepository()
		rt.Users = repositories.NewMemoryUserRepository()
		rt.Links = repositories.NewMemoryTelegramLinkRepository()
		log.Warn("[app] using in-memory store, data is lost on exit")
	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres")
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "ping postgres")
		}
		if cfg.Database.AutoMigrate {
			if err := repositories.EnsureSchema(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		rt.DB = db
		rt.Tasks = repositories.NewTaskRepository(db)
		rt.Users = repositories.NewUserRepository(db)
		rt.Links = repositories.NewTelegramLinkRepository(db)
	default:
		return nil, fmt.Errorf("unknown store %q (want postgres|memory)", cfg.Store)
	}

	// === Notification channels ===
	var channels []services.Channel
	if cfg.Telegram.Token != "" {
		tg, err := services.NewTelegramService(cfg.Telegram.Token, cfg.Telegram.Endpoint, cfg.Telegram.RatePerSecond,
			&http.Client{Timeout: 15 * time.Second}, log.WithField("channel", "telegram"))
		if err != nil {
			// бот недоступен: работаем без Telegram
			log.WithError(err).Warn("[app] telegram disabled")
		} else {
			rt.Telegram = tg
			channels = append(channels, tg)
		}
	}
	if cfg.Email.SMTPHost != "" {
		channels = append(channels, services.NewEmailService(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
		))
	}

	rt.Notifier = services.NewNotificationService(rt.Users, log.WithField("component", "notifier"), services.NotificationConfig{
		QueueSize:  cfg.Notifications.QueueSize,
		Retries:    cfg.Notifications.Retries,
		RetryDelay: time.Duration(cfg.Notifications.RetryDelayMs) * time.Millisecond,
		Timeout:    time.Duration(cfg.Notifications.TimeoutSeconds) * time.Second,
	}, channels...)

	rt.Workflow = services.NewWorkflowService(rt.Tasks, rt.Notifier, log.WithField("component", "workflow"))
	return rt, nil
}

// Close drains pending notifications, flushes spans and closes the DB.
func (rt *Runtime) Close(ctx context.Context) {
	if rt.Notifier != nil {
		rt.Notifier.Close()
	}
	if err := tracing.Shutdown(ctx); err != nil {
		rt.Log.WithError(err).Warn("[app] tracing shutdown")
	}
	if rt.DB != nil {
		if err := rt.DB.Close(); err != nil {
			rt.Log.WithError(err).Warn("[app] db close")
		}
	}
}

// Router builds the gin engine with all handlers mounted.
func (rt *Runtime) Router() *gin.Engine {
	if rt.Config.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	taskHandler := handlers.NewTaskHandler(rt.Workflow, pdf.NewApprovalReportGenerator(rt.Config.Report.FontPath), rt.Log)
	notificationHandler := handlers.NewNotificationHandler(rt.Notifier, rt.Log)

	var integrationsHandler *handlers.IntegrationsHandler
	if rt.Telegram != nil {
		integrationsHandler = handlers.NewIntegrationsHandler(rt.Telegram, rt.Links, rt.Users, rt.Workflow,
			rt.Config.Telegram.WebhookSecret, rt.Log)
	}

	// Роуты (JWT/RBAC внутри SetupRoutes)
	return routes.SetupRoutes(router, []byte(rt.Config.JWT.Secret), taskHandler, notificationHandler, integrationsHandler)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config, log *logrus.Entry) error {
	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret is required to serve HTTP")
	}
	rt, err := NewRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           rt.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("[app] server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			rt.Close(context.Background())
			return errors.Wrap(err, "listen")
		}
	}

	log.Info("[app] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("[app] http shutdown")
	}
	rt.Close(shutdownCtx)
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-Telegram-Bot-Api-Secret-Token"},
		ExposeHeaders:   []string{"Content-Disposition", "Retry-After"},
		MaxAge:          12 * time.Hour,
	})
}
