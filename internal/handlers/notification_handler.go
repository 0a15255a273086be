package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"constructflow/internal/authz"
	"constructflow/internal/services"
)

// DirectSender sends an ad-hoc message to a user over their enabled channels.
type DirectSender interface {
	Send(ctx context.Context, userID int64, title, body string) error
}

type NotificationHandler struct {
	sender DirectSender
	log    *logrus.Entry
}

func NewNotificationHandler(sender DirectSender, log *logrus.Entry) *NotificationHandler {
	return &NotificationHandler{sender: sender, log: log.WithField("component", "notification_handler")}
}

type sendNotificationRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Title  string `json:"title" binding:"required"`
	Body   string `json:"body"`
}

// Send godoc
// @Summary      Отправить уведомление
// @Description  Доставляет сообщение пользователю в Telegram и/или по e-mail
// @Tags         Notifications
// @Accept       json
// @Produce      json
// @Param        body  body      sendNotificationRequest  true  "Сообщение"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Security     BearerAuth
// @Router       /notifications/send [post]
func (h *NotificationHandler) Send(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	log := h.log.WithFields(logrus.Fields{"user_id": userID, "role": authz.Name(roleID)})

	var req sendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.WithError(err).Warn("[notify][send][bind][err]")
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	err := h.sender.Send(c.Request.Context(), req.UserID, req.Title, req.Body)
	switch {
	case err == nil:
		log.WithField("to", req.UserID).Info("[notify][send][ok]")
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	case errors.Is(err, services.ErrRecipientUnknown):
		c.JSON(http.StatusNotFound, errorResponse{Error: "user not found", Code: "not_found"})
	case errors.Is(err, services.ErrNoChannel):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "user has no delivery channel", Code: "no_channel"})
	default:
		log.WithError(err).WithField("to", req.UserID).Warn("[notify][send][err]")
		c.JSON(http.StatusBadGateway, errorResponse{Error: "delivery failed", Code: "delivery_failed"})
	}
}
