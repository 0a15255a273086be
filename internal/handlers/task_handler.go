package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"constructflow/internal/authz"
	"constructflow/internal/models"
	"constructflow/internal/pdf"
	"constructflow/internal/services"
)

type TaskHandler struct {
	service services.WorkflowService
	reports pdf.Generator
	log     *logrus.Entry
}

func NewTaskHandler(service services.WorkflowService, reports pdf.Generator, log *logrus.Entry) *TaskHandler {
	return &TaskHandler{service: service, reports: reports, log: log.WithField("component", "task_handler")}
}

type createTaskRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type assignRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type decisionRequest struct {
	Approved *bool  `json:"approved" binding:"required"`
	Reason   string `json:"reason"`
}

// Create godoc
// @Summary      Создать задачу
// @Description  Создаёт задачу в статусе pending. Только администратор: он же согласует задачу последним.
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        task  body      createTaskRequest  true  "Задача"
// @Success      201   {object}  models.Task
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Security     BearerAuth
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	log := h.log.WithFields(logrus.Fields{"user_id": userID, "role": authz.Name(roleID)})

	// создатель становится финальным согласующим, поэтому только admin
	if roleID != authz.RoleAdmin {
		log.Warn("[task][create][deny]")
		c.JSON(http.StatusForbidden, errorResponse{Error: "only admin can create tasks"})
		return
	}
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.WithError(err).Warn("[task][create][bind][err]")
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	task, err := h.service.Create(c.Request.Context(), &models.Task{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		CreatedBy:   int64(userID),
	})
	if err != nil {
		writeWorkflowError(c, log, err)
		return
	}
	log.WithField("task_id", task.ID).Info("[task][create][ok]")
	c.JSON(http.StatusCreated, task)
}

// GetByID godoc
// @Summary      Получить задачу
// @Tags         Tasks
// @Produce      json
// @Param        id   path      int  true  "ID задачи"
// @Success      200  {object}  models.Task
// @Failure      404  {object}  errorResponse
// @Security     BearerAuth
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	task, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	if !h.canView(c, task) {
		c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// List godoc
// @Summary      Список задач
// @Description  Фильтры: assigned_to, assigned_director, assigned_employee, created_by, status (через запятую), level, limit
// @Tags         Tasks
// @Produce      json
// @Param        status  query     string  false  "Статусы через запятую"
// @Param        level   query     string  false  "none|director|admin"
// @Param        limit   query     int     false  "Лимит"
// @Success      200     {array}   models.Task
// @Failure      400     {object}  errorResponse
// @Security     BearerAuth
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	userID, roleID := getUserAndRole(c)

	var filter models.TaskFilter
	for key, dst := range map[string]**int64{
		"assigned_to":       &filter.AssignedTo,
		"assigned_director": &filter.AssignedDirector,
		"assigned_employee": &filter.AssignedEmployee,
		"created_by":        &filter.CreatedBy,
	} {
		v, ok := c.GetQuery(key)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "bad " + key, Code: "invalid_input"})
			return
		}
		*dst = &id
	}
	if v := c.Query("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			st := models.TaskStatus(strings.TrimSpace(s))
			if !st.Valid() {
				c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown status " + string(st), Code: "invalid_input"})
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	if v := c.Query("level"); v != "" {
		lvl := models.ApprovalLevel(v)
		if !lvl.Valid() {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown level " + v, Code: "invalid_input"})
			return
		}
		filter.ApprovalLevel = &lvl
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "bad limit", Code: "invalid_input"})
			return
		}
		filter.Limit = n
	}

	// сотрудник видит только свои задачи
	if roleID == authz.RoleEmployee {
		uid := int64(userID)
		filter.AssignedEmployee = &uid
	}

	tasks, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	h.log.WithFields(logrus.Fields{"user_id": userID, "count": len(tasks)}).Debug("[task][list][ok]")
	c.JSON(http.StatusOK, tasks)
}

// AssignDirector godoc
// @Summary      Назначить директора
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        id    path      int            true  "ID задачи"
// @Param        body  body      assignRequest  true  "Директор"
// @Success      200   {object}  models.Task
// @Failure      409   {object}  errorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/assign-director [post]
func (h *TaskHandler) AssignDirector(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if roleID != authz.RoleAdmin {
		h.log.WithFields(logrus.Fields{"user_id": userID, "task_id": id}).Warn("[task][assign-director][deny]")
		c.JSON(http.StatusForbidden, errorResponse{Error: "only admin can assign directors"})
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}
	task, err := h.service.AssignToDirector(c.Request.Context(), id, req.UserID)
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// AssignEmployee godoc
// @Summary      Назначить сотрудника
// @Description  Доступно администратору и назначенному директору
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        id    path      int            true  "ID задачи"
// @Param        body  body      assignRequest  true  "Сотрудник"
// @Success      200   {object}  models.Task
// @Failure      409   {object}  errorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/assign-employee [post]
func (h *TaskHandler) AssignEmployee(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}
	if roleID != authz.RoleAdmin {
		current, err := h.service.GetByID(c.Request.Context(), id)
		if err != nil {
			writeWorkflowError(c, h.log, err)
			return
		}
		if !authz.CanAssign(roleID) || current.AssignedDirector != int64(userID) {
			h.log.WithFields(logrus.Fields{"user_id": userID, "task_id": id}).Warn("[task][assign-employee][deny]")
			c.JSON(http.StatusForbidden, errorResponse{Error: "only admin or the assigned director can assign employees"})
			return
		}
	}
	task, err := h.service.AssignToEmployee(c.Request.Context(), id, req.UserID)
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Complete godoc
// @Summary      Отметить выполнение
// @Description  Сотрудник сообщает о выполнении, задача уходит на согласование директору
// @Tags         Tasks
// @Produce      json
// @Param        id   path      int  true  "ID задачи"
// @Success      200  {object}  models.Task
// @Failure      409  {object}  errorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/complete [post]
func (h *TaskHandler) Complete(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if roleID != authz.RoleAdmin {
		current, err := h.service.GetByID(c.Request.Context(), id)
		if err != nil {
			writeWorkflowError(c, h.log, err)
			return
		}
		if current.AssignedEmployee != int64(userID) {
			h.log.WithFields(logrus.Fields{"user_id": userID, "task_id": id}).Warn("[task][complete][deny]")
			c.JSON(http.StatusForbidden, errorResponse{Error: "task is not assigned to you"})
			return
		}
	}
	task, err := h.service.MarkCompletedByEmployee(c.Request.Context(), id)
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DirectorDecision godoc
// @Summary      Решение директора
// @Tags         Approvals
// @Accept       json
// @Produce      json
// @Param        id    path      int              true  "ID задачи"
// @Param        body  body      decisionRequest  true  "Решение"
// @Success      200   {object}  models.Task
// @Failure      409   {object}  errorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/director-approval [post]
func (h *TaskHandler) DirectorDecision(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}
	if roleID != authz.RoleAdmin {
		current, err := h.service.GetByID(c.Request.Context(), id)
		if err != nil {
			writeWorkflowError(c, h.log, err)
			return
		}
		if roleID != authz.RoleDirector || current.AssignedDirector != int64(userID) {
			h.log.WithFields(logrus.Fields{"user_id": userID, "task_id": id}).Warn("[task][director-approval][deny]")
			c.JSON(http.StatusForbidden, errorResponse{Error: "only the assigned director can decide"})
			return
		}
	}
	task, err := h.service.ApproveByDirector(c.Request.Context(), id, *req.Approved, req.Reason)
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// AdminDecision godoc
// @Summary      Решение администратора
// @Tags         Approvals
// @Accept       json
// @Produce      json
// @Param        id    path      int              true  "ID задачи"
// @Param        body  body      decisionRequest  true  "Решение"
// @Success      200   {object}  models.Task
// @Failure      409   {object}  errorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/admin-approval [post]
func (h *TaskHandler) AdminDecision(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}
	task, err := h.service.ApproveByAdmin(c.Request.Context(), id, *req.Approved, req.Reason)
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// ApprovalChain godoc
// @Summary      Цепочка согласований
// @Tags         Approvals
// @Produce      json
// @Param        id   path      int  true  "ID задачи"
// @Success      200  {array}   models.ApprovalEntry
// @Failure      404  {object}  errorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/approval-chain [get]
func (h *TaskHandler) ApprovalChain(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	task, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	if !h.canView(c, task) {
		c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}
	chain := task.ApprovalChain
	if chain == nil {
		chain = []models.ApprovalEntry{}
	}
	c.JSON(http.StatusOK, chain)
}

// Report godoc
// @Summary      PDF-отчёт по согласованию
// @Tags         Approvals
// @Produce      application/pdf
// @Param        id   path  int  true  "ID задачи"
// @Success      200  {file}  file
// @Failure      404  {object}  errorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/report [get]
func (h *TaskHandler) Report(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	task, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeWorkflowError(c, h.log, err)
		return
	}
	if !h.canView(c, task) {
		c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}
	var buf bytes.Buffer
	if err := h.reports.ApprovalReport(&buf, task); err != nil {
		h.log.WithError(err).WithField("task_id", id).Error("[task][report][err]")
		if errors.Is(err, pdf.ErrUnicodeFontRequired) {
			c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: "report_font_missing"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to render report"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="task-%d-approval.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *TaskHandler) canView(c *gin.Context, t *models.Task) bool {
	userID, roleID := getUserAndRole(c)
	if roleID != authz.RoleEmployee {
		return true
	}
	return t.AssignedEmployee == int64(userID)
}
