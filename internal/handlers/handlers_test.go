package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"constructflow/internal/authz"
	"constructflow/internal/handlers"
	"constructflow/internal/pdf"
	"constructflow/internal/repositories"
	"constructflow/internal/routes"
	"constructflow/internal/services"
	"constructflow/internal/utils"
)

var jwtSecret = []byte("handlers-test-secret")

const (
	adminID    = 1
	directorID = 2
	employeeID = 5
)

type testEnv struct {
	router   *gin.Engine
	workflow services.WorkflowService
	users    *repositories.MemoryUserRepository
	links    *repositories.MemoryTelegramLinkRepository
	sender   *fakeSender
	tg       *fakeMessenger
}

func quietLog() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		users:  repositories.NewMemoryUserRepository(),
		links:  repositories.NewMemoryTelegramLinkRepository(),
		sender: &fakeSender{},
		tg:     &fakeMessenger{},
	}
	env.workflow = services.NewWorkflowService(repositories.NewMemoryTaskRepository(), nil, quietLog())

	log := quietLog()
	env.router = routes.SetupRoutes(gin.New(), jwtSecret,
		handlers.NewTaskHandler(env.workflow, pdf.NewApprovalReportGenerator(""), log),
		handlers.NewNotificationHandler(env.sender, log),
		handlers.NewIntegrationsHandler(env.tg, env.links, env.users, env.workflow, "hook-secret", log),
	)
	return env
}

func bearerFor(t *testing.T, userID, roleID int) string {
	t.Helper()
	tok, err := utils.IssueAccessToken(jwtSecret, userID, roleID, time.Hour)
	require.NoError(t, err)
	return tok
}

type requester func(method, path string, body interface{}) *httptest.ResponseRecorder

func (e *testEnv) as(t *testing.T, userID, roleID int) requester {
	tok := bearerFor(t, userID, roleID)
	return func(method, path string, body interface{}) *httptest.ResponseRecorder {
		return doRequest(t, e.router, method, path, tok, body, nil)
	}
}

func doRequest(t *testing.T, r http.Handler, method, path, token string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// createTask posts a task as admin and returns its id.
func (e *testEnv) createTask(t *testing.T, title string) int64 {
	t.Helper()
	w := e.as(t, adminID, authz.RoleAdmin)(http.MethodPost, "/tasks", gin.H{"title": title})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &out)
	return out.ID
}
