package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"constructflow/internal/models"
)

func TestApprovalReport(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	dir := models.NewApprovalEntry(3, 2, models.RoleDirectorApprover, at)
	require.NoError(t, dir.Resolve(true, "", at.Add(time.Hour)))
	adm := models.NewApprovalEntry(3, 1, models.RoleAdminApprover, at.Add(time.Hour))
	require.NoError(t, adm.Resolve(false, "over budget", at.Add(2*time.Hour)))

	task := &models.Task{
		ID: 3, Title: "Pour foundation", Description: "Block C, grid 4-7",
		CreatedBy: 1, AssignedDirector: 2, AssignedEmployee: 5,
		Status: models.StatusRejected, CurrentApprovalLevel: models.LevelNone,
		ApprovalChain: []models.ApprovalEntry{dir, adm}, RejectionReason: "over budget",
		CreatedAt: at, UpdatedAt: at.Add(2 * time.Hour),
	}

	var buf bytes.Buffer
	require.NoError(t, NewApprovalReportGenerator("").ApprovalReport(&buf, task))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestApprovalReportEmptyChain(t *testing.T) {
	var buf bytes.Buffer
	task := &models.Task{ID: 1, Title: "Fresh", Status: models.StatusPending, CurrentApprovalLevel: models.LevelNone}
	require.NoError(t, NewApprovalReportGenerator("").ApprovalReport(&buf, task))
	assert.NotZero(t, buf.Len())

	assert.Error(t, NewApprovalReportGenerator("").ApprovalReport(&buf, nil))
}

func coreFontGenerator() *ApprovalReportGenerator {
	return &ApprovalReportGenerator{fontName: "Helvetica", now: time.Now}
}

func TestApprovalReportCyrillicNeedsFont(t *testing.T) {
	var buf bytes.Buffer
	task := &models.Task{ID: 7, Title: "Залить фундамент", Status: models.StatusPending, CurrentApprovalLevel: models.LevelNone}
	err := coreFontGenerator().ApprovalReport(&buf, task)
	assert.ErrorIs(t, err, ErrUnicodeFontRequired)
	assert.Zero(t, buf.Len())

	task.Title = "Café façade, 20 m²"
	require.NoError(t, coreFontGenerator().ApprovalReport(&buf, task))
}

func TestApprovalReportCyrillicWithSystemFont(t *testing.T) {
	g := NewApprovalReportGenerator("")
	if g.FontPath == "" {
		t.Skip("no DejaVuSans.ttf installed")
	}
	var buf bytes.Buffer
	task := &models.Task{ID: 7, Title: "Залить фундамент", Description: "Блок С", Status: models.StatusPending, CurrentApprovalLevel: models.LevelNone}
	require.NoError(t, g.ApprovalReport(&buf, task))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestApprovalReportMissingFontFile(t *testing.T) {
	var buf bytes.Buffer
	g := NewApprovalReportGenerator("/nonexistent/font.ttf")
	task := &models.Task{ID: 1, Title: "Fresh", Status: models.StatusPending, CurrentApprovalLevel: models.LevelNone}
	assert.Error(t, g.ApprovalReport(&buf, task))
}
