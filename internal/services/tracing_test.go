package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"constructflow/internal/tracing"
)

func TestOperationsAreTraced(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, tracing.InitWithExporter("constructflow-test", "test", exporter))

	ctx := context.Background()
	f := newFixture()
	task := f.create(t)
	_, err := f.svc.AssignToDirector(ctx, task.ID, directorID)
	require.NoError(t, err)
	_, err = f.svc.ApproveByAdmin(ctx, task.ID, true, "")
	require.Error(t, err)

	byName := map[string]tracetest.SpanStub{}
	for _, s := range exporter.GetSpans() {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "workflow.Create")
	require.Contains(t, byName, "workflow.assign-director")
	require.Contains(t, byName, "workflow.approve-admin")

	assert.Equal(t, codes.Ok, byName["workflow.assign-director"].Status.Code)
	assert.Equal(t, codes.Error, byName["workflow.approve-admin"].Status.Code)
	assert.NotEmpty(t, byName["workflow.approve-admin"].Events)
}
