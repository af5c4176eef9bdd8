package postgresql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
	"github.com/dukex/agentgraph/pkg/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newMock returns a migrated persistence backed by sqlmock.
func newMock(t *testing.T) (*Persistence, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(len(migrations())))

	p, err := NewPersistenceWithDB(context.Background(), testLogger(), db)
	require.NoError(t, err)

	return p, mock
}

func TestNewPersistenceWithDB_AppliesMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE workflows").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE executions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err = NewPersistenceWithDB(context.Background(), testLogger(), db)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepository_Save(t *testing.T) {
	p, mock := newMock(t)
	def := persistencetest.Workflow("wf-1", persistencetest.Epoch)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO workflows").
		WithArgs("wf-1", def.Name, def.Description, def.CreatedAt, def.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM workflow_edges WHERE workflow_id = \$1`).WithArgs("wf-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM workflow_nodes WHERE workflow_id = \$1`).WithArgs("wf-1").WillReturnResult(sqlmock.NewResult(0, 0))

	for i, node := range def.Nodes {
		mock.ExpectExec("INSERT INTO workflow_nodes").
			WithArgs("wf-1", node.ID, i, node.Kind, node.Name, node.Position.X, node.Position.Y, sqlmock.AnyArg(), node.Status, node.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	mock.ExpectExec("INSERT INTO workflow_edges").
		WithArgs("wf-1", "edge-1", 0, "agent-1", "agent-2", models.EdgeKindA2A, "", sqlmock.AnyArg(), false, models.EdgeStatusSuccess).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, p.SaveWorkflow(context.Background(), def))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepository_SaveRollsBack(t *testing.T) {
	p, mock := newMock(t)
	def := persistencetest.Workflow("wf-1", persistencetest.Epoch)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO workflows").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM workflow_edges").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM workflow_nodes").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO workflow_nodes").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := p.SaveWorkflow(context.Background(), def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save node agent-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepository_SaveRejectsMissingID(t *testing.T) {
	p, _ := newMock(t)

	err := p.SaveWorkflow(context.Background(), &models.WorkflowDefinition{Name: "nameless"})
	assert.ErrorIs(t, err, persistence.ErrInvalidRecord)
}

func TestWorkflowRepository_GetByID(t *testing.T) {
	p, mock := newMock(t)
	created := persistencetest.Epoch

	mock.ExpectQuery(`FROM workflows\s+WHERE id = \$1`).WithArgs("wf-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
			AddRow("wf-1", "Support", "desc", created, created))
	mock.ExpectQuery("FROM workflow_nodes").WithArgs("wf-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "name", "position_x", "position_y", "payload", "status", "created_at"}).
			AddRow("agent-1", "agent", "Triage", 1.5, 2.5, []byte(`{"agent":{"agent_id":"triage","name":"Triage"}}`), "completed", created))
	mock.ExpectQuery("FROM workflow_edges").WithArgs("wf-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "source_node_id", "target_node_id", "kind", "label", "connector", "animated", "status"}).
			AddRow("edge-1", "agent-1", "agent-1", "a2a", "", []byte(`{"timeout_units":5,"retry_count":1}`), false, "idle").
			AddRow("edge-2", "agent-1", "agent-1", "data", "next", nil, true, "active"))

	def, err := p.WorkflowByID(context.Background(), "wf-1")
	require.NoError(t, err)

	assert.Equal(t, "Support", def.Name)
	require.Len(t, def.Nodes, 1)
	assert.Equal(t, models.NodeKindAgent, def.Nodes[0].Kind)
	assert.Equal(t, models.Position{X: 1.5, Y: 2.5}, def.Nodes[0].Position)
	assert.Equal(t, "triage", def.Nodes[0].Payload.Agent.AgentID)
	assert.Equal(t, models.NodeStatusCompleted, def.Nodes[0].Status)

	require.Len(t, def.Edges, 2)
	require.NotNil(t, def.Edges[0].Connector)
	assert.Equal(t, 5, def.Edges[0].Connector.TimeoutUnits)
	assert.Equal(t, 1, *def.Edges[0].Connector.RetryCount)
	assert.Nil(t, def.Edges[1].Connector)
	assert.True(t, def.Edges[1].Animated)
	assert.Equal(t, "next", def.Edges[1].Label)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepository_GetByIDNotFound(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery("FROM workflows").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := p.WorkflowByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_DeleteWorkflow(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM executions WHERE workflow_id = \$1`).WithArgs("wf-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM workflows WHERE id = \$1`).WithArgs("wf-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, p.DeleteWorkflow(context.Background(), "wf-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// jsonContaining matches a marshalled record containing the given fragment.
type jsonContaining string

func (j jsonContaining) Match(v driver.Value) bool {
	raw, ok := v.([]byte)

	return ok && strings.Contains(string(raw), string(j))
}

func TestExecutionRepository_Save(t *testing.T) {
	p, mock := newMock(t)
	rec := persistencetest.Execution("wf-1", "exec-1", persistencetest.Epoch)
	rec.Status = models.ExecutionStatusError
	rec.FailedNodeID = "agent-2"

	mock.ExpectExec("INSERT INTO executions").
		WithArgs("exec-1", "wf-1", models.ExecutionStatusError, rec.StartedAt, *rec.FinishedAt,
			sql.NullString{String: "agent-2", Valid: true}, false, jsonContaining(`"id":"exec-1"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.SaveExecution(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionRepository_Get(t *testing.T) {
	p, mock := newMock(t)

	first := []byte(`{"id":"exec-1","workflow_id":"wf-1","status":"completed","execution_path":["a"],"results":[]}`)
	second := []byte(`{"id":"exec-2","workflow_id":"wf-1","status":"error","cancelled":true,"execution_path":["a"],"results":[]}`)

	mock.ExpectQuery(`SELECT record\s+FROM executions\s+WHERE workflow_id = \$1`).WithArgs("wf-1").
		WillReturnRows(sqlmock.NewRows([]string{"record"}).AddRow(first).AddRow(second))

	list, err := p.ExecutionsByWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "exec-1", list[0].ID)
	assert.True(t, list[1].Cancelled)

	mock.ExpectQuery(`WHERE workflow_id = \$1 AND id = \$2`).WithArgs("wf-1", "exec-3").WillReturnError(sql.ErrNoRows)

	_, err = p.ExecutionByID(context.Background(), "wf-1", "exec-3")
	assert.True(t, persistence.IsExecutionNotFound(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistence_HealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	p, err := NewPersistenceWithDB(context.Background(), testLogger(), db)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = p.HealthCheck(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
