package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcsmops/panelbot/internal/audit"
	"github.com/mcsmops/panelbot/internal/authz"
	"github.com/mcsmops/panelbot/internal/batch"
	"github.com/mcsmops/panelbot/internal/db"
	"github.com/mcsmops/panelbot/internal/mcsm"
	"github.com/mcsmops/panelbot/internal/registry"
)

const (
	adminUser = "1000"

	uuidAlpha = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa01"
	uuidBravo = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbb02"
	uuidEcho1 = "cccccccccccccccccccccccccccccc03"
	uuidEcho2 = "dddddddddddddddddddddddddddddd04"
)

// fakePanel backs both the directory refresh and the action handlers.
type fakePanel struct {
	logText  string
	logErr   error
	started  []string
	stopped  []string
	commands []string
	startErr map[string]error
}

func (f *fakePanel) Overview(ctx context.Context) (*mcsm.Overview, error) {
	return &mcsm.Overview{
		Version: "10.2.1",
		Remote:  []mcsm.Node{{UUID: "node-1", Remarks: "Main", Available: true}},
	}, nil
}

func (f *fakePanel) Instances(ctx context.Context, daemonID string, page, pageSize int) ([]mcsm.Instance, error) {
	if page > 1 {
		return nil, nil
	}
	return []mcsm.Instance{
		testInstance(uuidAlpha, "Alpha", mcsm.StatusRunning),
		testInstance(uuidBravo, "Bravo", mcsm.StatusStopped),
		testInstance(uuidEcho1, "Echo", mcsm.StatusRunning),
		testInstance(uuidEcho2, "Echo", mcsm.StatusStopped),
	}, nil
}

func (f *fakePanel) StartInstance(ctx context.Context, daemonID, instanceUUID string) error {
	f.started = append(f.started, instanceUUID)
	return f.startErr[instanceUUID]
}

func (f *fakePanel) StopInstance(ctx context.Context, daemonID, instanceUUID string) error {
	f.stopped = append(f.stopped, instanceUUID)
	return nil
}

func (f *fakePanel) SendCommand(ctx context.Context, daemonID, instanceUUID, command string) error {
	f.commands = append(f.commands, command)
	return nil
}

func (f *fakePanel) OutputLog(ctx context.Context, daemonID, instanceUUID string) (string, error) {
	return f.logText, f.logErr
}

func testInstance(uuid, name string, status int) mcsm.Instance {
	st := mcsm.FlexInt(status)
	return mcsm.Instance{
		InstanceUUID: uuid,
		Status:       &st,
		Config:       mcsm.InstanceConfig{Nickname: name},
	}
}

func newTestRouter(t *testing.T) (*Router, *fakePanel, *sql.DB) {
	t.Helper()

	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))

	panel := &fakePanel{startErr: map[string]error{}}
	directory := registry.New(panel, nil, nil)
	require.NoError(t, directory.Refresh(context.Background()))

	cooldowns := registry.NewCooldownTracker()
	batches := batch.New(directory, cooldowns, panel, 0)
	authzStore := authz.NewStore(database, []string{adminUser}, nil)
	auditLog := audit.NewLog(database)

	svc := NewService(panel, directory, cooldowns, batches, authzStore, auditLog, 50)
	svc.cmdOutputDelay = 0
	return NewRouter(svc), panel, database
}

func dispatch(t *testing.T, r *Router, userID, text string) (bool, []string) {
	t.Helper()
	var lines []string
	handled := r.Dispatch(context.Background(), Request{UserID: userID, Text: text},
		func(line string) { lines = append(lines, line) })
	return handled, lines
}

func TestDispatchIgnoresUnknownText(t *testing.T) {
	r, _, _ := newTestRouter(t)

	handled, lines := dispatch(t, r, adminUser, "good morning everyone")
	assert.False(t, handled)
	assert.Empty(t, lines)

	handled, _ = dispatch(t, r, adminUser, "")
	assert.False(t, handled)
}

func TestDispatchStripsSlashPrefix(t *testing.T) {
	r, _, _ := newTestRouter(t)

	handled, lines := dispatch(t, r, adminUser, "/help")
	assert.True(t, handled)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "panelbot commands")
}

func TestDispatchDeniesUnauthorizedUser(t *testing.T) {
	r, panel, _ := newTestRouter(t)

	handled, lines := dispatch(t, r, "99999", "start 1")
	assert.True(t, handled)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "not authorized")
	assert.Empty(t, panel.started)
}

func TestAdminOnlyCommands(t *testing.T) {
	r, _, _ := newTestRouter(t)

	// op a user, then the granted user may run regular commands
	_, lines := dispatch(t, r, adminUser, "op [CQ:at,qq=2000]")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "now an operator")

	_, lines = dispatch(t, r, "2000", "help")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "panelbot commands")

	// but not admin-only ones
	_, lines = dispatch(t, r, "2000", "op 3000")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "restricted to administrators")

	// deop cuts the grant off again
	_, lines = dispatch(t, r, adminUser, "deop 2000")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "revoked")

	_, lines = dispatch(t, r, "2000", "help")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "not authorized")
}

func TestOpIsIdempotent(t *testing.T) {
	r, _, _ := newTestRouter(t)

	dispatch(t, r, adminUser, "op 2000")
	_, lines := dispatch(t, r, adminUser, "op 2000")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "already an operator")

	_, lines = dispatch(t, r, adminUser, "deop 7777")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "was not an operator")
}

func TestStartSingleInstance(t *testing.T) {
	r, panel, database := newTestRouter(t)

	_, lines := dispatch(t, r, adminUser, "start 1")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "✅ start command sent to Alpha")
	assert.Equal(t, []string{uuidAlpha}, panel.started)

	entries, err := audit.NewLog(database).Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "success", entries[0].Outcome)
	assert.Equal(t, "Alpha", entries[0].InstanceName)
	assert.Equal(t, adminUser, entries[0].Actor)
}

func TestStartRespectsCooldown(t *testing.T) {
	r, panel, _ := newTestRouter(t)

	dispatch(t, r, adminUser, "start 1")
	_, lines := dispatch(t, r, adminUser, "start 1")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "acted recently")
	assert.Equal(t, []string{uuidAlpha}, panel.started, "the second dispatch never reaches the panel")
}

func TestStartSingleFailureIsAudited(t *testing.T) {
	r, panel, database := newTestRouter(t)
	panel.startErr[uuidAlpha] = errors.New("daemon unreachable")

	_, lines := dispatch(t, r, adminUser, "start Alpha")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "failed")
	assert.Contains(t, lines[0], "daemon unreachable")

	entries, err := audit.NewLog(database).Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "failed", entries[0].Outcome)
}

func TestStopBatch(t *testing.T) {
	r, panel, database := newTestRouter(t)

	_, lines := dispatch(t, r, adminUser, "stop 1 2")
	assert.Equal(t, []string{uuidAlpha, uuidBravo}, panel.stopped)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1], "2 succeeded, 0 failed")

	entries, err := audit.NewLog(database).Recent(10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStartBatchMixedIdentifiers(t *testing.T) {
	r, panel, _ := newTestRouter(t)

	_, lines := dispatch(t, r, adminUser, "start 1 Alpha")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Mixed identifier types")
	assert.Empty(t, panel.started)
}

func TestStartUsageWithoutIdentifiers(t *testing.T) {
	r, _, _ := newTestRouter(t)

	_, lines := dispatch(t, r, adminUser, "start")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Usage: start")
}

func TestResolveErrorsAreExplained(t *testing.T) {
	r, _, _ := newTestRouter(t)

	_, lines := dispatch(t, r, adminUser, "start Nonexistent")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "No instance matches")
	assert.Contains(t, lines[0], "Run list to refresh")

	// Echo exists twice across the panel, so the name is not resolvable.
	_, lines = dispatch(t, r, adminUser, "log Echo")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Several instances are named")
}

func TestCmdSendsAndShowsOutput(t *testing.T) {
	r, panel, _ := newTestRouter(t)
	panel.logText = "[Server] hi\n"

	_, lines := dispatch(t, r, adminUser, "cmd 1 say hi")
	assert.Equal(t, []string{"say hi"}, panel.commands)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "✅ Command sent to Alpha")
	assert.Contains(t, lines[0], "[Server] hi")
}

func TestCmdSucceedsWhenLogUnavailable(t *testing.T) {
	r, panel, _ := newTestRouter(t)
	panel.logErr = errors.New("daemon busy")

	_, lines := dispatch(t, r, adminUser, "cmd 1 stop")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "✅ Command sent to Alpha")
	assert.Contains(t, lines[0], "output unavailable")
}

func TestLogTailsConfiguredLineCount(t *testing.T) {
	r, panel, _ := newTestRouter(t)

	var b strings.Builder
	for i := 1; i <= 80; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	panel.logText = b.String()

	_, lines := dispatch(t, r, adminUser, "log 1")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Last 50 lines of Alpha")
	assert.Contains(t, lines[0], "line 31")
	assert.Contains(t, lines[0], "line 80")
	assert.NotContains(t, lines[0], "line 30\n")
}

func TestListRendersDirectory(t *testing.T) {
	r, _, _ := newTestRouter(t)

	_, lines := dispatch(t, r, adminUser, "list")
	require.Len(t, lines, 2, "a progress line, then the report")
	assert.Contains(t, lines[0], "Fetching")
	assert.Contains(t, lines[1], "Node: Main")
	assert.Contains(t, lines[1], "[1] 🟢 running Alpha")
	assert.Contains(t, lines[1], "[2] 🔴 stopped Bravo")
}

func TestStatusReportsOverview(t *testing.T) {
	r, _, _ := newTestRouter(t)

	_, lines := dispatch(t, r, adminUser, "status")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "MCSM v10.2.1")
	assert.Contains(t, lines[0], "Node: Main")
}
