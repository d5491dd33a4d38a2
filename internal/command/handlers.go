package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcsmops/panelbot/internal/audit"
	"github.com/mcsmops/panelbot/internal/authz"
	"github.com/mcsmops/panelbot/internal/batch"
	"github.com/mcsmops/panelbot/internal/mcsm"
	"github.com/mcsmops/panelbot/internal/registry"
)

const (
	// Character ceilings for chat replies carrying console output.
	cmdOutputLimit = 500
	logOutputLimit = 3000
)

// PanelAPI is the slice of the panel client the handlers use.
type PanelAPI interface {
	Overview(ctx context.Context) (*mcsm.Overview, error)
	StartInstance(ctx context.Context, daemonID, instanceUUID string) error
	StopInstance(ctx context.Context, daemonID, instanceUUID string) error
	SendCommand(ctx context.Context, daemonID, instanceUUID, command string) error
	OutputLog(ctx context.Context, daemonID, instanceUUID string) (string, error)
}

// Service wires the command handlers to their collaborators.
type Service struct {
	panel     PanelAPI
	directory *registry.Directory
	cooldowns *registry.CooldownTracker
	batches   *batch.Orchestrator
	authz     *authz.Store
	audit     *audit.Log

	logSize        int
	cmdOutputDelay time.Duration // wait between command dispatch and log fetch
}

func NewService(panel PanelAPI, directory *registry.Directory, cooldowns *registry.CooldownTracker,
	batches *batch.Orchestrator, authzStore *authz.Store, auditLog *audit.Log, logSize int) *Service {
	return &Service{
		panel:          panel,
		directory:      directory,
		cooldowns:      cooldowns,
		batches:        batches,
		authz:          authzStore,
		audit:          auditLog,
		logSize:        logSize,
		cmdOutputDelay: time.Second,
	}
}

func (s *Service) Status(ctx context.Context, req Request, rest string, emit Emitter) {
	ov, err := s.panel.Overview(ctx)
	if err != nil {
		emit(fmt.Sprintf("❌ Could not fetch panel status: %v", err))
		return
	}
	emit(statusReport(ov))
}

func (s *Service) List(ctx context.Context, req Request, rest string, emit Emitter) {
	emit("Fetching nodes and instances, one moment...")
	if err := s.directory.Refresh(ctx); err != nil {
		emit(fmt.Sprintf("⚠️ Directory refresh failed: %v", err))
		return
	}
	emit(listReport(s.directory.Nodes(), s.directory.Records()))
}

func (s *Service) Start(ctx context.Context, req Request, rest string, emit Emitter) {
	s.startStop(ctx, req, rest, batch.OpStart, emit)
}

func (s *Service) Stop(ctx context.Context, req Request, rest string, emit Emitter) {
	s.startStop(ctx, req, rest, batch.OpStop, emit)
}

func (s *Service) startStop(ctx context.Context, req Request, rest string, op batch.Operation, emit Emitter) {
	ids := strings.Fields(rest)
	switch len(ids) {
	case 0:
		emit(fmt.Sprintf("Usage: %s <index|uuid|name> [more ids...]", op))
	case 1:
		s.single(ctx, req, ids[0], op, emit)
	default:
		report, err := s.batches.Run(ctx, ids, op, emit)
		if err != nil {
			emit(renderBatchError(err))
			return
		}
		for _, item := range report.Items {
			s.auditItem(req.UserID, string(op), item)
		}
		emit(report.Summary())
	}
}

func (s *Service) single(ctx context.Context, req Request, id string, op batch.Operation, emit Emitter) {
	rec, err := s.directory.Resolve(id)
	if err != nil {
		emit(renderResolveError(id, err))
		return
	}

	if s.cooldowns.IsCoolingDown(rec.UUID) {
		emit(fmt.Sprintf("⏳ %s acted recently, wait a few seconds and retry.", rec.Name))
		return
	}

	var dispatchErr error
	if op == batch.OpStop {
		dispatchErr = s.panel.StopInstance(ctx, rec.NodeID, rec.UUID)
	} else {
		dispatchErr = s.panel.StartInstance(ctx, rec.NodeID, rec.UUID)
	}
	if dispatchErr != nil {
		s.audit.Append(audit.Entry{
			Actor: req.UserID, Operation: string(op), InstanceUUID: rec.UUID,
			InstanceName: rec.Name, DaemonID: rec.NodeID, Outcome: "failed", Detail: dispatchErr.Error(),
		})
		emit(fmt.Sprintf("❌ %s %s failed: %v", op, rec.Name, dispatchErr))
		return
	}

	s.cooldowns.MarkActed(rec.UUID)
	s.audit.Append(audit.Entry{
		Actor: req.UserID, Operation: string(op), InstanceUUID: rec.UUID,
		InstanceName: rec.Name, DaemonID: rec.NodeID, Outcome: "success",
	})
	emit(fmt.Sprintf("✅ %s command sent to %s", op, rec.Name))
}

func (s *Service) auditItem(actor, op string, item batch.ItemOutcome) {
	outcome := "success"
	switch item.State {
	case batch.StateFailed:
		outcome = "failed"
	case batch.StateSkippedCooldown:
		outcome = "skipped"
	}
	s.audit.Append(audit.Entry{
		Actor: actor, Operation: op, InstanceUUID: item.Record.UUID,
		InstanceName: item.Record.Name, DaemonID: item.Record.NodeID,
		Outcome: outcome, Detail: item.Detail,
	})
}

func (s *Service) Cmd(ctx context.Context, req Request, rest string, emit Emitter) {
	id, commandText, _ := strings.Cut(rest, " ")
	commandText = strings.TrimSpace(commandText)
	if id == "" || commandText == "" {
		emit("Usage: cmd <index|uuid|name> <console command>")
		return
	}

	rec, err := s.directory.Resolve(id)
	if err != nil {
		emit(renderResolveError(id, err))
		return
	}

	if err := s.panel.SendCommand(ctx, rec.NodeID, rec.UUID, commandText); err != nil {
		emit(fmt.Sprintf("❌ Command dispatch to %s failed: %v", rec.Name, err))
		return
	}

	// Give the instance a moment to produce output before fetching the log.
	if s.cmdOutputDelay > 0 {
		select {
		case <-time.After(s.cmdOutputDelay):
		case <-ctx.Done():
		}
	}

	output, err := s.panel.OutputLog(ctx, rec.NodeID, rec.UUID)
	if err != nil {
		emit(fmt.Sprintf("✅ Command sent to %s (output unavailable: %v)", rec.Name, err))
		return
	}
	if strings.TrimSpace(output) == "" {
		output = "no recent output"
	}
	emit(fmt.Sprintf("✅ Command sent to %s\n📝 Recent output:\n%s", rec.Name, tailTruncate(output, cmdOutputLimit)))
}

func (s *Service) Log(ctx context.Context, req Request, rest string, emit Emitter) {
	id := strings.TrimSpace(rest)
	if id == "" {
		emit("Usage: log <index|uuid|name>")
		return
	}

	rec, err := s.directory.Resolve(id)
	if err != nil {
		emit(renderResolveError(id, err))
		return
	}

	output, err := s.panel.OutputLog(ctx, rec.NodeID, rec.UUID)
	if err != nil {
		emit(fmt.Sprintf("❌ Could not fetch log for %s: %v", rec.Name, err))
		return
	}
	if strings.TrimSpace(output) == "" {
		emit(fmt.Sprintf("📝 %s has no recent output.", rec.Name))
		return
	}
	text := lastLines(output, s.logSize)
	emit(fmt.Sprintf("📝 Last %d lines of %s:\n%s", s.logSize, rec.Name, tailTruncate(text, logOutputLimit)))
}

func (s *Service) Op(ctx context.Context, req Request, rest string, emit Emitter) {
	userID := ExtractUserID(rest)
	if userID == "" {
		emit("Usage: op <user id or at-mention>")
		return
	}
	granted, err := s.authz.Grant(userID, req.UserID)
	if err != nil {
		emit(fmt.Sprintf("❌ Grant failed: %v", err))
		return
	}
	if !granted {
		emit(fmt.Sprintf("User %s is already an operator.", userID))
		return
	}
	emit(fmt.Sprintf("✅ User %s is now an operator.", userID))
}

func (s *Service) Deop(ctx context.Context, req Request, rest string, emit Emitter) {
	userID := ExtractUserID(rest)
	if userID == "" {
		emit("Usage: deop <user id or at-mention>")
		return
	}
	revoked, err := s.authz.Revoke(userID)
	if err != nil {
		emit(fmt.Sprintf("❌ Revoke failed: %v", err))
		return
	}
	if !revoked {
		emit(fmt.Sprintf("User %s was not an operator.", userID))
		return
	}
	emit(fmt.Sprintf("✅ Operator rights revoked for user %s.", userID))
}

func renderResolveError(id string, err error) string {
	switch {
	case errors.Is(err, registry.ErrAmbiguousName):
		return fmt.Sprintf("⚠️ Several instances are named %q. Use the index or UUID from list instead.", id)
	case errors.Is(err, registry.ErrNotFound):
		return fmt.Sprintf("❌ No instance matches %q. Run list to refresh the directory.", id)
	default:
		return fmt.Sprintf("❌ Could not resolve %q: %v", id, err)
	}
}

func renderBatchError(err error) string {
	var noneResolved *batch.NoneResolvedError
	switch {
	case errors.Is(err, batch.ErrMixedIdentifiers):
		return "❌ Mixed identifier types: use only indexes, only UUIDs, or only names in one batch."
	case errors.As(err, &noneResolved):
		return fmt.Sprintf("❌ None of the identifiers resolved: %s. Run list to refresh the directory.",
			strings.Join(noneResolved.Unresolved, ", "))
	default:
		return fmt.Sprintf("❌ Batch failed: %v", err)
	}
}
