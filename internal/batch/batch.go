// Package batch drives multi-instance start/stop workflows: homogeneous
// identifier validation, independent resolution, and a paced sequential
// dispatch loop with per-item cooldown checks and partial-failure aggregation.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcsmops/panelbot/internal/registry"
)

// Operation is a batch-capable instance action.
type Operation string

const (
	OpStart Operation = "start"
	OpStop  Operation = "stop"
)

// ErrMixedIdentifiers means the identifiers did not all classify to the same
// kind; the batch fails before any resolution or dispatch.
var ErrMixedIdentifiers = errors.New("identifiers mix numbers, UUIDs, and names")

// NoneResolvedError means every identifier failed resolution.
type NoneResolvedError struct {
	Unresolved []string
}

func (e *NoneResolvedError) Error() string {
	return fmt.Sprintf("none of %d identifiers resolved", len(e.Unresolved))
}

// Resolver maps an identifier to a directory record.
type Resolver interface {
	Resolve(identifier string) (registry.Record, error)
}

// Cooldowns gates repeat actions on the same instance.
type Cooldowns interface {
	IsCoolingDown(instanceID string) bool
	MarkActed(instanceID string)
}

// Dispatcher performs the underlying panel calls.
type Dispatcher interface {
	StartInstance(ctx context.Context, daemonID, instanceUUID string) error
	StopInstance(ctx context.Context, daemonID, instanceUUID string) error
}

// ItemState is the terminal state of one batch item.
type ItemState int

const (
	StatePending ItemState = iota
	StateSkippedCooldown
	StateSuccess
	StateFailed
)

// ItemOutcome is the result of one resolved identifier.
type ItemOutcome struct {
	Identifier string
	Record     registry.Record
	State      ItemState
	Detail     string // failure or skip detail, empty on success
}

// Report aggregates a finished batch. Cooldown skips count as failures.
type Report struct {
	Operation  Operation
	Succeeded  int
	Failed     int
	Items      []ItemOutcome
	Unresolved []string
}

// Orchestrator runs batches against the panel. Dispatch is strictly
// sequential in input order, with a pacing pause between items to avoid
// hammering the panel.
type Orchestrator struct {
	resolver   Resolver
	cooldowns  Cooldowns
	dispatcher Dispatcher
	pause      time.Duration
}

func New(resolver Resolver, cooldowns Cooldowns, dispatcher Dispatcher, pause time.Duration) *Orchestrator {
	return &Orchestrator{
		resolver:   resolver,
		cooldowns:  cooldowns,
		dispatcher: dispatcher,
		pause:      pause,
	}
}

// Run executes a batch. Progress lines go through emit as each item settles;
// lines already emitted are final. Cancellation mid-batch is not supported:
// once dispatching begins the batch runs to completion, with only the
// per-request timeout bounding each panel call.
func (o *Orchestrator) Run(ctx context.Context, identifiers []string, op Operation, emit func(string)) (*Report, error) {
	ids := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		return nil, fmt.Errorf("batch requires at least two identifiers, got %d", len(ids))
	}

	kind := registry.Classify(ids[0])
	for _, id := range ids[1:] {
		if registry.Classify(id) != kind {
			return nil, ErrMixedIdentifiers
		}
	}

	report := &Report{Operation: op}
	for _, id := range ids {
		rec, err := o.resolver.Resolve(id)
		if err != nil {
			report.Unresolved = append(report.Unresolved, id)
			continue
		}
		report.Items = append(report.Items, ItemOutcome{Identifier: id, Record: rec})
	}
	if len(report.Items) == 0 {
		return nil, &NoneResolvedError{Unresolved: report.Unresolved}
	}

	emit(fmt.Sprintf("Batch %s: %d instance(s) queued, dispatching every %s.",
		op, len(report.Items), o.pause))
	o.pauseFor(ctx)

	for i := range report.Items {
		item := &report.Items[i]

		if o.cooldowns.IsCoolingDown(item.Record.UUID) {
			item.State = StateSkippedCooldown
			item.Detail = "cooling down, skipped"
			report.Failed++
			emit(fmt.Sprintf("⏳ %s: cooling down, skipped", item.Record.Name))
		} else if err := o.dispatch(ctx, op, item.Record); err != nil {
			item.State = StateFailed
			item.Detail = err.Error()
			report.Failed++
			emit(fmt.Sprintf("❌ %s: %v", item.Record.Name, err))
		} else {
			o.cooldowns.MarkActed(item.Record.UUID)
			item.State = StateSuccess
			report.Succeeded++
			emit(fmt.Sprintf("✅ %s: %s command sent", item.Record.Name, op))
		}

		if i < len(report.Items)-1 {
			o.pauseFor(ctx)
		}
	}

	log.Info().Str("operation", string(op)).Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).Int("unresolved", len(report.Unresolved)).
		Msg("batch finished")
	return report, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, op Operation, rec registry.Record) error {
	switch op {
	case OpStop:
		return o.dispatcher.StopInstance(ctx, rec.NodeID, rec.UUID)
	default:
		return o.dispatcher.StartInstance(ctx, rec.NodeID, rec.UUID)
	}
}

func (o *Orchestrator) pauseFor(ctx context.Context) {
	if o.pause <= 0 {
		return
	}
	timer := time.NewTimer(o.pause)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Summary renders the final report lines.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch %s finished: %d succeeded, %d failed.", r.Operation, r.Succeeded, r.Failed)
	for _, item := range r.Items {
		if item.State == StateSuccess {
			continue
		}
		fmt.Fprintf(&b, "\n- %s: %s", item.Record.Name, item.Detail)
	}
	if len(r.Unresolved) > 0 {
		fmt.Fprintf(&b, "\nUnresolved: %s", strings.Join(r.Unresolved, ", "))
	}
	return b.String()
}
