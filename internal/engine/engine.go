// Package engine sequences the gateway, producer, inventory, and transfer
// components into the five supported actions.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgops/drbase/internal/inventory"
	"github.com/pgops/drbase/internal/store"
)

// Gateway proves DR host connectivity before any remote-touching action.
type Gateway interface {
	CheckConnectivity(ctx context.Context) error
}

// Inventory lists, describes, and expires DR-side snapshots.
type Inventory interface {
	Describe(ctx context.Context) ([]inventory.Snapshot, error)
	Expire(ctx context.Context, keep int) (*inventory.ExpireReport, error)
}

// Producer pulls a fresh snapshot into staging.
type Producer interface {
	Pull(ctx context.Context) error
}

// Pusher transfers the staged snapshot to the DR host, reporting the number
// of sync attempts used.
type Pusher interface {
	SnapshotName() (string, error)
	Push(ctx context.Context) (int, error)
}

// Recorder persists run history. May be absent.
type Recorder interface {
	CreateRun(run *store.RunRecord) error
	UpdateRun(run *store.RunRecord) error
	RecentRuns(instance string, limit int) ([]store.RunRecord, error)
}

// Engine orchestrates one action per invocation.
type Engine struct {
	gateway   Gateway
	inventory Inventory
	producer  Producer
	pusher    Pusher
	recorder  Recorder
	instance  string
	keep      int
	logger    *slog.Logger
}

// New creates an Engine. recorder may be nil, in which case no history is
// kept.
func New(gw Gateway, inv Inventory, prod Producer, push Pusher, rec Recorder, instance string, keep int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		gateway:   gw,
		inventory: inv,
		producer:  prod,
		pusher:    push,
		recorder:  rec,
		instance:  instance,
		keep:      keep,
		logger:    logger,
	}
}

// Info lists and describes the DR-side snapshots. It never mutates anything
// and needs no explicit connectivity gate: the listing itself is the probe.
func (e *Engine) Info(ctx context.Context) ([]inventory.Snapshot, error) {
	return e.inventory.Describe(ctx)
}

// Expire applies the retention policy to the DR-side snapshot set.
func (e *Engine) Expire(ctx context.Context) (*inventory.ExpireReport, error) {
	run := e.startRun("expire")

	report, err := e.inventory.Expire(ctx, e.keep)
	e.finishRun(run, err)
	return report, err
}

// Backup runs the full pipeline: connectivity check, local pull, remote
// expiry, then transfer. Expiry runs before the transfer so the fresh
// snapshot is never a deletion candidate and DR disk usage is bounded before
// the push begins.
func (e *Engine) Backup(ctx context.Context) error {
	run := e.startRun("backup")
	err := e.backup(ctx, run)
	e.finishRun(run, err)
	return err
}

func (e *Engine) backup(ctx context.Context, run *store.RunRecord) error {
	if err := e.gateway.CheckConnectivity(ctx); err != nil {
		return err
	}
	if err := e.producer.Pull(ctx); err != nil {
		return err
	}
	if _, err := e.inventory.Expire(ctx, e.keep); err != nil {
		return err
	}
	return e.push(ctx, run)
}

// PullOnly checks connectivity, then pulls a snapshot into staging. The
// check is deliberately kept even though the pull is local-only: if the DR
// host is down there is no point burning time and disk on a backup that
// cannot be shipped.
func (e *Engine) PullOnly(ctx context.Context) error {
	run := e.startRun("pull-only")
	err := e.pullOnly(ctx)
	e.finishRun(run, err)
	return err
}

func (e *Engine) pullOnly(ctx context.Context) error {
	if err := e.gateway.CheckConnectivity(ctx); err != nil {
		return err
	}
	return e.producer.Pull(ctx)
}

// PushOnly checks connectivity, expires old snapshots, then transfers the
// snapshot already sitting in staging from a prior pull.
func (e *Engine) PushOnly(ctx context.Context) error {
	run := e.startRun("push-only")
	err := e.pushOnly(ctx, run)
	e.finishRun(run, err)
	return err
}

func (e *Engine) pushOnly(ctx context.Context, run *store.RunRecord) error {
	if err := e.gateway.CheckConnectivity(ctx); err != nil {
		return err
	}
	if _, err := e.inventory.Expire(ctx, e.keep); err != nil {
		return err
	}
	return e.push(ctx, run)
}

func (e *Engine) push(ctx context.Context, run *store.RunRecord) error {
	if run != nil {
		if name, err := e.pusher.SnapshotName(); err == nil {
			run.Snapshot = name
		}
	}
	attempts, err := e.pusher.Push(ctx)
	if run != nil {
		run.Attempts = attempts
	}
	return err
}

// History returns the most recent recorded runs, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]store.RunRecord, error) {
	if e.recorder == nil {
		return nil, fmt.Errorf("run history is not available without a catalog database")
	}
	return e.recorder.RecentRuns(e.instance, limit)
}

// startRun opens a catalog record for the action. Recording is best-effort:
// a catalog failure is logged and the action proceeds.
func (e *Engine) startRun(action string) *store.RunRecord {
	if e.recorder == nil {
		return nil
	}
	run := &store.RunRecord{
		Action:    action,
		Instance:  e.instance,
		StartTime: time.Now(),
		Status:    "running",
	}
	if err := e.recorder.CreateRun(run); err != nil {
		e.logger.Warn("failed to record run start", "action", action, "error", err)
		return nil
	}
	return run
}

func (e *Engine) finishRun(run *store.RunRecord, actionErr error) {
	if run == nil {
		return
	}
	run.EndTime = time.Now()
	if actionErr != nil {
		run.Status = "failed"
		run.ErrorMessage = actionErr.Error()
	} else {
		run.Status = "success"
	}
	if err := e.recorder.UpdateRun(run); err != nil {
		e.logger.Warn("failed to record run completion", "action", run.Action, "error", err)
	}
}
