package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/pgops/drbase/internal/inventory"
	"github.com/pgops/drbase/internal/store"
)

// callLog records the order component operations were invoked in.
type callLog struct {
	calls []string
}

func (l *callLog) add(name string) { l.calls = append(l.calls, name) }

type fakeGateway struct {
	log *callLog
	err error
}

func (f *fakeGateway) CheckConnectivity(ctx context.Context) error {
	f.log.add("connectivity")
	return f.err
}

type fakeInventory struct {
	log       *callLog
	snapshots []inventory.Snapshot
	expireErr error
	keepSeen  int
}

func (f *fakeInventory) Describe(ctx context.Context) ([]inventory.Snapshot, error) {
	f.log.add("describe")
	return f.snapshots, nil
}

func (f *fakeInventory) Expire(ctx context.Context, keep int) (*inventory.ExpireReport, error) {
	f.log.add("expire")
	f.keepSeen = keep
	if f.expireErr != nil {
		return nil, f.expireErr
	}
	return &inventory.ExpireReport{}, nil
}

type fakeProducer struct {
	log *callLog
	err error
}

func (f *fakeProducer) Pull(ctx context.Context) error {
	f.log.add("pull")
	return f.err
}

type fakePusher struct {
	log      *callLog
	name     string
	attempts int
	err      error
}

func (f *fakePusher) SnapshotName() (string, error) { return f.name, nil }

func (f *fakePusher) Push(ctx context.Context) (int, error) {
	f.log.add("push")
	if f.attempts == 0 {
		f.attempts = 1
	}
	return f.attempts, f.err
}

type fakeRecorder struct {
	created []*store.RunRecord
	updated []*store.RunRecord
}

func (f *fakeRecorder) CreateRun(run *store.RunRecord) error {
	run.ID = int64(len(f.created) + 1)
	f.created = append(f.created, run)
	return nil
}

func (f *fakeRecorder) UpdateRun(run *store.RunRecord) error {
	f.updated = append(f.updated, run)
	return nil
}

func (f *fakeRecorder) RecentRuns(instance string, limit int) ([]store.RunRecord, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	log      *callLog
	gateway  *fakeGateway
	inv      *fakeInventory
	producer *fakeProducer
	pusher   *fakePusher
	recorder *fakeRecorder
	engine   *Engine
}

func newFixture() *fixture {
	log := &callLog{}
	f := &fixture{
		log:      log,
		gateway:  &fakeGateway{log: log},
		inv:      &fakeInventory{log: log},
		producer: &fakeProducer{log: log},
		pusher:   &fakePusher{log: log, name: "2026-08-24_0200"},
		recorder: &fakeRecorder{},
	}
	f.engine = New(f.gateway, f.inv, f.producer, f.pusher, f.recorder, "main", 3, testLogger())
	return f
}

func assertCalls(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

func TestBackupOrdering(t *testing.T) {
	f := newFixture()

	if err := f.engine.Backup(context.Background()); err != nil {
		t.Fatalf("Backup() failed: %v", err)
	}

	// Expiry must run after the pull and before the push: the fresh
	// snapshot is never a deletion candidate, and DR disk is bounded
	// before new data lands.
	assertCalls(t, f.log.calls, []string{"connectivity", "pull", "expire", "push"})
	if f.inv.keepSeen != 3 {
		t.Errorf("Expire received keep=%d, want 3", f.inv.keepSeen)
	}
}

func TestBackupStopsOnConnectivityFailure(t *testing.T) {
	f := newFixture()
	f.gateway.err = errors.New("connection refused")

	if err := f.engine.Backup(context.Background()); err == nil {
		t.Fatal("Backup() must fail when the DR host is unreachable")
	}
	assertCalls(t, f.log.calls, []string{"connectivity"})
}

func TestBackupStopsOnPullFailure(t *testing.T) {
	f := newFixture()
	f.producer.err = errors.New("pg_basebackup exited with status 1")

	if err := f.engine.Backup(context.Background()); err == nil {
		t.Fatal("Backup() must fail when the pull fails")
	}
	assertCalls(t, f.log.calls, []string{"connectivity", "pull"})
}

func TestBackupStopsOnExpireListingFailure(t *testing.T) {
	f := newFixture()
	f.inv.expireErr = errors.New("listing snapshots failed")

	if err := f.engine.Backup(context.Background()); err == nil {
		t.Fatal("Backup() must fail when expiry cannot list snapshots")
	}
	assertCalls(t, f.log.calls, []string{"connectivity", "pull", "expire"})
}

func TestPullOnlyOrdering(t *testing.T) {
	f := newFixture()

	if err := f.engine.PullOnly(context.Background()); err != nil {
		t.Fatalf("PullOnly() failed: %v", err)
	}
	assertCalls(t, f.log.calls, []string{"connectivity", "pull"})
}

func TestPushOnlyOrdering(t *testing.T) {
	f := newFixture()

	if err := f.engine.PushOnly(context.Background()); err != nil {
		t.Fatalf("PushOnly() failed: %v", err)
	}
	assertCalls(t, f.log.calls, []string{"connectivity", "expire", "push"})
}

func TestInfoNeverMutates(t *testing.T) {
	f := newFixture()
	f.inv.snapshots = []inventory.Snapshot{{Name: "2026-08-24_0200"}}

	snapshots, err := f.engine.Info(context.Background())
	if err != nil {
		t.Fatalf("Info() failed: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("Info() = %v", snapshots)
	}
	assertCalls(t, f.log.calls, []string{"describe"})
}

func TestRunRecording(t *testing.T) {
	f := newFixture()

	if err := f.engine.Backup(context.Background()); err != nil {
		t.Fatalf("Backup() failed: %v", err)
	}

	if len(f.recorder.created) != 1 || len(f.recorder.updated) != 1 {
		t.Fatalf("recorded %d creates / %d updates, want 1/1",
			len(f.recorder.created), len(f.recorder.updated))
	}
	run := f.recorder.updated[0]
	if run.Action != "backup" || run.Status != "success" {
		t.Errorf("run = %+v, want successful backup", run)
	}
	if run.Snapshot != "2026-08-24_0200" {
		t.Errorf("run.Snapshot = %q, want the pushed name", run.Snapshot)
	}
	if run.EndTime.Before(run.StartTime) {
		t.Errorf("run times inverted: %v .. %v", run.StartTime, run.EndTime)
	}
}

func TestRunRecordsSyncAttempts(t *testing.T) {
	f := newFixture()
	f.pusher.attempts = 2

	if err := f.engine.PushOnly(context.Background()); err != nil {
		t.Fatalf("PushOnly() failed: %v", err)
	}

	run := f.recorder.updated[0]
	if run.Attempts != 2 {
		t.Errorf("run.Attempts = %d, want 2", run.Attempts)
	}
}

func TestRunRecordingFailure(t *testing.T) {
	f := newFixture()
	f.pusher.err = errors.New("transfer failed after 3 attempts")

	if err := f.engine.Backup(context.Background()); err == nil {
		t.Fatal("Backup() must fail when the push fails")
	}

	run := f.recorder.updated[0]
	if run.Status != "failed" {
		t.Errorf("run.Status = %q, want failed", run.Status)
	}
	if run.ErrorMessage == "" {
		t.Error("run.ErrorMessage empty, want the failure diagnostic")
	}
}

func TestActionsWorkWithoutRecorder(t *testing.T) {
	log := &callLog{}
	e := New(
		&fakeGateway{log: log},
		&fakeInventory{log: log},
		&fakeProducer{log: log},
		&fakePusher{log: log, name: "x"},
		nil,
		"main", 3, testLogger(),
	)

	if err := e.Backup(context.Background()); err != nil {
		t.Fatalf("Backup() without recorder failed: %v", err)
	}
	if _, err := e.History(context.Background(), 5); err == nil {
		t.Fatal("History() must fail without a catalog")
	}
}
