// Package transfer pushes the staged snapshot to the DR host with bounded
// retry, publishing it under its timestamp name only once fully synced.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pgops/drbase/internal/config"
	"github.com/pgops/drbase/internal/runner"
)

// SnapshotNameLayout is the sortable timestamp format snapshot directories
// are named with on the DR host.
const SnapshotNameLayout = "2006-01-02_1504"

// Host is the subset of the remote gateway the transfer needs.
type Host interface {
	MkdirAll(ctx context.Context, path string) error
	Replace(ctx context.Context, from, to string) error
	SyncTarget(path string) string
	SSHTransport() string
}

// Transfer synchronizes the staging directory to the DR host.
type Transfer struct {
	cfg     config.TransferConfig
	staging config.StagingConfig
	syncBin string
	root    string
	host    Host
	runner  runner.Runner
	logger  *slog.Logger

	// sleep is swapped out in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Transfer pushing into the instance's DR-side directory.
func New(cfg config.TransferConfig, staging config.StagingConfig, syncBin, instanceRoot string, host Host, r runner.Runner, logger *slog.Logger) *Transfer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transfer{
		cfg:     cfg,
		staging: staging,
		syncBin: syncBin,
		root:    instanceRoot,
		host:    host,
		runner:  r,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// SnapshotName derives the DR-side directory name from the staging
// directory's modification time.
func (t *Transfer) SnapshotName() (string, error) {
	info, err := os.Stat(t.staging.Dir)
	if err != nil {
		return "", fmt.Errorf("stat staging directory %s: %w", t.staging.Dir, err)
	}
	return info.ModTime().Format(SnapshotNameLayout), nil
}

// Push synchronizes the staged snapshot into <instance root>/<name> on the
// DR host and returns the number of sync attempts used. The sync lands in a
// dot-prefixed temporary directory and is moved into place only after a
// fully successful pass, so a partial transfer is never visible as a
// snapshot; a re-run lands on the same name and replaces the earlier copy.
// Each failed sync attempt is followed by a fixed backoff; exhausting all
// attempts is fatal.
func (t *Transfer) Push(ctx context.Context) (int, error) {
	if err := t.checkStaging(); err != nil {
		return 0, err
	}

	name, err := t.SnapshotName()
	if err != nil {
		return 0, err
	}

	if err := t.host.MkdirAll(ctx, t.root); err != nil {
		return 0, fmt.Errorf("creating instance directory %s: %w", t.root, err)
	}

	incoming := t.root + "/.incoming-" + name
	final := t.root + "/" + name
	backoff := time.Duration(t.cfg.BackoffSeconds) * time.Second

	attempts := 0
	var lastErr error
	for attempt := 1; attempt <= t.cfg.Attempts; attempt++ {
		t.logger.Info("syncing snapshot to DR host",
			"snapshot", name,
			"attempt", attempt,
			"attempts", t.cfg.Attempts,
		)

		attempts = attempt
		lastErr = t.syncOnce(ctx, incoming)
		if lastErr == nil {
			break
		}

		t.logger.Warn("snapshot sync attempt failed", "attempt", attempt, "error", lastErr)
		if attempt < t.cfg.Attempts {
			if err := t.sleep(ctx, backoff); err != nil {
				return attempts, fmt.Errorf("transfer cancelled: %w", err)
			}
		}
	}
	if lastErr != nil {
		return attempts, fmt.Errorf("transfer failed after %d attempts: %w", t.cfg.Attempts, lastErr)
	}

	if err := t.host.Replace(ctx, incoming, final); err != nil {
		return attempts, fmt.Errorf("publishing snapshot %s: %w", name, err)
	}
	t.logger.Info("snapshot published", "snapshot", name, "path", final, "attempts", attempts)

	if t.staging.CleanupAfterPush {
		if err := os.RemoveAll(t.staging.Dir); err != nil {
			return attempts, fmt.Errorf("removing staging directory %s: %w", t.staging.Dir, err)
		}
		t.logger.Debug("staging directory removed", "path", t.staging.Dir)
	}
	return attempts, nil
}

// syncOnce runs a single one-way recursive sync of the staging contents into
// the remote directory.
func (t *Transfer) syncOnce(ctx context.Context, remoteDir string) error {
	spec := runner.Spec{
		Name: t.syncBin,
		Args: []string{
			"-a",
			"--delete",
			"-e", t.host.SSHTransport(),
			t.staging.Dir + "/",
			t.host.SyncTarget(remoteDir + "/"),
		},
	}

	res, err := t.runner.Run(ctx, spec)
	if err != nil {
		return fmt.Errorf("starting %s: %w", t.syncBin, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s exited with status %d: %s",
			t.syncBin, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// checkStaging verifies a pulled snapshot is actually present.
func (t *Transfer) checkStaging() error {
	entries, err := os.ReadDir(t.staging.Dir)
	if err != nil {
		return fmt.Errorf("reading staging directory %s: %w", t.staging.Dir, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("staging directory %s is empty, nothing to transfer", t.staging.Dir)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
