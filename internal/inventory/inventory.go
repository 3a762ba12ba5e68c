// Package inventory lists the snapshots stored for one instance on the DR
// host and applies the retention policy to them.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/maruel/natural"

	"github.com/pgops/drbase/internal/remote"
)

// Host is the subset of the remote gateway the inventory needs.
type Host interface {
	ListDir(ctx context.Context, path string) ([]string, error)
	SizeAndMTime(ctx context.Context, path string) (int64, time.Time, error)
	Delete(ctx context.Context, path string) error
}

// Snapshot describes one DR-side snapshot directory.
type Snapshot struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// HumanSize renders the snapshot size for display.
func (s Snapshot) HumanSize() string {
	return humanize.Bytes(uint64(s.Size))
}

// DeleteFailure records one snapshot the expiry pass could not remove.
type DeleteFailure struct {
	Name string
	Err  error
}

// ExpireReport aggregates the outcome of one expiry pass. Deletion is
// best-effort: failures are reported here, never returned as errors.
type ExpireReport struct {
	Threshold string
	Deleted   []string
	NotFound  []string
	Failed    []DeleteFailure
}

// Inventory manages the snapshot set under <dr_path>/<instance>.
type Inventory struct {
	host   Host
	root   string
	logger *slog.Logger
}

// New creates an Inventory rooted at the instance's DR-side directory.
func New(host Host, instanceRoot string, logger *slog.Logger) *Inventory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inventory{host: host, root: instanceRoot, logger: logger}
}

// List returns the snapshot names for the instance in the order the DR host
// produced them. Dot-prefixed entries are in-progress transfers, not
// snapshots, and are skipped. An empty list is valid; a failed listing is
// an error because no retention decision can be made without it.
func (inv *Inventory) List(ctx context.Context) ([]string, error) {
	entries, err := inv.host.ListDir(ctx, inv.root)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots under %s: %w", inv.root, err)
	}

	var names []string
	for _, name := range entries {
		if strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Describe fetches size and modification time for every snapshot, in listing
// order.
func (inv *Inventory) Describe(ctx context.Context) ([]Snapshot, error) {
	names, err := inv.List(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]Snapshot, 0, len(names))
	for _, name := range names {
		size, mtime, err := inv.host.SizeAndMTime(ctx, inv.root+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("describing snapshot %s: %w", name, err)
		}
		snapshots = append(snapshots, Snapshot{Name: name, Size: size, ModTime: mtime})
	}
	return snapshots, nil
}

// Expire deletes snapshots beyond the retention count. With k1 =
// max(keep-1, 1), the k1-th name counting back from the newest (in
// version-aware ascending order) is the threshold: the oldest snapshot that
// must survive. Everything whose name sorts strictly below it is deleted.
//
// Threshold selection is version-aware; the per-name deletion test is plain
// string comparison. Snapshot names are fixed-width zero-padded timestamps,
// so the two orderings coincide.
func (inv *Inventory) Expire(ctx context.Context, keep int) (*ExpireReport, error) {
	k1 := keep - 1
	if k1 < 1 {
		k1 = 1
	}

	names, err := inv.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &ExpireReport{}
	if len(names) <= k1 {
		inv.logger.Debug("expiry no-op", "snapshots", len(names), "keep", keep)
		return report, nil
	}

	sorted := append([]string(nil), names...)
	sort.Sort(natural.StringSlice(sorted))
	report.Threshold = sorted[len(sorted)-1-k1]

	for _, name := range names {
		if name >= report.Threshold {
			continue
		}

		err := inv.host.Delete(ctx, inv.root+"/"+name)
		switch {
		case err == nil:
			report.Deleted = append(report.Deleted, name)
		case isNotFound(err):
			report.NotFound = append(report.NotFound, name)
		default:
			// Best-effort: the next expiry pass retries it.
			inv.logger.Warn("failed to delete expired snapshot", "snapshot", name, "error", err)
			report.Failed = append(report.Failed, DeleteFailure{Name: name, Err: err})
		}
	}

	inv.logger.Info("expiry pass complete",
		"threshold", report.Threshold,
		"deleted", len(report.Deleted),
		"not_found", len(report.NotFound),
		"failed", len(report.Failed),
	)
	return report, nil
}

// isNotFound reports whether a remote deletion failed because the path was
// already gone (e.g. removed by a concurrent run).
func isNotFound(err error) bool {
	var cmdErr *remote.CommandError
	if errors.As(err, &cmdErr) {
		return strings.Contains(cmdErr.Stderr, "No such file or directory")
	}
	return false
}
