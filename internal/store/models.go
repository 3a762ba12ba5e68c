package store

import "time"

// RunRecord records one executed action for the history view
type RunRecord struct {
	ID           int64
	Action       string // "backup", "pull-only", "push-only", "expire"; info is read-only and never recorded
	Instance     string
	Snapshot     string // DR-side snapshot name, empty for actions without one
	StartTime    time.Time
	EndTime      time.Time
	Attempts     int    // sync attempts used, 0 for non-transfer actions
	Status       string // "running", "success", "failed"
	ErrorMessage string
}
