// Package producer materializes a compressed, self-contained base backup of
// the source database into the local staging directory.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pgops/drbase/internal/config"
	"github.com/pgops/drbase/internal/runner"
)

// Producer pulls point-in-time snapshots from a live database.
type Producer struct {
	pg      config.PostgresConfig
	staging string
	runner  runner.Runner
	logger  *slog.Logger
}

// New creates a Producer writing into the given staging directory.
func New(pg config.PostgresConfig, stagingDir string, r runner.Runner, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{pg: pg, staging: stagingDir, runner: r, logger: logger}
}

// Pull resets the staging directory and runs the backup utility against the
// live database. The resulting snapshot is tar-format, gzip-compressed, and
// includes the WAL needed to start standalone. Any failure is fatal; the
// utility's output is surfaced in the error.
func (p *Producer) Pull(ctx context.Context) error {
	if err := p.resetStaging(); err != nil {
		return err
	}

	args := []string{
		"-h", p.pg.Host,
		"-p", strconv.Itoa(p.pg.Port),
		"-U", p.pg.User,
		"-D", p.staging,
		"-c", "fast",
		"-F", "t",
		"-X", "fetch",
		"-z",
		"-Z", strconv.Itoa(p.pg.CompressLevel),
	}

	spec := runner.Spec{Name: p.pg.BackupBin, Args: args}
	if p.pg.Password != "" {
		spec.Env = []string{"PGPASSWORD=" + p.pg.Password}
	}

	start := time.Now()
	p.logger.Info("pulling base backup",
		"source", fmt.Sprintf("%s:%d", p.pg.Host, p.pg.Port),
		"staging", p.staging,
		"compress_level", p.pg.CompressLevel,
	)

	res, err := p.runner.Run(ctx, spec)
	if err != nil {
		return fmt.Errorf("starting %s: %w", p.pg.BackupBin, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s exited with status %d: %s",
			p.pg.BackupBin, res.ExitCode, strings.TrimSpace(res.Stderr+res.Stdout))
	}

	p.logger.Info("base backup complete", "duration", time.Since(start).Round(time.Second))
	return nil
}

// resetStaging clears and recreates the staging directory so at most one
// in-flight snapshot exists at a time.
func (p *Producer) resetStaging() error {
	if err := os.RemoveAll(p.staging); err != nil {
		return fmt.Errorf("clearing staging directory %s: %w", p.staging, err)
	}
	if err := os.MkdirAll(p.staging, 0o750); err != nil {
		return fmt.Errorf("creating staging directory %s: %w", p.staging, err)
	}
	return nil
}
