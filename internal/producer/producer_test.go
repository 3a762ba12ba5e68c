package producer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pgops/drbase/internal/config"
	"github.com/pgops/drbase/internal/runner"
)

type fakeRunner struct {
	result   runner.Result
	startErr error
	specs    []runner.Spec
}

func (f *fakeRunner) Run(ctx context.Context, spec runner.Spec) (runner.Result, error) {
	f.specs = append(f.specs, spec)
	return f.result, f.startErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testPGConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:          "db1.example.net",
		Port:          5433,
		User:          "replicator",
		BackupBin:     "pg_basebackup",
		CompressLevel: 4,
	}
}

func TestPullBuildsBackupCommand(t *testing.T) {
	staging := filepath.Join(t.TempDir(), "staging")
	r := &fakeRunner{}
	p := New(testPGConfig(), staging, r, testLogger())

	if err := p.Pull(context.Background()); err != nil {
		t.Fatalf("Pull() failed: %v", err)
	}

	if len(r.specs) != 1 {
		t.Fatalf("backup tool invoked %d times, want 1", len(r.specs))
	}
	spec := r.specs[0]
	if spec.Name != "pg_basebackup" {
		t.Errorf("binary = %q, want pg_basebackup", spec.Name)
	}

	joined := strings.Join(spec.Args, " ")
	for _, want := range []string{
		"-h db1.example.net",
		"-p 5433",
		"-U replicator",
		"-D " + staging,
		"-c fast",  // fast checkpoint
		"-F t",     // tar output
		"-X fetch", // WAL included, snapshot starts standalone
		"-Z 4",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
	if !strings.Contains(joined, "-z") {
		t.Errorf("args %q missing gzip flag", joined)
	}
	if len(spec.Env) != 0 {
		t.Errorf("env = %v, want none without a password", spec.Env)
	}
}

func TestPullPassesPasswordViaEnv(t *testing.T) {
	cfg := testPGConfig()
	cfg.Password = "s3cret"
	r := &fakeRunner{}
	p := New(cfg, filepath.Join(t.TempDir(), "staging"), r, testLogger())

	if err := p.Pull(context.Background()); err != nil {
		t.Fatalf("Pull() failed: %v", err)
	}

	spec := r.specs[0]
	found := false
	for _, e := range spec.Env {
		if e == "PGPASSWORD=s3cret" {
			found = true
		}
		if strings.Contains(strings.Join(spec.Args, " "), "s3cret") {
			t.Error("password leaked into command arguments")
		}
	}
	if !found {
		t.Errorf("env = %v, want PGPASSWORD entry", spec.Env)
	}
}

func TestPullResetsStaging(t *testing.T) {
	staging := filepath.Join(t.TempDir(), "staging")
	if err := os.MkdirAll(staging, 0o750); err != nil {
		t.Fatalf("creating staging: %v", err)
	}
	leftover := filepath.Join(staging, "base.tar.gz")
	if err := os.WriteFile(leftover, []byte("stale"), 0o640); err != nil {
		t.Fatalf("writing leftover: %v", err)
	}

	p := New(testPGConfig(), staging, &fakeRunner{}, testLogger())
	if err := p.Pull(context.Background()); err != nil {
		t.Fatalf("Pull() failed: %v", err)
	}

	if _, err := os.Stat(leftover); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stale snapshot survived the staging reset, stat err = %v", err)
	}
	if info, err := os.Stat(staging); err != nil || !info.IsDir() {
		t.Errorf("staging dir missing after reset: %v", err)
	}
}

func TestPullSurfacesToolOutputOnFailure(t *testing.T) {
	r := &fakeRunner{result: runner.Result{
		ExitCode: 1,
		Stderr:   "pg_basebackup: error: connection to server failed",
	}}
	p := New(testPGConfig(), filepath.Join(t.TempDir(), "staging"), r, testLogger())

	err := p.Pull(context.Background())
	if err == nil {
		t.Fatal("Pull() must fail on non-zero exit")
	}
	if !strings.Contains(err.Error(), "connection to server failed") {
		t.Errorf("error = %v, want the tool's diagnostic output", err)
	}
	if !strings.Contains(err.Error(), "status 1") {
		t.Errorf("error = %v, want the exit status", err)
	}
}

func TestPullFatalWhenToolMissing(t *testing.T) {
	r := &fakeRunner{startErr: errors.New(`exec: "pg_basebackup": executable file not found in $PATH`)}
	p := New(testPGConfig(), filepath.Join(t.TempDir(), "staging"), r, testLogger())

	if err := p.Pull(context.Background()); err == nil {
		t.Fatal("Pull() must fail when the backup tool cannot start")
	}
}
