// Package remote runs commands on the DR host over ssh and exposes the
// handful of filesystem primitives the snapshot pipeline needs.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pgops/drbase/internal/config"
	"github.com/pgops/drbase/internal/runner"
)

// CommandError reports a remote command that ran but exited non-zero.
type CommandError struct {
	Cmd        string
	ExitStatus int
	Stderr     string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("remote command %q exited with status %d", e.Cmd, e.ExitStatus)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Gateway executes commands on the DR host.
type Gateway struct {
	cfg    config.RemoteConfig
	runner runner.Runner
	logger *slog.Logger
}

// NewGateway creates a Gateway for the configured DR host.
func NewGateway(cfg config.RemoteConfig, r runner.Runner, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{cfg: cfg, runner: r, logger: logger}
}

// run executes a single command line on the DR host and returns its stdout.
func (g *Gateway) run(ctx context.Context, remoteCmd string) (string, error) {
	spec := runner.Spec{
		Name: g.cfg.SSHBin,
		Args: []string{
			"-p", strconv.Itoa(g.cfg.Port),
			"-o", "BatchMode=yes",
			g.cfg.User + "@" + g.cfg.Host,
			remoteCmd,
		},
	}

	res, err := g.runner.Run(ctx, spec)
	if err != nil {
		return "", fmt.Errorf("ssh to %s: %w", g.cfg.Host, err)
	}
	if res.ExitCode != 0 {
		return "", &CommandError{Cmd: remoteCmd, ExitStatus: res.ExitCode, Stderr: res.Stderr}
	}
	return res.Stdout, nil
}

// CheckConnectivity runs a trivial remote command to prove the transport and
// account work. There is no retry at this layer.
func (g *Gateway) CheckConnectivity(ctx context.Context) error {
	g.logger.Debug("checking DR host connectivity", "host", g.cfg.Host, "port", g.cfg.Port)
	if _, err := g.run(ctx, "date -u"); err != nil {
		return fmt.Errorf("DR host %s unreachable: %w", g.cfg.Host, err)
	}
	return nil
}

// ListDir returns the entry names under path in the order the remote host
// produced them. A directory that does not exist yet is an empty list; a
// listing command that fails is an error.
func (g *Gateway) ListDir(ctx context.Context, path string) ([]string, error) {
	q := shellQuote(path)
	out, err := g.run(ctx, fmt.Sprintf("if [ -d %s ]; then ls -1 -- %s; fi", q, q))
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// SizeAndMTime returns the recursive size in bytes and the last-modification
// time of a remote path.
func (g *Gateway) SizeAndMTime(ctx context.Context, path string) (int64, time.Time, error) {
	q := shellQuote(path)

	out, err := g.run(ctx, "du -sb -- "+q)
	if err != nil {
		return 0, time.Time{}, err
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return 0, time.Time{}, fmt.Errorf("unexpected du output for %s: %q", path, out)
	}
	size, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parsing du output for %s: %w", path, err)
	}

	out, err = g.run(ctx, "stat -c %Y -- "+q)
	if err != nil {
		return 0, time.Time{}, err
	}
	epoch, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parsing stat output for %s: %w", path, err)
	}

	return size, time.Unix(epoch, 0), nil
}

// Delete removes a remote path recursively. Deliberately not forced: a
// missing path surfaces as a CommandError so callers can tell "already gone"
// from "could not remove". The caller decides whether a failure is fatal.
func (g *Gateway) Delete(ctx context.Context, path string) error {
	// LC_ALL=C pins the error text so callers can classify a missing
	// path regardless of the remote locale.
	_, err := g.run(ctx, "LC_ALL=C rm -r -- "+shellQuote(path))
	return err
}

// MkdirAll creates a remote directory and its parents.
func (g *Gateway) MkdirAll(ctx context.Context, path string) error {
	_, err := g.run(ctx, "mkdir -p -- "+shellQuote(path))
	return err
}

// Replace moves a remote path over the destination, clearing any previous
// directory of the same name first. A re-run push lands on the same snapshot
// name, so the destination may legitimately already exist; plain mv -T
// refuses to rename over a non-empty directory.
func (g *Gateway) Replace(ctx context.Context, from, to string) error {
	_, err := g.run(ctx, fmt.Sprintf("rm -rf -- %s && mv -T -- %s %s",
		shellQuote(to), shellQuote(from), shellQuote(to)))
	return err
}

// SyncTarget renders the rsync destination for a remote path.
func (g *Gateway) SyncTarget(path string) string {
	return g.cfg.User + "@" + g.cfg.Host + ":" + path
}

// SSHTransport renders the rsync -e argument matching this gateway's
// transport settings.
func (g *Gateway) SSHTransport() string {
	return fmt.Sprintf("%s -p %d -o BatchMode=yes", g.cfg.SSHBin, g.cfg.Port)
}

// shellQuote single-quotes a path for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
