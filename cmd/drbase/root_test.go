package main

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// A bare invocation is a usage request: help prints and the process exits 0.
func TestNoActionPrintsUsageAndSucceeds(t *testing.T) {
	out, err := execute(t)
	if err != nil {
		t.Fatalf("bare invocation returned error: %v", err)
	}
	if !strings.Contains(out, "Usage:") {
		t.Errorf("output missing usage text:\n%s", out)
	}
	for _, action := range []string{"info", "backup", "pull-only", "push-only", "expire"} {
		if !strings.Contains(out, action) {
			t.Errorf("usage text missing action %q", action)
		}
	}
}

// An unknown action is an error: main exits 1.
func TestInvalidActionFails(t *testing.T) {
	_, err := execute(t, "frobnicate")
	if err == nil {
		t.Fatal("unknown action must return an error")
	}
	if !strings.Contains(err.Error(), "frobnicate") {
		t.Errorf("error = %v, want the rejected action named", err)
	}
}

func TestHelpFlag(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("--help returned error: %v", err)
	}
	if !strings.Contains(out, "drbase") {
		t.Errorf("help output missing tool name:\n%s", out)
	}
}
