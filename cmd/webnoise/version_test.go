package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	t.Parallel()

	if got := getVersion(); got == "" {
		t.Error("getVersion() returned empty string")
	}
}

func TestGetCommit(t *testing.T) {
	t.Parallel()

	got := getCommit()
	if got == "" {
		t.Error("getCommit() returned empty string")
	}
	if got != "unknown" && len(got) > 7 {
		t.Errorf("getCommit() = %q, want a short revision of at most 7 chars", got)
	}
}

func TestGetDate(t *testing.T) {
	t.Parallel()

	if got := getDate(); got == "" {
		t.Error("getDate() returned empty string")
	}
}

func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCmd()

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "webnoise ") {
		t.Errorf("expected output to start with 'webnoise ', got %q", out)
	}
	if !strings.Contains(out, "commit ") {
		t.Errorf("expected output to contain 'commit ', got %q", out)
	}
	if !strings.Contains(out, "built ") {
		t.Errorf("expected output to contain 'built ', got %q", out)
	}
}
