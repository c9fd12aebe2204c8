package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func TestRunCLINoArgsPrintsUsage(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI(nil)
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stdout, "shevd <noun> <action>") {
		t.Fatalf("stdout missing usage: %s", stdout)
	}
}

func TestRunCLIUnknownNoun(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"bogus"})
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "unknown command: bogus") {
		t.Fatalf("stderr missing unknown-command message: %s", stderr)
	}
}

func TestRunCLIVersion(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"version"})
	})
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "shevd version") {
		t.Fatalf("stdout missing version: %s", stdout)
	}
}

func TestRunCLIHelp(t *testing.T) {
	for _, tok := range []string{"help", "--help", "-h"} {
		code, stdout, _ := captureOutputWithExitCode(t, func() int {
			return runCLI([]string{tok})
		})
		if code != 0 {
			t.Fatalf("%s: code = %d, want 0", tok, code)
		}
		if !strings.Contains(stdout, "Nouns:") {
			t.Fatalf("%s: stdout missing usage body: %s", tok, stdout)
		}
	}
}

func TestRunHandlerNounHelp(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runHandlerNoun([]string{"help"})
	})
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "Usage: shevd handler") {
		t.Fatalf("stdout missing usage: %s", stdout)
	}
}

func TestRunHandlerNounMissingAction(t *testing.T) {
	code, _, _ := captureOutputWithExitCode(t, func() int {
		return runHandlerNoun(nil)
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}

func TestRunHandlerNounCreateRequiresFlags(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runHandlerNoun([]string{"create"})
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Usage: shevd handler create") {
		t.Fatalf("stderr missing usage: %s", stderr)
	}
}

func TestRunJobNounUnknownAction(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runJobNoun([]string{"frobnicate"})
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "unknown job action: frobnicate") {
		t.Fatalf("stderr missing message: %s", stderr)
	}
}

func TestRunEventNounRequiresEventType(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runEventNoun([]string{"create"})
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Usage: shevd event create") {
		t.Fatalf("stderr missing usage: %s", stderr)
	}
}

func TestParseTimeRejectsNonRFC3339(t *testing.T) {
	if _, err := parseTime("not-a-time"); err == nil {
		t.Fatal("expected error for invalid time")
	}
	if _, err := parseTime("2026-08-01T00:00:00Z"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPIDLockPathDerivesFromDBPath(t *testing.T) {
	got := pidLockPath("/var/lib/shevd/shevd.db")
	want := "/var/lib/shevd/shevd.pid"
	if got != want {
		t.Fatalf("pidLockPath() = %q, want %q", got, want)
	}
}

func TestApplyConfiguredPortOverridesListenPort(t *testing.T) {
	got, err := applyConfiguredPort("127.0.0.1:8085", "9100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "127.0.0.1:9100" {
		t.Fatalf("got = %q, want 127.0.0.1:9100", got)
	}
}

func TestApplyConfiguredPortEmptyKeepsListen(t *testing.T) {
	got, err := applyConfiguredPort("127.0.0.1:8085", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "127.0.0.1:8085" {
		t.Fatalf("got = %q, want unchanged listen", got)
	}
}

func TestApplyConfiguredPortRejectsBadListen(t *testing.T) {
	if _, err := applyConfiguredPort("not-a-host-port", "9100"); err == nil {
		t.Fatal("expected error for malformed listen address")
	}
}

type stubLoop struct {
	stopped bool
}

func (s *stubLoop) Stop() { s.stopped = true }

type stubPool struct {
	release chan struct{}
}

func (p *stubPool) Wait() { <-p.release }

func TestDrainAndStopReturnsOnceWorkersFinishWithinGrace(t *testing.T) {
	timerLoop := &stubLoop{}
	schedLoop := &stubLoop{}
	pool := &stubPool{release: make(chan struct{})}
	close(pool.release)

	var workCancelled bool
	workCancel := func() { workCancelled = true }
	var httpCancelled bool
	httpCancel := func() { httpCancelled = true }

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	done := make(chan struct{})
	go func() {
		drainAndStop(logger, httpCancel, workCancel, timerLoop, schedLoop, pool, time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drainAndStop did not return after workers finished")
	}

	if !httpCancelled {
		t.Fatal("expected httpCancel to be called immediately")
	}
	if !timerLoop.stopped || !schedLoop.stopped {
		t.Fatal("expected timer and schedule loops stopped immediately")
	}
	if workCancelled {
		t.Fatal("expected workCancel not to fire when workers finish within grace")
	}
}

func TestDrainAndStopForceCancelsAfterGraceElapses(t *testing.T) {
	timerLoop := &stubLoop{}
	schedLoop := &stubLoop{}
	pool := &stubPool{release: make(chan struct{})}

	var mu sync.Mutex
	var workCancelled bool
	workCancel := func() {
		mu.Lock()
		workCancelled = true
		mu.Unlock()
		close(pool.release)
	}
	httpCancel := func() {}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	done := make(chan struct{})
	go func() {
		drainAndStop(logger, httpCancel, workCancel, timerLoop, schedLoop, pool, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drainAndStop did not return after grace elapsed")
	}

	mu.Lock()
	defer mu.Unlock()
	if !workCancelled {
		t.Fatal("expected workCancel to fire once the grace window elapsed")
	}
}

func TestRunServeRejectsBadConfigPath(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runServe([]string{"--config", "/nonexistent/shevd.yaml"})
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "failed to load config") {
		t.Fatalf("stderr missing config failure message: %s", stderr)
	}
}

func TestRunDoctorRejectsBadConfigPath(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runDoctor([]string{"--config", "/nonexistent/shevd.yaml"})
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "failed to load config") {
		t.Fatalf("stderr missing config failure message: %s", stderr)
	}
}

func TestRunDoctorHelp(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runDoctor([]string{"help"})
	})
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "Usage: shevd doctor") {
		t.Fatalf("stdout missing usage: %s", stdout)
	}
}
