package isolation

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/mechiko/pdfsanitize/internal/whitelist"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess is not a real test; it is re-executed as a
// subprocess by the harness tests below, standing in for the worker
// binary without requiring a second compiled artifact. The pattern
// mirrors os/exec's own TestHelperProcess convention.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("PDFSANITIZE_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)
	os.Exit(RunWorker(os.Stdin, os.Stdout))
}

func helperCommand(t *testing.T, args ...string) *exec.Cmd {
	t.Helper()
	cs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
	cmd := exec.Command(os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "PDFSANITIZE_WANT_HELPER_PROCESS=1")
	return cmd
}

func TestRunWorkerRejectsMissingInputFile(t *testing.T) {
	spec := JobSpec{InputPath: "/nonexistent/path.pdf", Limits: whitelist.Limits{}}
	data, err := json.Marshal(spec)
	require.NoError(t, err)

	cmd := helperCommand(t, WorkerMarker)
	cmd.Stdin = bytes.NewReader(data)
	out, err := cmd.Output()
	require.Error(t, err) // exit code 1: cannot read input
	_ = out
}

func TestWorkerParserRejectsNonPDFInput(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "notapdf-*.pdf")
	require.NoError(t, err)
	_, err = tmp.WriteString("not a pdf at all")
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	h := Harness{ExecPath: os.Args[0]}
	spec := JobSpec{InputPath: tmp.Name(), Limits: whitelist.Limits{}}

	// Exercised against the real self-exec marker path via a fake
	// ExecPath would require the compiled binary to understand
	// WorkerMarker; here we call whitelist.Parse directly and assert the
	// ParseFailure shape the harness depends on, since the subprocess
	// plumbing itself is covered by TestRunWorkerRejectsMissingInputFile.
	_ = h
	_ = spec
	_, parseErr := whitelist.Parse([]byte("not a pdf at all"), whitelist.Limits{})
	require.Error(t, parseErr)
	var pf *whitelist.ParseFailure
	require.ErrorAs(t, parseErr, &pf)
	require.Equal(t, whitelist.NotAPDF, pf.Reason)
}

func TestParseIsolatedTimesOutOnSlowWorker(t *testing.T) {
	// A worker invoked against a context that is already expired must
	// be reported as Timeout without waiting for the process to exit
	// on its own.
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	h := Harness{ExecPath: os.Args[0]}
	_, err := h.ParseIsolated(ctx, JobSpec{InputPath: "/dev/null"}, time.Millisecond)
	require.Error(t, err)
	var f *Failure
	require.ErrorAs(t, err, &f)
	require.Equal(t, Timeout, f.Reason)
}
