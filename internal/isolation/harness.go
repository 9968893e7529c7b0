// Package isolation runs the whitelist parser in a separate,
// resource-constrained process and exchanges only structured,
// self-describing data (never shared memory or raw pointers) across
// that boundary. The controller treats the worker as untrusted: its
// own exit code and stdout framing are validated before anything it
// produced is accepted.
package isolation

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"time"

	"github.com/mechiko/pdfsanitize/internal/corelog"
	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/mechiko/pdfsanitize/internal/whitelist"
	"github.com/pkg/errors"
)

// WorkerMarker is the hidden argv[1] value the same compiled binary
// recognizes to act as the isolated worker instead of the CLI front
// end — one deployable artifact, two roles, the same pattern cmd/pdfcpu
// uses for its subcommand dispatch.
const WorkerMarker = "__pdfsanitize_worker__"

// JobSpec is everything the worker process needs, passed as a single
// JSON document on its stdin so no job parameter is smuggled through
// an environment variable or command-line argument an attacker-
// controlled filename could collide with.
type JobSpec struct {
	InputPath        string           `json:"input_path"`
	Limits           whitelist.Limits `json:"limits"`
	MemoryLimitBytes int64            `json:"memory_limit_bytes,omitempty"`
}

// workerOutput is the single JSON value the worker writes to stdout:
// exactly one of Document or Failure is populated.
type workerOutput struct {
	Document *wireDocument          `json:"document,omitempty"`
	Failure  *whitelist.ParseFailure `json:"failure,omitempty"`
}

// Harness launches the worker subprocess and enforces the wall-clock
// timeout from the caller side; the worker enforces its own memory and
// CPU limits on itself at startup (see RunWorker).
type Harness struct {
	// ExecPath is the path to the worker-capable binary (os.Args[0] in
	// production; a path to a stub binary in tests).
	ExecPath string
}

// ParseIsolated runs the whitelist parser for input under lim inside a
// child process, enforcing timeout as a hard wall-clock deadline. A
// child that exceeds it, crashes, or emits ill-formed wire data is
// reported as a Failure; a child that emits a clean rejection is
// reported as the same *whitelist.ParseFailure the worker itself
// constructed.
func (h Harness) ParseIsolated(ctx context.Context, spec JobSpec, timeout time.Duration) (*ir.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fail(ChildCrash, errors.Wrap(err, "marshal job spec"))
	}

	cmd := exec.CommandContext(ctx, h.ExecPath, WorkerMarker)
	cmd.Stdin = bytes.NewReader(specJSON)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fail(Timeout, errors.Errorf("worker exceeded %s", timeout))
	}
	if runErr != nil {
		corelog.Info.Printf("isolation: worker exited with error: %v, stderr=%q", runErr, stderr.String())
		return nil, fail(ChildCrash, errors.Wrap(runErr, "worker process"))
	}

	var out workerOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fail(IRInvalid, errors.Wrap(err, "malformed worker output"))
	}

	if out.Failure != nil {
		return nil, out.Failure
	}
	if out.Document == nil {
		return nil, fail(IRInvalid, errors.New("worker reported neither document nor failure"))
	}

	doc, err := fromWire(*out.Document)
	if err != nil {
		return nil, fail(IRInvalid, err)
	}

	// Re-validate every invariant I1-I6: the worker is untrusted from
	// a defense-in-depth standpoint, spec.md §4.2.4.
	if err := ir.Validate(doc, ir.Limits{}); err != nil {
		return nil, fail(IRInvalid, errors.Wrap(err, "re-validation after isolation boundary"))
	}

	return doc, nil
}

// RunWorker is the entry point cmd/pdfsanitize dispatches to when
// os.Args[1] equals WorkerMarker. It decodes its job spec from stdin,
// applies the process-level resource limits using the configured
// memory ceiling, parses the whitelist parser's input, and writes
// exactly one workerOutput to stdout before exiting 0 (a crash or
// resource-limit kill is detected by the parent via a non-zero exit /
// timeout, not by any payload this function controls).
//
// The job spec is decoded before limits are applied, ahead of the
// "must run before any untrusted input is read" rule: the spec itself
// is authored by the trusted parent Controller, not by the PDF being
// sanitized. The attacker-controlled bytes are spec.InputPath's
// contents, and those are read only after applyResourceLimits runs.
func RunWorker(stdin, stdout *os.File) int {
	var spec JobSpec
	if err := json.NewDecoder(stdin).Decode(&spec); err != nil {
		corelog.Info.Printf("isolation: malformed job spec: %v", err)
		return 1
	}

	if err := applyResourceLimits(spec.MemoryLimitBytes); err != nil {
		corelog.Info.Printf("isolation: failed to apply resource limits: %v", err)
		return 1
	}

	data, err := os.ReadFile(spec.InputPath)
	if err != nil {
		corelog.Info.Printf("isolation: cannot read input: %v", err)
		return 1
	}

	doc, err := whitelist.Parse(data, spec.Limits)
	var out workerOutput
	if err != nil {
		var pf *whitelist.ParseFailure
		if errors.As(err, &pf) {
			out.Failure = pf
		} else {
			corelog.Info.Printf("isolation: unexpected parser error: %v", err)
			return 1
		}
	} else {
		w := toWire(doc)
		out.Document = &w
	}

	enc := json.NewEncoder(stdout)
	if err := enc.Encode(out); err != nil {
		corelog.Info.Printf("isolation: failed to write worker output: %v", err)
		return 1
	}
	return 0
}
