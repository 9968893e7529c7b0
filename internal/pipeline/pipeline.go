// Package pipeline implements the single orchestrator that accepts
// sanitization jobs, enforces the input/output preconditions, drives
// the isolated parser and reconstructor, and finalizes the audit
// record (§4.4). One Controller processes one job at a time; multiple
// Controllers, each with their own worker and event-id space, are how
// throughput scales (§5).
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mechiko/pdfsanitize/internal/audit"
	"github.com/mechiko/pdfsanitize/internal/config"
	"github.com/mechiko/pdfsanitize/internal/failure"
	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/mechiko/pdfsanitize/internal/isolation"
	"github.com/mechiko/pdfsanitize/internal/reconstruct"
	"github.com/mechiko/pdfsanitize/internal/whitelist"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Policy mirrors config.Policy at the job-request boundary so callers
// outside internal/config (e.g. internal/httpapi) don't need to import
// it just to select a policy per job.
type Policy = config.Policy

// JobRequest is the one public entry point's input (§4.4).
type JobRequest struct {
	InputPath         string
	OutputPath        string // empty: derive from input stem
	Operator          string
	WorkstationID     string
	ClassificationTag string
	Policy            Policy
	// SourceReadonlyAttested must be true when the controller's
	// configuration requires source_readonly_required.
	SourceReadonlyAttested bool
}

// JobResult is everything Submit returns: enough for the caller to
// locate the sanitized file and the audit record, without exposing any
// internal IR or worker detail.
type JobResult struct {
	EventID      string
	Status       audit.Status
	OutputPath   string
	FailureTaxon failure.Taxon
	Locator      string
	Err          error
}

// Controller is the single orchestrator. Zero value is not usable;
// construct with New.
type Controller struct {
	Config      *config.Configuration
	Harness     isolation.Harness
	AuditWriter *audit.Writer
	HMACKey     []byte
	OutputRoot  string // fallback output directory (§4.4 step 2)

	seq     audit.Sequence
	limiter *rate.Limiter
}

// New builds a Controller rate-limited to maxSubmitsPerSecond
// submissions (burst 1, since jobs are processed strictly FIFO and
// one at a time regardless).
func New(cfg *config.Configuration, harness isolation.Harness, writer *audit.Writer, hmacKey []byte, outputRoot string, maxSubmitsPerSecond float64) *Controller {
	return &Controller{
		Config:      cfg,
		Harness:     harness,
		AuditWriter: writer,
		HMACKey:     hmacKey,
		OutputRoot:  outputRoot,
		limiter:     rate.NewLimiter(rate.Limit(maxSubmitsPerSecond), 1),
	}
}

// Submit runs one job to completion, synchronously. The controller
// processes jobs strictly one at a time (§5); callers serialize their
// own calls to Submit, or wrap a Controller in their own queue.
func (c *Controller) Submit(ctx context.Context, req JobRequest) JobResult {
	start := time.Now()
	eventID, ts := c.seq.Next(time.Now())

	if err := c.limiter.Wait(ctx); err != nil {
		return c.fail(eventID, ts, req, start, failure.New(failure.IO, "", err), nil)
	}

	inputBytes, inputSHA, jf := c.gatePreconditions(req)
	if jf != nil {
		return c.fail(eventID, ts, req, start, jf, nil)
	}

	outPath, jf := c.planOutputPath(req)
	if jf != nil {
		return c.fail(eventID, ts, req, start, jf, nil)
	}

	spec := isolation.JobSpec{InputPath: req.InputPath, Limits: c.parseLimits(req.Policy), MemoryLimitBytes: c.Config.MemoryLimitBytes}
	doc, err := c.Harness.ParseIsolated(ctx, spec, c.Config.Timeout)
	if err != nil {
		return c.fail(eventID, ts, req, start, failure.Classify(err), nil)
	}

	result, err := reconstruct.Reconstruct(doc, outPath)
	if err != nil {
		return c.fail(eventID, ts, req, start, failure.New(failure.InvariantViolation, "", err), toAuditThreats(doc.Threats))
	}

	outputSHA := hex.EncodeToString(result.SHA256[:])
	elapsed := time.Since(start)

	ev := &audit.Event{
		EventID:           eventID,
		UTCTimestamp:      ts,
		WorkstationID:     req.WorkstationID,
		Operator:          req.Operator,
		ClassificationTag: req.ClassificationTag,
		Document: audit.DocumentInfo{
			OriginalName:    filepath.Base(req.InputPath),
			OriginalSHA256:  inputSHA,
			OriginalBytes:   inputBytes,
			SanitizedName:   filepath.Base(outPath),
			SanitizedSHA256: outputSHA,
			SanitizedBytes:  result.Bytes,
			ProcessingMs:    elapsed.Milliseconds(),
		},
		ThreatsRemoved: toAuditThreats(doc.Threats),
		Policy:         string(req.Policy),
		Status:         audit.StatusSuccess,
	}
	audit.Sign(ev, c.HMACKey)

	if err := c.AuditWriter.Append(ev); err != nil {
		return JobResult{
			EventID:      eventID,
			Status:       audit.StatusFailed,
			FailureTaxon: failure.AuditWriteFailed,
			Err:          err,
		}
	}

	c.cleanup(inputBytes)

	return JobResult{EventID: eventID, Status: audit.StatusSuccess, OutputPath: outPath}
}

func (c *Controller) gatePreconditions(req JobRequest) (int64, string, *failure.JobFailure) {
	if c.Config.SourceReadonlyRequired && !req.SourceReadonlyAttested {
		return 0, "", failure.New(failure.SourceNotReadonly, req.InputPath, errors.New("source medium not attested read-only"))
	}

	if !strings.EqualFold(filepath.Ext(req.InputPath), ".pdf") {
		return 0, "", failure.New(failure.NotAPDF, req.InputPath, errors.New("missing .pdf extension"))
	}
	if strings.Contains(req.InputPath, "..") {
		return 0, "", failure.New(failure.NotAPDF, req.InputPath, errors.New("path traversal component in input path"))
	}

	info, err := os.Stat(req.InputPath)
	if err != nil {
		return 0, "", failure.New(failure.IO, req.InputPath, err)
	}
	if info.Size() > c.Config.MaxInputBytes {
		return 0, "", failure.New(failure.Oversize, req.InputPath, errors.Errorf("input is %d bytes, max is %d", info.Size(), c.Config.MaxInputBytes))
	}

	f, err := os.Open(req.InputPath)
	if err != nil {
		return 0, "", failure.New(failure.IO, req.InputPath, err)
	}
	defer f.Close()

	magic := make([]byte, 5)
	if _, err := f.Read(magic); err != nil || string(magic) != "%PDF-" {
		return 0, "", failure.New(failure.NotAPDF, req.InputPath, errors.New("missing %PDF- magic bytes"))
	}

	h := sha256.New()
	if _, err := f.Seek(0, 0); err != nil {
		return 0, "", failure.New(failure.IO, req.InputPath, err)
	}
	if _, err := io.Copy(h, f); err != nil {
		return 0, "", failure.New(failure.IO, req.InputPath, err)
	}

	return info.Size(), hex.EncodeToString(h.Sum(nil)), nil
}

func (c *Controller) planOutputPath(req JobRequest) (string, *failure.JobFailure) {
	if req.OutputPath != "" {
		return req.OutputPath, nil
	}
	stem := strings.TrimSuffix(filepath.Base(req.InputPath), filepath.Ext(req.InputPath))
	sibling := filepath.Join(filepath.Dir(req.InputPath), stem+"_sanitized.pdf")
	if writable(filepath.Dir(sibling)) {
		return sibling, nil
	}
	if c.OutputRoot == "" {
		return "", failure.New(failure.IO, req.InputPath, errors.New("sibling directory not writable and no fallback output root configured"))
	}
	return filepath.Join(c.OutputRoot, stem+"_sanitized.pdf"), nil
}

func writable(dir string) bool {
	probe := filepath.Join(dir, ".pdfsanitize-write-probe")
	f, err := os.Create(probe)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}

func (c *Controller) parseLimits(jobPolicy Policy) whitelist.Limits {
	if jobPolicy == "" {
		jobPolicy = c.Config.Policy
	}
	policy := whitelist.PolicyPermissive
	if jobPolicy == config.PolicyAggressive {
		policy = whitelist.PolicyStrict
	}
	return whitelist.Limits{
		MaxInputBytes:        c.Config.MaxInputBytes,
		MaxPages:             c.Config.MaxPages,
		MaxOpsPerPage:        c.Config.MaxOpsPerPage,
		MaxImagePixels:       c.Config.MaxImagePixels,
		MaxDecodeOutputBytes: c.Config.MaxDecodeOutputBytes,
		Policy:               policy,
	}
}

// fail finalizes a non-success job outcome. threats carries whatever
// the parser had already recorded before the fatal failure occurred
// (empty when the failure predates a Document ever being produced,
// e.g. a precondition or isolation failure).
func (c *Controller) fail(eventID string, ts time.Time, req JobRequest, start time.Time, jf *failure.JobFailure, threatsRemoved []audit.ThreatRemoved) JobResult {
	status := audit.StatusFailed
	switch jf.Taxon {
	case failure.Timeout:
		status = audit.StatusTimeout
	case failure.DisallowedConstruct, failure.NotAPDF, failure.Truncated, failure.UnsupportedVersion,
		failure.Encrypted, failure.Oversize, failure.SourceNotReadonly, failure.Malformed, failure.LimitExceeded,
		failure.DecompressionBudgetExceeded:
		status = audit.StatusRejected
	case failure.ChildCrash, failure.IRInvalid:
		// StatusCompromiseAbort is reserved for an external watchdog
		// signaling the controller to halt and refuse further jobs
		// (spec.md §5); a single job's isolation failure is routine and
		// must not be reported as a controller-wide compromise.
		status = audit.StatusFailed
	}

	ev := &audit.Event{
		EventID:           eventID,
		UTCTimestamp:      ts,
		WorkstationID:     req.WorkstationID,
		Operator:          req.Operator,
		ClassificationTag: req.ClassificationTag,
		Document: audit.DocumentInfo{
			OriginalName: filepath.Base(req.InputPath),
			ProcessingMs: time.Since(start).Milliseconds(),
		},
		ThreatsRemoved: threatsRemoved,
		Policy:         string(req.Policy),
		Status:         status,
		FailureReason:  jf.Error(),
	}
	audit.Sign(ev, c.HMACKey)
	_ = c.AuditWriter.Append(ev) // best effort: the JobResult below still reports the real failure

	return JobResult{
		EventID:      eventID,
		Status:       status,
		FailureTaxon: jf.Taxon,
		Locator:      jf.Locator,
		Err:          jf,
	}
}

// toAuditThreats converts the parser's IR-level threat records to the
// audit trail's shape.
func toAuditThreats(threats []ir.Threat) []audit.ThreatRemoved {
	if len(threats) == 0 {
		return nil
	}
	out := make([]audit.ThreatRemoved, len(threats))
	for i, t := range threats {
		out[i] = audit.ThreatRemoved{
			Kind:     t.Kind,
			Severity: audit.Severity(t.Severity),
			Locator:  t.Locator,
			Action:   audit.Action(t.Action),
		}
	}
	return out
}

func (c *Controller) cleanup(inputBytes int64) {
	// The worker's own temp directory is its own process's concern and
	// exits with it; here we only need to ensure no whole-document
	// buffer outlives the job, which reconstruct.Reconstruct already
	// guarantees by operating on the IR rather than the raw bytes. The
	// isolation boundary's own copy never leaves the child process.
	_ = inputBytes
}
