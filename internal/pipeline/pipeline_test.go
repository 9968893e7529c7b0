package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mechiko/pdfsanitize/internal/audit"
	"github.com/mechiko/pdfsanitize/internal/config"
	"github.com/mechiko/pdfsanitize/internal/failure"
	"github.com/mechiko/pdfsanitize/internal/isolation"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess lets this package's own compiled test binary act
// as the isolation worker, mirroring internal/isolation's own
// subprocess-test convention.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("PDFSANITIZE_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)
	os.Exit(isolation.RunWorker(os.Stdin, os.Stdout))
}

func testHarness() isolation.Harness {
	return isolation.Harness{ExecPath: os.Args[0]}
}

func minimalPDF(content string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	obj := func(n int, body string) {
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", n, body)
	}
	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>")
	obj(4, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	fmt.Fprintf(&b, "5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content)
	b.WriteString("%%EOF\n")
	return []byte(b.String())
}

func newTestController(t *testing.T, outputRoot string) *Controller {
	t.Helper()
	// The harness starts os.Args[0] with only the worker marker; the
	// child test binary inherits this variable, so its TestHelperProcess
	// runs the worker.
	t.Setenv("PDFSANITIZE_WANT_HELPER_PROCESS", "1")
	cfg := config.Default()
	cfg.Timeout = 5 * time.Second
	auditDir := t.TempDir()
	w := &audit.Writer{Dir: auditDir}
	key, err := audit.DeriveKey([]byte("test-secret"), "ref")
	require.NoError(t, err)
	return New(cfg, testHarness(), w, key, outputRoot, 1000)
}

func TestGatePreconditionsRejectsNonPDFExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-pdf.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	c := newTestController(t, dir)
	_, _, jf := c.gatePreconditions(JobRequest{InputPath: path})
	require.NotNil(t, jf)
}

func TestGatePreconditionsRejectsOversizedInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.pdf")
	require.NoError(t, os.WriteFile(path, minimalPDF("BT ET"), 0o644))

	c := newTestController(t, dir)
	c.Config.MaxInputBytes = 1
	_, _, jf := c.gatePreconditions(JobRequest{InputPath: path})
	require.NotNil(t, jf)
}

func TestGatePreconditionsRejectsBadMagicBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	c := newTestController(t, dir)
	_, _, jf := c.gatePreconditions(JobRequest{InputPath: path})
	require.NotNil(t, jf)
}

func TestGatePreconditionsRequiresReadonlyAttestationWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, minimalPDF("BT ET"), 0o644))

	c := newTestController(t, dir)
	c.Config.SourceReadonlyRequired = true
	_, _, jf := c.gatePreconditions(JobRequest{InputPath: path, SourceReadonlyAttested: false})
	require.NotNil(t, jf)

	_, _, jf = c.gatePreconditions(JobRequest{InputPath: path, SourceReadonlyAttested: true})
	require.Nil(t, jf)
}

func TestPlanOutputPathPrefersSibling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, minimalPDF("BT ET"), 0o644))

	c := newTestController(t, "")
	out, jf := c.planOutputPath(JobRequest{InputPath: path})
	require.Nil(t, jf)
	require.Equal(t, filepath.Join(dir, "doc_sanitized.pdf"), out)
}

func TestSubmitEndToEndSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, minimalPDF("BT /F1 12 Tf (hi) Tj ET"), 0o644))

	c := newTestController(t, dir)
	res := c.Submit(context.Background(), JobRequest{
		InputPath:     path,
		Operator:      "jdoe",
		WorkstationID: "WS-1",
		Policy:        config.PolicyAggressive,
	})
	require.Equal(t, audit.StatusSuccess, res.Status)
	require.FileExists(t, res.OutputPath)
}

func TestFailMapsChildCrashToFailedNotCompromiseAbort(t *testing.T) {
	c := newTestController(t, t.TempDir())
	res := c.fail("EVT-TEST-1", time.Now(), JobRequest{InputPath: "x.pdf"}, time.Now(),
		failure.New(failure.ChildCrash, "", errors.New("worker crashed")), nil)

	require.Equal(t, audit.StatusFailed, res.Status)
	require.NotEqual(t, audit.StatusCompromiseAbort, res.Status)
}

func TestSubmitPermissivePolicyRecordsThreatsInAuditEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R /OpenAction << /S /JavaScript /JS (app.alert(1)) >> >>\nendobj\n")
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>\nendobj\n")
	b.WriteString("4 0 obj\n<< /Length 0 >>\nstream\n\nendstream\nendobj\n")
	b.WriteString("%%EOF\n")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	c := newTestController(t, dir)
	c.Config.Policy = config.PolicyLenient
	res := c.Submit(context.Background(), JobRequest{
		InputPath:     path,
		Operator:      "jdoe",
		WorkstationID: "WS-1",
		Policy:        config.PolicyLenient,
	})
	require.Equal(t, audit.StatusSuccess, res.Status)

	raw, err := os.ReadFile(filepath.Join(c.AuditWriter.Dir, res.EventID+".json"))
	require.NoError(t, err)
	var ev audit.Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	require.NotEmpty(t, ev.ThreatsRemoved)
	require.Equal(t, "OpenAction", ev.ThreatsRemoved[0].Kind)
}
