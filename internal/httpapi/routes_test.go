package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mechiko/pdfsanitize/internal/audit"
	"github.com/mechiko/pdfsanitize/internal/config"
	"github.com/mechiko/pdfsanitize/internal/isolation"
	"github.com/mechiko/pdfsanitize/internal/pipeline"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess lets this package's own compiled test binary act as
// the isolation worker, mirroring internal/isolation's and
// internal/pipeline's own subprocess-test convention.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("PDFSANITIZE_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)
	os.Exit(isolation.RunWorker(os.Stdin, os.Stdout))
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

func testController(t *testing.T, outputRoot string) *pipeline.Controller {
	t.Helper()
	// The harness starts os.Args[0] with only the worker marker; the
	// child test binary inherits this variable, so its TestHelperProcess
	// runs the worker.
	t.Setenv("PDFSANITIZE_WANT_HELPER_PROCESS", "1")
	cfg := config.Default()
	cfg.Timeout = 5 * time.Second
	w := &audit.Writer{Dir: t.TempDir()}
	key, err := audit.DeriveKey([]byte("test-secret"), "ref")
	require.NoError(t, err)
	harness := isolation.Harness{ExecPath: os.Args[0]}
	return pipeline.New(cfg, harness, w, key, outputRoot, 1000)
}

func jobRequestStub(inputPath string) pipeline.JobRequest {
	return pipeline.JobRequest{
		InputPath: inputPath,
		Operator:  "jdoe",
		Policy:    config.PolicyAggressive,
	}
}

func testService(t *testing.T, ctrl *pipeline.Controller) *JobService {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewJobService(ctx, ctrl)
}

func newTestEcho(jobs *JobService) *echo.Echo {
	e := echo.New()
	registerRoutes(e, jobs)
	return e
}

func TestSubmitJobRejectsMissingInputPath(t *testing.T) {
	dir := t.TempDir()
	e := newTestEcho(testService(t, testController(t, dir)))
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitJobAcceptsWellFormedRequest(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/doc.pdf"
	require.NoError(t, os.WriteFile(path, minimalPDF("BT ET"), 0o644))

	jobs := testService(t, testController(t, dir))
	e := newTestEcho(jobs)
	body := fmt.Sprintf(`{"input_path":%q,"operator":"jdoe","workstation_id":"WS-1"}`, path)
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), `"job_id"`)
}

func TestGetJobStatusReturns404ForUnknownID(t *testing.T) {
	dir := t.TempDir()
	e := newTestEcho(testService(t, testController(t, dir)))
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/does-not-exist", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobStatusReachesCompletedAfterSubmit(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/doc.pdf"
	require.NoError(t, os.WriteFile(path, minimalPDF("BT /F1 12 Tf (hi) Tj ET"), 0o644))

	jobs := testService(t, testController(t, dir))
	id := jobs.Enqueue(jobRequestStub(path))

	require.Eventually(t, func() bool {
		rec, ok := jobs.Lookup(id)
		return ok && rec.State == JobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	e := newTestEcho(jobs)
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+id, nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), string(audit.StatusSuccess))
}
