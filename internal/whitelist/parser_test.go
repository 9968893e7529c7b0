package whitelist_test

import (
	"strings"
	"testing"

	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/mechiko/pdfsanitize/internal/whitelist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalPDF(content string) []byte {
	var sb strings.Builder
	sb.WriteString("%PDF-1.4\n")
	sb.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	sb.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	sb.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
		"/Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n")
	sb.WriteString("4 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")
	sb.WriteString("5 0 obj\n<< /Length 0 >>\nstream\n")
	sb.WriteString(content)
	sb.WriteString("\nendstream\nendobj\n")
	sb.WriteString("%%EOF\n")
	return []byte(sb.String())
}

func TestParseMinimalDocument(t *testing.T) {
	buf := minimalPDF("BT\n72 720 Td\n(Hello, sanitizer!) Tj\nET\n")

	doc, err := whitelist.Parse(buf, whitelist.Limits{})
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)

	page := doc.Pages[0]
	assert.Equal(t, ir.Box{X0: 0, Y0: 0, X1: 612, Y1: 792}, page.MediaBox)
	assert.Len(t, page.ContentOps, 4)
	assert.Contains(t, page.Fonts, "F1")
	assert.Equal(t, "Helvetica", page.Fonts["F1"].BaseFont)
}

func TestParseRejectsNonPDFMagic(t *testing.T) {
	_, err := whitelist.Parse([]byte("not a pdf at all"), whitelist.Limits{})
	require.Error(t, err)
	var pf *whitelist.ParseFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, whitelist.NotAPDF, pf.Reason)
}

func TestParseRejectsOversizedInput(t *testing.T) {
	buf := minimalPDF("BT\n72 720 Td\n(Hi) Tj\nET\n")

	_, err := whitelist.Parse(buf, whitelist.Limits{MaxInputBytes: 10})
	require.Error(t, err)
	var pf *whitelist.ParseFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, whitelist.LimitExceeded, pf.Reason)
}

func TestParseRejectsDisallowedContentOperator(t *testing.T) {
	buf := minimalPDF("1 0 0 RG\n(Hi) Tj\n")

	_, err := whitelist.Parse(buf, whitelist.Limits{Policy: whitelist.PolicyStrict})
	require.Error(t, err)
	var pf *whitelist.ParseFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, whitelist.DisallowedConstruct, pf.Reason)
}

func pdfWithCatalogOpenAction() []byte {
	var sb strings.Builder
	sb.WriteString("%PDF-1.4\n")
	sb.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R /OpenAction << /S /JavaScript /JS (app.alert(1)) >> >>\nendobj\n")
	sb.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	sb.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>\nendobj\n")
	sb.WriteString("4 0 obj\n<< /Length 0 >>\nstream\n\nendstream\nendobj\n")
	sb.WriteString("%%EOF\n")
	return []byte(sb.String())
}

func TestParseStrictRejectsCatalogOpenAction(t *testing.T) {
	buf := pdfWithCatalogOpenAction()

	_, err := whitelist.Parse(buf, whitelist.Limits{Policy: whitelist.PolicyStrict})
	require.Error(t, err)
	var pf *whitelist.ParseFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, whitelist.DisallowedConstruct, pf.Reason)
	assert.Equal(t, "Catalog", pf.Locator)
}

func TestParsePermissiveStripsCatalogOpenActionAndRecordsThreat(t *testing.T) {
	buf := pdfWithCatalogOpenAction()

	doc, err := whitelist.Parse(buf, whitelist.Limits{Policy: whitelist.PolicyPermissive})
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)

	require.NotEmpty(t, doc.Threats)
	found := false
	for _, th := range doc.Threats {
		if th.Kind == "OpenAction" && th.Locator == "Catalog" && th.Action == "REMOVED" {
			found = true
		}
	}
	assert.True(t, found, "expected an OpenAction threat recorded against Catalog, got %+v", doc.Threats)
}

func pdfWithPageAnnots() []byte {
	var sb strings.Builder
	sb.WriteString("%PDF-1.4\n")
	sb.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	sb.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	sb.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [5 0 R] /Contents 4 0 R >>\nendobj\n")
	sb.WriteString("4 0 obj\n<< /Length 0 >>\nstream\n\nendstream\nendobj\n")
	sb.WriteString("5 0 obj\n<< /Type /Annot /Subtype /Link >>\nendobj\n")
	sb.WriteString("%%EOF\n")
	return []byte(sb.String())
}

func TestParseStrictRejectsPageAnnots(t *testing.T) {
	buf := pdfWithPageAnnots()

	_, err := whitelist.Parse(buf, whitelist.Limits{Policy: whitelist.PolicyStrict})
	require.Error(t, err)
	var pf *whitelist.ParseFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, whitelist.DisallowedConstruct, pf.Reason)
	assert.Equal(t, "Page[0]", pf.Locator)
}

func TestParsePermissiveStripsPageAnnots(t *testing.T) {
	buf := pdfWithPageAnnots()

	doc, err := whitelist.Parse(buf, whitelist.Limits{Policy: whitelist.PolicyPermissive})
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	require.NotEmpty(t, doc.Threats)
	assert.Equal(t, "Annots", doc.Threats[0].Kind)
}

func TestParsePermissivePolicyFailsWhenNoPageSurvives(t *testing.T) {
	// A single-page document where the only page is malformed: under
	// PERMISSIVE policy this must still fail since zero pages survive.
	buf := minimalPDF("garbage-operator-stream\n")

	_, err := whitelist.Parse(buf, whitelist.Limits{Policy: whitelist.PolicyPermissive})
	require.Error(t, err)
}
