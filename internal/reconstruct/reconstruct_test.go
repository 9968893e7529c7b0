package reconstruct_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/mechiko/pdfsanitize/internal/reconstruct"
	"github.com/mechiko/pdfsanitize/internal/whitelist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *ir.Document {
	return &ir.Document{
		ParserVersion: "test",
		Pages: []*ir.Page{
			{
				MediaBox: ir.Box{X0: 0, Y0: 0, X1: 612, Y1: 792},
				ContentOps: []ir.Op{
					ir.TextBegin{},
					ir.TextMoveAbs{X: 72, Y: 720},
					ir.ShowText{Bytes: []byte("Hello")},
					ir.TextEnd{},
				},
				Fonts: map[string]ir.FontRef{"F1": {BaseFont: "Helvetica"}},
			},
		},
	}
}

func TestReconstructWritesDeterministicOutput(t *testing.T) {
	doc := sampleDocument()

	dir := t.TempDir()
	out1 := filepath.Join(dir, "out1.pdf")
	out2 := filepath.Join(dir, "out2.pdf")

	res1, err := reconstruct.Reconstruct(doc, out1)
	require.NoError(t, err)
	res2, err := reconstruct.Reconstruct(doc, out2)
	require.NoError(t, err)

	assert.Equal(t, res1.SHA256, res2.SHA256)
	assert.Equal(t, res1.Bytes, res2.Bytes)
}

func TestReconstructOutputReparsesCleanly(t *testing.T) {
	doc := sampleDocument()
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pdf")

	_, err := reconstruct.Reconstruct(doc, out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	reparsed, err := whitelist.Parse(data, whitelist.Limits{})
	require.NoError(t, err)
	require.Len(t, reparsed.Pages, 1)
	assert.Equal(t, doc.Pages[0].MediaBox, reparsed.Pages[0].MediaBox)
}

func TestReconstructRejectsEmptyDocument(t *testing.T) {
	doc := &ir.Document{}
	_, err := reconstruct.Reconstruct(doc, filepath.Join(t.TempDir(), "out.pdf"))
	require.Error(t, err)
}
