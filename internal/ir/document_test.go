package ir_test

import (
	"testing"

	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPage() *ir.Page {
	return &ir.Page{
		MediaBox: ir.Box{X0: 0, Y0: 0, X1: 612, Y1: 792},
		ContentOps: []ir.Op{
			ir.SaveGraphicsState{},
			ir.TextBegin{},
			ir.ShowText{Bytes: []byte("hi")},
			ir.TextEnd{},
			ir.RestoreGraphicsState{},
			ir.InvokeXObject{Name: "Im0"},
		},
		Fonts: map[string]ir.FontRef{
			"F1": {BaseFont: "Helvetica"},
		},
		Images: map[string]ir.ImageRef{
			"Im0": validImage(),
		},
	}
}

func validImage() ir.ImageRef {
	return ir.ImageRef{
		Width:       2,
		Height:      2,
		ColorSpace:  ir.DeviceGray,
		BitsPerComp: 8,
		FilterChain: []string{"FlateDecode"},
		PixelData:   []byte{1, 2, 3, 4},
	}
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	doc := &ir.Document{Pages: []*ir.Page{validPage()}, ParserVersion: "test"}
	require.NoError(t, ir.Validate(doc, ir.Limits{}))
}

func TestValidateRejectsDanglingXObject(t *testing.T) {
	p := validPage()
	p.ContentOps = append(p.ContentOps, ir.InvokeXObject{Name: "Missing"})
	doc := &ir.Document{Pages: []*ir.Page{p}}

	err := ir.Validate(doc, ir.Limits{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrDanglingXObject)
}

func TestValidateRejectsDanglingSetFont(t *testing.T) {
	p := validPage()
	p.ContentOps = append(p.ContentOps, ir.SetFont{Name: "Missing", Size: 12})
	doc := &ir.Document{Pages: []*ir.Page{p}}

	err := ir.Validate(doc, ir.Limits{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrDanglingFont)
}

func TestValidateRejectsNonStandardFont(t *testing.T) {
	p := validPage()
	p.Fonts["F2"] = ir.FontRef{BaseFont: "Arial"}
	doc := &ir.Document{Pages: []*ir.Page{p}}

	err := ir.Validate(doc, ir.Limits{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrDanglingFont)
}

func TestValidateRejectsDegenerateMediaBox(t *testing.T) {
	p := validPage()
	p.MediaBox = ir.Box{X0: 100, Y0: 0, X1: 50, Y1: 792}
	doc := &ir.Document{Pages: []*ir.Page{p}}

	err := ir.Validate(doc, ir.Limits{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrBadMediaBox)
}

func TestValidateRejectsUnbalancedSaveRestore(t *testing.T) {
	p := validPage()
	p.ContentOps = []ir.Op{ir.RestoreGraphicsState{}}
	doc := &ir.Document{Pages: []*ir.Page{p}}

	err := ir.Validate(doc, ir.Limits{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrUnbalancedOps)
}

func TestValidateRejectsUnclosedTextBlock(t *testing.T) {
	p := validPage()
	p.ContentOps = []ir.Op{ir.TextBegin{}, ir.ShowText{Bytes: []byte("x")}}
	doc := &ir.Document{Pages: []*ir.Page{p}}

	err := ir.Validate(doc, ir.Limits{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrUnbalancedOps)
}

func TestValidateRejectsGstateOverflow(t *testing.T) {
	p := validPage()
	ops := make([]ir.Op, 0, 10)
	for i := 0; i < 5; i++ {
		ops = append(ops, ir.SaveGraphicsState{})
	}
	p.ContentOps = ops
	doc := &ir.Document{Pages: []*ir.Page{p}}

	err := ir.Validate(doc, ir.Limits{MaxGstateDepth: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrUnbalancedOps)
}

func TestValidateRejectsImageSizeMismatch(t *testing.T) {
	p := validPage()
	img := p.Images["Im0"]
	img.PixelData = []byte{1, 2, 3} // one byte short of width*height*comp
	p.Images["Im0"] = img
	doc := &ir.Document{Pages: []*ir.Page{p}}

	err := ir.Validate(doc, ir.Limits{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrImageSizeMismatch)
}

func TestValidateRejectsTooManyPages(t *testing.T) {
	pages := make([]*ir.Page, 3)
	for i := range pages {
		pages[i] = validPage()
	}
	doc := &ir.Document{Pages: pages}

	err := ir.Validate(doc, ir.Limits{MaxPages: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrTooManyPages)
}

func TestValidateRejectsEmptyDocument(t *testing.T) {
	doc := &ir.Document{}
	require.Error(t, ir.Validate(doc, ir.Limits{}))
}
