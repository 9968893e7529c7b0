package isolation

import (
	"testing"

	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/stretchr/testify/require"
)

func sampleDoc() *ir.Document {
	cropBox := &ir.Box{X0: 10, Y0: 10, X1: 590, Y1: 830}
	return &ir.Document{
		SourceSHA256:  [32]byte{1, 2, 3},
		ParserVersion: "pdfsanitize-whitelist/1",
		Pages: []*ir.Page{
			{
				MediaBox: ir.Box{X0: 0, Y0: 0, X1: 612, Y1: 792},
				CropBox:  cropBox,
				Fonts:    map[string]ir.FontRef{"F1": {BaseFont: "Helvetica"}},
				Images: map[string]ir.ImageRef{
					"Im1": {
						Width: 2, Height: 1, ColorSpace: ir.DeviceRGB, BitsPerComp: 8,
						FilterChain: []string{"FlateDecode"},
						PixelData:   []byte{255, 0, 0, 0, 255, 0},
					},
				},
				ContentOps: []ir.Op{
					ir.SaveGraphicsState{},
					ir.TextBegin{},
					ir.TextMoveAbs{X: 72, Y: 700},
					ir.SetTextMatrix{A: 1, B: 0, C: 0, D: 1, E: 72, F: 700},
					ir.SetFont{Name: "F1", Size: 12},
					ir.ShowText{Bytes: []byte("hello")},
					ir.ShowTextArray{Elems: []ir.ShowTextArrayElem{
						{Bytes: []byte("a")},
						{Adjust: -120, IsAdjust: true},
						{Bytes: []byte("b")},
					}},
					ir.TextEnd{},
					ir.MoveTo{X: 0, Y: 0},
					ir.LineTo{X: 10, Y: 0},
					ir.CurveTo{X1: 1, Y1: 2, X2: 3, Y2: 4, X3: 5, Y3: 6},
					ir.ClosePath{},
					ir.Rect{X: 0, Y: 0, W: 100, H: 50},
					ir.Fill{},
					ir.Stroke{},
					ir.EndPath{},
					ir.InvokeXObject{Name: "Im1"},
					ir.RestoreGraphicsState{},
				},
			},
		},
	}
}

func TestWireRoundTripPreservesDocument(t *testing.T) {
	doc := sampleDoc()
	data, err := marshalDocument(doc)
	require.NoError(t, err)

	got, err := unmarshalDocument(data)
	require.NoError(t, err)

	require.Equal(t, doc.SourceSHA256, got.SourceSHA256)
	require.Equal(t, doc.ParserVersion, got.ParserVersion)
	require.Len(t, got.Pages, 1)

	wantPage, gotPage := doc.Pages[0], got.Pages[0]
	require.Equal(t, wantPage.MediaBox, gotPage.MediaBox)
	require.NotNil(t, gotPage.CropBox)
	require.Equal(t, *wantPage.CropBox, *gotPage.CropBox)
	require.Equal(t, wantPage.Fonts, gotPage.Fonts)
	require.Equal(t, wantPage.Images["Im1"].PixelData, gotPage.Images["Im1"].PixelData)
	require.Equal(t, wantPage.ContentOps, gotPage.ContentOps)
}

func TestWireRoundTripNoCropBox(t *testing.T) {
	doc := sampleDoc()
	doc.Pages[0].CropBox = nil

	data, err := marshalDocument(doc)
	require.NoError(t, err)

	got, err := unmarshalDocument(data)
	require.NoError(t, err)
	require.Nil(t, got.Pages[0].CropBox)
}

func TestWireRoundTripPreservesThreats(t *testing.T) {
	doc := sampleDoc()
	doc.Threats = []ir.Threat{
		{Kind: "OpenAction", Severity: "CRITICAL", Locator: "Catalog", Action: "REMOVED"},
	}

	data, err := marshalDocument(doc)
	require.NoError(t, err)

	got, err := unmarshalDocument(data)
	require.NoError(t, err)
	require.Equal(t, doc.Threats, got.Threats)
}

func TestFromWireOpRejectsUnknownKind(t *testing.T) {
	_, err := fromWireOp(wireOp{Kind: "bogus"})
	require.Error(t, err)
}

func TestUnmarshalDocumentRejectsMalformedSHA(t *testing.T) {
	_, err := unmarshalDocument([]byte(`{"source_sha256":"!!not-base64!!","parser_version":"x","pages":[]}`))
	require.Error(t, err)
}
