package isolation

import (
	"encoding/base64"
	"encoding/json"

	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/pkg/errors"
)

// wireDocument is the self-describing structure exchanged over the
// pipe between worker and controller. ir.Op is a closed interface, not
// directly JSON-marshalable, so every operator is tagged with its kind
// and a flat field set; toWireOp/fromWireOp is the single place that
// enumeration has to stay in sync with internal/ir's Op types.
type wireDocument struct {
	SourceSHA256  string        `json:"source_sha256"`
	ParserVersion string        `json:"parser_version"`
	Pages         []wirePage    `json:"pages"`
	Threats       []wireThreat  `json:"threats,omitempty"`
}

type wireThreat struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Locator  string `json:"locator"`
	Action   string `json:"action"`
}

type wirePage struct {
	MediaBox   [4]float64           `json:"media_box"`
	CropBox    *[4]float64          `json:"crop_box,omitempty"`
	ContentOps []wireOp             `json:"content_ops"`
	Fonts      map[string]string    `json:"fonts"`
	Images     map[string]wireImage `json:"images"`
}

type wireImage struct {
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	ColorSpace  string   `json:"color_space"`
	BitsPerComp int      `json:"bits_per_comp"`
	FilterChain []string `json:"filter_chain"`
	PixelData   string   `json:"pixel_data"` // base64
}

type wireOp struct {
	Kind   string              `json:"kind"`
	Floats []float64           `json:"floats,omitempty"`
	Bytes  string              `json:"bytes,omitempty"` // base64
	Name   string              `json:"name,omitempty"`
	Array  []wireTJElem        `json:"array,omitempty"`
}

type wireTJElem struct {
	Bytes    string  `json:"bytes,omitempty"`
	Adjust   float64 `json:"adjust,omitempty"`
	IsAdjust bool    `json:"is_adjust,omitempty"`
}

func toWire(doc *ir.Document) wireDocument {
	w := wireDocument{
		SourceSHA256:  base64.StdEncoding.EncodeToString(doc.SourceSHA256[:]),
		ParserVersion: doc.ParserVersion,
	}
	for _, p := range doc.Pages {
		w.Pages = append(w.Pages, toWirePage(p))
	}
	for _, th := range doc.Threats {
		w.Threats = append(w.Threats, wireThreat{Kind: th.Kind, Severity: th.Severity, Locator: th.Locator, Action: th.Action})
	}
	return w
}

func toWirePage(p *ir.Page) wirePage {
	wp := wirePage{
		MediaBox: [4]float64{p.MediaBox.X0, p.MediaBox.Y0, p.MediaBox.X1, p.MediaBox.Y1},
		Fonts:    map[string]string{},
		Images:   map[string]wireImage{},
	}
	if p.CropBox != nil {
		cb := [4]float64{p.CropBox.X0, p.CropBox.Y0, p.CropBox.X1, p.CropBox.Y1}
		wp.CropBox = &cb
	}
	for name, f := range p.Fonts {
		wp.Fonts[name] = f.BaseFont
	}
	for name, img := range p.Images {
		wp.Images[name] = wireImage{
			Width:       img.Width,
			Height:      img.Height,
			ColorSpace:  string(img.ColorSpace),
			BitsPerComp: img.BitsPerComp,
			FilterChain: img.FilterChain,
			PixelData:   base64.StdEncoding.EncodeToString(img.PixelData),
		}
	}
	for _, op := range p.ContentOps {
		wp.ContentOps = append(wp.ContentOps, toWireOp(op))
	}
	return wp
}

func toWireOp(op ir.Op) wireOp {
	switch o := op.(type) {
	case ir.TextBegin:
		return wireOp{Kind: "BT"}
	case ir.TextEnd:
		return wireOp{Kind: "ET"}
	case ir.TextMoveAbs:
		return wireOp{Kind: "Td", Floats: []float64{o.X, o.Y}}
	case ir.TextMoveRel:
		return wireOp{Kind: "TD", Floats: []float64{o.X, o.Y}}
	case ir.TextMoveNext:
		return wireOp{Kind: "T*"}
	case ir.SetTextMatrix:
		return wireOp{Kind: "Tm", Floats: []float64{o.A, o.B, o.C, o.D, o.E, o.F}}
	case ir.SetFont:
		return wireOp{Kind: "Tf", Name: o.Name, Floats: []float64{o.Size}}
	case ir.ShowText:
		return wireOp{Kind: "Tj", Bytes: base64.StdEncoding.EncodeToString(o.Bytes)}
	case ir.ShowTextArray:
		var arr []wireTJElem
		for _, e := range o.Elems {
			arr = append(arr, wireTJElem{
				Bytes:    base64.StdEncoding.EncodeToString(e.Bytes),
				Adjust:   e.Adjust,
				IsAdjust: e.IsAdjust,
			})
		}
		return wireOp{Kind: "TJ", Array: arr}
	case ir.MoveTo:
		return wireOp{Kind: "m", Floats: []float64{o.X, o.Y}}
	case ir.LineTo:
		return wireOp{Kind: "l", Floats: []float64{o.X, o.Y}}
	case ir.CurveTo:
		return wireOp{Kind: "c", Floats: []float64{o.X1, o.Y1, o.X2, o.Y2, o.X3, o.Y3}}
	case ir.ClosePath:
		return wireOp{Kind: "h"}
	case ir.Rect:
		return wireOp{Kind: "re", Floats: []float64{o.X, o.Y, o.W, o.H}}
	case ir.Fill:
		return wireOp{Kind: "f"}
	case ir.Stroke:
		return wireOp{Kind: "S"}
	case ir.EndPath:
		return wireOp{Kind: "n"}
	case ir.SaveGraphicsState:
		return wireOp{Kind: "q"}
	case ir.RestoreGraphicsState:
		return wireOp{Kind: "Q"}
	case ir.InvokeXObject:
		return wireOp{Kind: "Do", Name: o.Name}
	}
	return wireOp{Kind: "?"}
}

func fromWire(w wireDocument) (*ir.Document, error) {
	doc := &ir.Document{ParserVersion: w.ParserVersion}
	raw, err := base64.StdEncoding.DecodeString(w.SourceSHA256)
	if err != nil || len(raw) != 32 {
		return nil, errors.New("isolation: malformed source_sha256 in wire document")
	}
	copy(doc.SourceSHA256[:], raw)

	for _, wp := range w.Pages {
		p, err := fromWirePage(wp)
		if err != nil {
			return nil, err
		}
		doc.Pages = append(doc.Pages, p)
	}
	for _, wth := range w.Threats {
		doc.Threats = append(doc.Threats, ir.Threat{Kind: wth.Kind, Severity: wth.Severity, Locator: wth.Locator, Action: wth.Action})
	}
	return doc, nil
}

func fromWirePage(wp wirePage) (*ir.Page, error) {
	p := &ir.Page{
		MediaBox: ir.Box{X0: wp.MediaBox[0], Y0: wp.MediaBox[1], X1: wp.MediaBox[2], Y1: wp.MediaBox[3]},
		Fonts:    map[string]ir.FontRef{},
		Images:   map[string]ir.ImageRef{},
	}
	if wp.CropBox != nil {
		p.CropBox = &ir.Box{X0: wp.CropBox[0], Y0: wp.CropBox[1], X1: wp.CropBox[2], Y1: wp.CropBox[3]}
	}
	for name, base := range wp.Fonts {
		p.Fonts[name] = ir.FontRef{BaseFont: base}
	}
	for name, img := range wp.Images {
		pix, err := base64.StdEncoding.DecodeString(img.PixelData)
		if err != nil {
			return nil, errors.Wrapf(err, "isolation: image %q pixel data", name)
		}
		p.Images[name] = ir.ImageRef{
			Width:       img.Width,
			Height:      img.Height,
			ColorSpace:  ir.ColorSpace(img.ColorSpace),
			BitsPerComp: img.BitsPerComp,
			FilterChain: img.FilterChain,
			PixelData:   pix,
		}
	}
	for _, wo := range wp.ContentOps {
		op, err := fromWireOp(wo)
		if err != nil {
			return nil, err
		}
		p.ContentOps = append(p.ContentOps, op)
	}
	return p, nil
}

func fromWireOp(w wireOp) (ir.Op, error) {
	decode := func(s string) []byte {
		b, _ := base64.StdEncoding.DecodeString(s)
		return b
	}
	floatCounts := map[string]int{"Td": 2, "TD": 2, "Tm": 6, "Tf": 1, "m": 2, "l": 2, "c": 6, "re": 4}
	if n, ok := floatCounts[w.Kind]; ok && len(w.Floats) != n {
		return nil, errors.Errorf("isolation: wire op %q has %d operands, want %d", w.Kind, len(w.Floats), n)
	}
	switch w.Kind {
	case "BT":
		return ir.TextBegin{}, nil
	case "ET":
		return ir.TextEnd{}, nil
	case "Td":
		return ir.TextMoveAbs{X: w.Floats[0], Y: w.Floats[1]}, nil
	case "TD":
		return ir.TextMoveRel{X: w.Floats[0], Y: w.Floats[1]}, nil
	case "T*":
		return ir.TextMoveNext{}, nil
	case "Tm":
		f := w.Floats
		return ir.SetTextMatrix{A: f[0], B: f[1], C: f[2], D: f[3], E: f[4], F: f[5]}, nil
	case "Tf":
		return ir.SetFont{Name: w.Name, Size: w.Floats[0]}, nil
	case "Tj":
		return ir.ShowText{Bytes: decode(w.Bytes)}, nil
	case "TJ":
		var elems []ir.ShowTextArrayElem
		for _, e := range w.Array {
			if e.IsAdjust {
				elems = append(elems, ir.ShowTextArrayElem{Adjust: e.Adjust, IsAdjust: true})
				continue
			}
			elems = append(elems, ir.ShowTextArrayElem{Bytes: decode(e.Bytes)})
		}
		return ir.ShowTextArray{Elems: elems}, nil
	case "m":
		return ir.MoveTo{X: w.Floats[0], Y: w.Floats[1]}, nil
	case "l":
		return ir.LineTo{X: w.Floats[0], Y: w.Floats[1]}, nil
	case "c":
		f := w.Floats
		return ir.CurveTo{X1: f[0], Y1: f[1], X2: f[2], Y2: f[3], X3: f[4], Y3: f[5]}, nil
	case "h":
		return ir.ClosePath{}, nil
	case "re":
		f := w.Floats
		return ir.Rect{X: f[0], Y: f[1], W: f[2], H: f[3]}, nil
	case "f":
		return ir.Fill{}, nil
	case "S":
		return ir.Stroke{}, nil
	case "n":
		return ir.EndPath{}, nil
	case "q":
		return ir.SaveGraphicsState{}, nil
	case "Q":
		return ir.RestoreGraphicsState{}, nil
	case "Do":
		return ir.InvokeXObject{Name: w.Name}, nil
	}
	return nil, errors.Errorf("isolation: unknown wire op kind %q", w.Kind)
}

func marshalDocument(doc *ir.Document) ([]byte, error) {
	return json.Marshal(toWire(doc))
}

func unmarshalDocument(data []byte) (*ir.Document, error) {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(err, "isolation: malformed wire document JSON")
	}
	return fromWire(w)
}
