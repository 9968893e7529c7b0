package whitelist

import (
	"bytes"

	"github.com/mechiko/pdfsanitize/internal/contentstream"
	"github.com/mechiko/pdfsanitize/internal/fonts"
	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/mechiko/pdfsanitize/internal/pdffilter"
	"github.com/mechiko/pdfsanitize/internal/pdfobj"
	"github.com/pkg/errors"
)

// inherited carries the page-tree attributes that PDF allows a Pages
// node to set once for every descendant leaf (§7.6.3 of the PDF
// spec): MediaBox, CropBox and Resources.
type inherited struct {
	dict      pdfobj.Dict
	mediaBox  pdfobj.Array
	cropBox   pdfobj.Array
	resources pdfobj.Dict
}

type parser struct {
	objects map[int]pdfobj.Object
	lim     Limits
	seen    map[int]bool
	threats []ir.Threat
}

// collectPages walks the /Pages tree depth-first, accumulating
// inherited attributes, and appends one inherited record per leaf
// page encountered. Cycles (a node appearing as its own descendant)
// are rejected rather than looped forever.
func (p *parser) collectPages(node pdfobj.Dict, parent inherited, out *[]inherited) error {
	cur := mergeInherited(parent, node)

	if t, _ := node.NameEntry("Type"); t == "Page" {
		*out = append(*out, cur)
		return nil
	}

	kids, ok := node.ArrayEntry("Kids")
	if !ok {
		return fail(Malformed, "Pages", errors.New("intermediate node missing /Kids"))
	}
	for _, k := range kids {
		ref, ok := k.(pdfobj.IndirectRef)
		if !ok {
			return fail(DisallowedConstruct, "Pages", errors.New("/Kids entry is not an indirect reference"))
		}
		if p.seen[ref.ObjectNumber] {
			return fail(DisallowedConstruct, "Pages", errors.New("cyclic page tree"))
		}
		p.seen[ref.ObjectNumber] = true

		kidDict, ok := resolveDict(p.objects, ref)
		if !ok {
			return fail(Malformed, "Pages", errors.New("dangling /Kids reference"))
		}
		if len(*out) > p.lim.MaxPages {
			return failf(LimitExceeded, "Pages", "exceeds %d pages while walking tree", p.lim.MaxPages)
		}
		if err := p.collectPages(kidDict, cur, out); err != nil {
			return err
		}
	}
	return nil
}

func mergeInherited(parent inherited, node pdfobj.Dict) inherited {
	cur := inherited{dict: node, mediaBox: parent.mediaBox, cropBox: parent.cropBox, resources: parent.resources}
	if mb, ok := node.ArrayEntry("MediaBox"); ok {
		cur.mediaBox = mb
	}
	if cb, ok := node.ArrayEntry("CropBox"); ok {
		cur.cropBox = cb
	}
	if res, ok := node.DictEntry("Resources"); ok {
		cur.resources = res
	}
	return cur
}

// buildPage resolves one leaf Page record, with MediaBox/CropBox/
// Resources already folded down through the page tree by collectPages
// (a Page node may omit any of the three and inherit its ancestor's).
func (p *parser) buildPage(page inherited, index int) (*ir.Page, error) {
	if err := p.checkBlockedKeys(page.dict, pageLocator(index)); err != nil {
		return nil, err
	}

	if page.mediaBox == nil {
		return nil, failf(Malformed, "Page", "page %d has no MediaBox (inherited or own)", index)
	}
	box, err := parseBox(page.mediaBox)
	if err != nil {
		return nil, failf(Malformed, "Page", "page %d: %v", index, err)
	}

	var cropBox *ir.Box
	if page.cropBox != nil {
		if b, err := parseBox(page.cropBox); err == nil {
			cropBox = &b
		}
	}

	resources := page.resources

	fontMap, err := p.buildFonts(resources)
	if err != nil {
		return nil, errors.Wrapf(err, "page %d", index)
	}
	imageMap, err := p.buildImages(resources)
	if err != nil {
		return nil, errors.Wrapf(err, "page %d", index)
	}

	contentBytes, err := p.concatContents(page.dict["Contents"])
	if err != nil {
		return nil, errors.Wrapf(err, "page %d", index)
	}

	ops, err := contentstream.Parse(contentBytes, p.lim.MaxOpsPerPage)
	if err != nil {
		return nil, failf(DisallowedConstruct, "Page.Contents", "page %d: %v", index, err)
	}

	return &ir.Page{
		MediaBox:   box,
		CropBox:    cropBox,
		ContentOps: ops,
		Fonts:      fontMap,
		Images:     imageMap,
	}, nil
}

func parseBox(a pdfobj.Array) (ir.Box, error) {
	if len(a) != 4 {
		return ir.Box{}, errors.New("box does not have 4 elements")
	}
	vals := make([]float64, 4)
	for i, o := range a {
		v, ok := asFloat(o)
		if !ok {
			return ir.Box{}, errors.New("box element is not numeric")
		}
		vals[i] = v
	}
	x0, y0, x1, y1 := vals[0], vals[1], vals[2], vals[3]
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return ir.Box{X0: x0, Y0: y0, X1: x1, Y1: y1}, nil
}

func asFloat(o pdfobj.Object) (float64, bool) {
	switch v := o.(type) {
	case pdfobj.Integer:
		return float64(v), true
	case pdfobj.Float:
		return float64(v), true
	}
	return 0, false
}

func (p *parser) buildFonts(resources pdfobj.Dict) (map[string]ir.FontRef, error) {
	out := map[string]ir.FontRef{}
	if resources == nil {
		return out, nil
	}
	fontDict, ok := resources.DictEntry("Font")
	if !ok {
		return out, nil
	}
	for name, ref := range fontDict {
		fd, ok := resolveDict(p.objects, ref)
		if !ok {
			return nil, failf(Malformed, "Resources.Font", "%q is dangling", name)
		}
		subtype, _ := fd.NameEntry("Subtype")
		if subtype != "Type1" {
			return nil, failf(DisallowedConstruct, "Resources.Font", "%q has subtype %q, only Type1 is allow-listed", name, subtype)
		}
		base, _ := fd.NameEntry("BaseFont")
		if err := fonts.Validate(base); err != nil {
			return nil, failf(DisallowedConstruct, "Resources.Font", "%q: %v", name, err)
		}
		out[name] = ir.FontRef{BaseFont: base}
	}
	return out, nil
}

func (p *parser) buildImages(resources pdfobj.Dict) (map[string]ir.ImageRef, error) {
	out := map[string]ir.ImageRef{}
	if resources == nil {
		return out, nil
	}
	xobjDict, ok := resources.DictEntry("XObject")
	if !ok {
		return out, nil
	}
	for name, ref := range xobjDict {
		sd, ok := resolveStream(p.objects, ref)
		if !ok {
			return nil, failf(Malformed, "Resources.XObject", "%q is dangling or not a stream", name)
		}
		subtype, _ := sd.NameEntry("Subtype")
		if subtype != "Image" {
			return nil, failf(DisallowedConstruct, "Resources.XObject", "%q has subtype %q, Form XObjects are not allow-listed", name, subtype)
		}
		img, err := p.buildImage(sd)
		if err != nil {
			return nil, errors.Wrapf(err, "image %q", name)
		}
		out[name] = img
	}
	return out, nil
}

func (p *parser) buildImage(sd pdfobj.StreamDict) (ir.ImageRef, error) {
	width, _ := sd.IntEntry("Width")
	height, _ := sd.IntEntry("Height")
	if width <= 0 || height <= 0 {
		return ir.ImageRef{}, fail(Malformed, "", errors.New("image missing Width/Height"))
	}
	if width*height > p.lim.MaxImagePixels {
		return ir.ImageRef{}, failf(LimitExceeded, "", "image is %dx%d, exceeds pixel budget", width, height)
	}

	csName, _ := sd.NameEntry("ColorSpace")
	cs := ir.ColorSpace(csName)
	switch cs {
	case ir.DeviceGray, ir.DeviceRGB, ir.DeviceCMYK:
	default:
		return ir.ImageRef{}, failf(DisallowedConstruct, "", "color space %q is not allow-listed", csName)
	}

	bpc, _ := sd.IntEntry("BitsPerComponent")
	if bpc == 0 {
		bpc = 8
	}

	if len(sd.Filters) == 0 {
		return ir.ImageRef{}, fail(DisallowedConstruct, "", errors.New("image has no declared filter"))
	}
	for _, f := range sd.Filters {
		if !isAllowedImageFilter(f) {
			return ir.ImageRef{}, failf(DisallowedConstruct, "", "filter %q is not allow-listed for images", f)
		}
	}

	pixels, err := p.decodeImagePixels(sd, int(width), int(height), cs, int(bpc))
	if err != nil {
		return ir.ImageRef{}, err
	}

	return ir.ImageRef{
		Width:       int(width),
		Height:      int(height),
		ColorSpace:  cs,
		BitsPerComp: int(bpc),
		FilterChain: sd.Filters,
		PixelData:   pixels,
	}, nil
}

func isAllowedImageFilter(f string) bool {
	for _, a := range pdffilter.AllowedImageFilters {
		if a == f {
			return true
		}
	}
	return false
}

// decodeImagePixels runs the declared filter chain and, for DCTDecode,
// defers to the JPEG-aware measurement path so the decoded pixel count
// can be cross-checked against Width/Height/ColorSpace/BitsPerComponent
// before admission (I5).
func (p *parser) decodeImagePixels(sd pdfobj.StreamDict, width, height int, cs ir.ColorSpace, bpc int) ([]byte, error) {
	data := sd.Raw
	for i, f := range sd.Filters {
		if f == pdffilter.DCT {
			img, err := pdffilter.DecodeMeasuredDCT(bytes.NewReader(data), p.lim.MaxDecodeOutputBytes)
			if err != nil {
				return nil, failf(DecompressionBudgetExceeded, "", "DCTDecode: %v", err)
			}
			if img.Width != width || img.Height != height {
				return nil, failf(Malformed, "", "JPEG dimensions %dx%d do not match declared %dx%d", img.Width, img.Height, width, height)
			}
			return img.Pixels, nil
		}
		var parms pdffilter.Params
		if i < len(sd.Parms) && sd.Parms[i] != nil {
			parms = paramsFromDict(sd.Parms[i])
		}
		dec, err := decoderFor(f)
		if err != nil {
			return nil, failf(DisallowedConstruct, "", "%v", err)
		}
		out, err := dec.Decode(bytes.NewReader(data), p.lim.MaxDecodeOutputBytes, parms)
		if err != nil {
			return nil, failf(DecompressionBudgetExceeded, "", "%s: %v", f, err)
		}
		data = out.Bytes()
	}
	return data, nil
}

func paramsFromDict(d pdfobj.Dict) pdffilter.Params {
	out := pdffilter.Params{}
	for k, v := range d {
		switch n := v.(type) {
		case pdfobj.Integer:
			out[k] = int64(n)
		case pdfobj.Boolean:
			if n {
				out[k] = 1
			}
		}
	}
	return out
}

// concatContents resolves Page /Contents (a single stream or an array
// of streams) into one decoded content-stream byte sequence.
func (p *parser) concatContents(o pdfobj.Object) ([]byte, error) {
	var streams []pdfobj.StreamDict
	switch v := o.(type) {
	case pdfobj.IndirectRef:
		sd, ok := resolveStream(p.objects, v)
		if !ok {
			return nil, fail(Malformed, "Page.Contents", errors.New("dangling content stream reference"))
		}
		streams = append(streams, sd)
	case pdfobj.Array:
		for _, e := range v {
			sd, ok := resolveStream(p.objects, e)
			if !ok {
				return nil, fail(Malformed, "Page.Contents", errors.New("dangling content stream reference in array"))
			}
			streams = append(streams, sd)
		}
	default:
		return nil, fail(Malformed, "Page.Contents", errors.New("missing or malformed /Contents"))
	}

	var out []byte
	for _, sd := range streams {
		data := sd.Raw
		for i, f := range sd.Filters {
			var parms pdffilter.Params
			if i < len(sd.Parms) && sd.Parms[i] != nil {
				parms = paramsFromDict(sd.Parms[i])
			}
			dec, err := decoderFor(f)
			if err != nil {
				return nil, failf(DisallowedConstruct, "Page.Contents", "%v", err)
			}
			buf, err := dec.Decode(bytes.NewReader(data), p.lim.MaxDecodeOutputBytes, parms)
			if err != nil {
				return nil, failf(DecompressionBudgetExceeded, "Page.Contents", "%v", err)
			}
			data = buf.Bytes()
		}
		out = append(out, data...)
		out = append(out, '\n')
	}
	return out, nil
}
