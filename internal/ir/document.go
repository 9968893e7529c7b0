// Package ir defines the intermediate representation that crosses the
// isolation boundary between the worker and the controller. Every
// field is bounded and explicitly typed; no raw PDF object references
// or unescaped bytes are admitted. This is the single point where
// trust transitions from hostile input to validated content.
package ir

import (
	"github.com/mechiko/pdfsanitize/internal/fonts"
	"github.com/pkg/errors"
)

// Resource bounds. Defaults mirror the spec's configuration table; the
// pipeline controller may tighten them per-job via Limits.
const (
	DefaultMaxPages          = 10_000
	DefaultMaxPageArea       = 200_000 * 200_000 // points^2
	DefaultMaxGstateDepth    = 64
	DefaultMaxOpsPerPage     = 250_000
	DefaultMaxImageDimension = 20_000
	DefaultMaxImageBytes     = 256 << 20
)

// ColorSpace enumerates the admitted image color spaces.
type ColorSpace string

const (
	DeviceGray ColorSpace = "DeviceGray"
	DeviceRGB  ColorSpace = "DeviceRGB"
	DeviceCMYK ColorSpace = "DeviceCMYK"
)

func (c ColorSpace) valid() bool {
	switch c {
	case DeviceGray, DeviceRGB, DeviceCMYK:
		return true
	}
	return false
}

// Components returns the number of color components per pixel.
func (c ColorSpace) Components() int {
	switch c {
	case DeviceGray:
		return 1
	case DeviceRGB:
		return 3
	case DeviceCMYK:
		return 4
	}
	return 0
}

// Document is the root of the IR. It is produced once per job by the
// worker and handed to the controller as an opaque, fully validated
// value; the controller never mutates it, only re-validates it.
type Document struct {
	Pages         []*Page
	SourceSHA256  [32]byte
	ParserVersion string
	Threats       []Threat
}

// Threat records one disallowed construct the parser stripped under a
// permissive policy instead of rejecting the document outright. It
// rides alongside the Document across the isolation boundary so the
// controller can fold it into the audit trail's threats_removed list.
type Threat struct {
	Kind     string
	Severity string
	Locator  string
	Action   string
}

// Page holds one page's geometry, content-stream operators, and the
// resources (fonts, images) those operators may reference.
type Page struct {
	MediaBox   Box
	CropBox    *Box
	ContentOps []Op
	Fonts      map[string]FontRef
	Images     map[string]ImageRef
}

// Box is a finite rectangle: (X0,Y0) lower-left, (X1,Y1) upper-right.
type Box struct {
	X0, Y0, X1, Y1 float64
}

func (b Box) width() float64  { return b.X1 - b.X0 }
func (b Box) height() float64 { return b.Y1 - b.Y0 }

func (b Box) finite() bool {
	for _, v := range []float64{b.X0, b.Y0, b.X1, b.Y1} {
		if v != v || v > 1e9 || v < -1e9 { // NaN check + bounded range
			return false
		}
	}
	return true
}

// FontRef identifies one of the 14 standard base fonts by canonical name.
type FontRef struct {
	BaseFont string
}

// ImageRef is a fully decoded, measured raster image admitted into the IR.
type ImageRef struct {
	Width, Height int
	ColorSpace    ColorSpace
	BitsPerComp   int
	FilterChain   []string
	PixelData     []byte
}

func (i ImageRef) expectedByteLen() int64 {
	bitsPerPixel := int64(i.BitsPerComp) * int64(i.ColorSpace.Components())
	bitsPerRow := bitsPerPixel * int64(i.Width)
	bytesPerRow := (bitsPerRow + 7) / 8
	return bytesPerRow * int64(i.Height)
}

var validBitsPerComp = map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true}

// Limits bounds the invariant checks; zero fields fall back to the
// package defaults.
type Limits struct {
	MaxPages          int
	MaxPageArea       float64
	MaxGstateDepth    int
	MaxOpsPerPage     int
	MaxImageDimension int
	MaxImageBytes     int64
}

func (l Limits) withDefaults() Limits {
	if l.MaxPages == 0 {
		l.MaxPages = DefaultMaxPages
	}
	if l.MaxPageArea == 0 {
		l.MaxPageArea = DefaultMaxPageArea
	}
	if l.MaxGstateDepth == 0 {
		l.MaxGstateDepth = DefaultMaxGstateDepth
	}
	if l.MaxOpsPerPage == 0 {
		l.MaxOpsPerPage = DefaultMaxOpsPerPage
	}
	if l.MaxImageDimension == 0 {
		l.MaxImageDimension = DefaultMaxImageDimension
	}
	if l.MaxImageBytes == 0 {
		l.MaxImageBytes = DefaultMaxImageBytes
	}
	return l
}

// Validation error sentinels, one per invariant I1-I6. Wrapped with
// locator context by Validate.
var (
	ErrDanglingXObject  = errors.New("ir: InvokeXObject references unknown image")
	ErrDanglingFont     = errors.New("ir: text operator references unknown font")
	ErrBadMediaBox      = errors.New("ir: media_box is degenerate or out of range")
	ErrDisallowedOp     = errors.New("ir: operator not in the allow-list")
	ErrImageSizeMismatch = errors.New("ir: image pixel data does not match declared dimensions")
	ErrUnbalancedOps    = errors.New("ir: content stream is not well-balanced")
	ErrTooManyPages     = errors.New("ir: document exceeds the page limit")
	ErrTooManyOps       = errors.New("ir: page exceeds the per-page operator limit")
)

// Validate re-checks invariants I1-I6 against lim. The worker runs
// this at construction time; the controller runs it again on receipt,
// since the worker is untrusted from a defense-in-depth standpoint.
func Validate(doc *Document, lim Limits) error {
	lim = lim.withDefaults()

	if len(doc.Pages) == 0 {
		return errors.New("ir: document has no pages")
	}
	if len(doc.Pages) > lim.MaxPages {
		return errors.Wrapf(ErrTooManyPages, "%d pages", len(doc.Pages))
	}

	for pageIdx, p := range doc.Pages {
		if err := validatePage(p, lim); err != nil {
			return errors.Wrapf(err, "page %d", pageIdx)
		}
	}
	return nil
}

func validatePage(p *Page, lim Limits) error {
	if !p.MediaBox.finite() {
		return ErrBadMediaBox
	}
	if p.MediaBox.X1 <= p.MediaBox.X0 || p.MediaBox.Y1 <= p.MediaBox.Y0 {
		return ErrBadMediaBox
	}
	if p.MediaBox.width()*p.MediaBox.height() > lim.MaxPageArea {
		return errors.Wrap(ErrBadMediaBox, "area exceeds limit")
	}
	if p.CropBox != nil && !p.CropBox.finite() {
		return ErrBadMediaBox
	}

	if len(p.ContentOps) > lim.MaxOpsPerPage {
		return errors.Wrapf(ErrTooManyOps, "%d ops", len(p.ContentOps))
	}

	for name, f := range p.Fonts {
		if !fonts.IsStandard14(f.BaseFont) {
			return errors.Wrapf(ErrDanglingFont, "font %q is not standard-14", name)
		}
	}

	for name, img := range p.Images {
		if err := validateImage(img, lim); err != nil {
			return errors.Wrapf(err, "image %q", name)
		}
	}

	if err := validateOpSequence(p, lim); err != nil {
		return err
	}

	return nil
}

func validateImage(img ImageRef, lim Limits) error {
	if img.Width <= 0 || img.Height <= 0 {
		return errors.Wrap(ErrImageSizeMismatch, "non-positive dimension")
	}
	if img.Width > lim.MaxImageDimension || img.Height > lim.MaxImageDimension {
		return errors.Wrap(ErrImageSizeMismatch, "dimension exceeds limit")
	}
	if !img.ColorSpace.valid() {
		return errors.New("ir: unknown color space")
	}
	if !validBitsPerComp[img.BitsPerComp] {
		return errors.New("ir: invalid bits_per_comp")
	}
	if int64(len(img.PixelData)) > lim.MaxImageBytes {
		return errors.Wrap(ErrImageSizeMismatch, "pixel data exceeds byte limit")
	}
	if int64(len(img.PixelData)) != img.expectedByteLen() {
		return errors.Wrapf(ErrImageSizeMismatch, "got %d bytes, want %d", len(img.PixelData), img.expectedByteLen())
	}
	return nil
}

// validateOpSequence checks I6: balanced Save/Restore and
// TextBegin/TextEnd nesting, bounded graphics-state depth.
func validateOpSequence(p *Page, lim Limits) error {
	gstateDepth := 0
	inText := false

	for i, op := range p.ContentOps {
		switch o := op.(type) {
		case SaveGraphicsState:
			gstateDepth++
			if gstateDepth > lim.MaxGstateDepth {
				return errors.Wrapf(ErrUnbalancedOps, "op %d: gstate depth exceeds %d", i, lim.MaxGstateDepth)
			}
		case RestoreGraphicsState:
			gstateDepth--
			if gstateDepth < 0 {
				return errors.Wrapf(ErrUnbalancedOps, "op %d: restore without matching save", i)
			}
		case TextBegin:
			if inText {
				return errors.Wrapf(ErrUnbalancedOps, "op %d: nested TextBegin", i)
			}
			inText = true
		case TextEnd:
			if !inText {
				return errors.Wrapf(ErrUnbalancedOps, "op %d: TextEnd without TextBegin", i)
			}
			inText = false
		case InvokeXObject:
			if _, ok := p.Images[o.Name]; !ok {
				return errors.Wrapf(ErrDanglingXObject, "op %d: %q", i, o.Name)
			}
		case SetFont:
			if _, ok := p.Fonts[o.Name]; !ok {
				return errors.Wrapf(ErrDanglingFont, "op %d: %q", i, o.Name)
			}
		}
	}
	if gstateDepth != 0 {
		return errors.Wrap(ErrUnbalancedOps, "unmatched SaveGraphicsState at end of page")
	}
	if inText {
		return errors.Wrap(ErrUnbalancedOps, "unmatched TextBegin at end of page")
	}
	return nil
}
