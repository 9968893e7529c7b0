package ir

// Op is the closed set of content-stream operators admitted into the
// IR. Any token the content-stream parser encounters outside this set
// is a DISALLOWED_CONSTRUCT, not a silently dropped byte (I4).
type Op interface {
	isOp()
}

type TextBegin struct{}
type TextEnd struct{}

type TextMoveAbs struct{ X, Y float64 }
type TextMoveRel struct{ X, Y float64 }
type TextMoveNext struct{}

type SetTextMatrix struct{ A, B, C, D, E, F float64 }

// ShowText carries operator-encoded bytes exactly as the font's
// encoding presents them; the reconstructor re-emits them unchanged
// against the same standard-14 font, never reinterpreting glyph IDs.
type ShowText struct{ Bytes []byte }

// ShowTextArrayElem is either a Bytes run or a numeric position
// adjustment, mirroring the PDF TJ operator's mixed array.
type ShowTextArrayElem struct {
	Bytes  []byte
	Adjust float64
	IsAdjust bool
}

type ShowTextArray struct{ Elems []ShowTextArrayElem }
type SetFont struct {
	Name string
	Size float64
}

type MoveTo struct{ X, Y float64 }
type LineTo struct{ X, Y float64 }
type CurveTo struct{ X1, Y1, X2, Y2, X3, Y3 float64 }
type ClosePath struct{}

type Rect struct{ X, Y, W, H float64 }
type Fill struct{}
type Stroke struct{}
type EndPath struct{}

type SaveGraphicsState struct{}
type RestoreGraphicsState struct{}

// InvokeXObject must resolve to a key in the page's Images map (I1);
// it never refers to a Form XObject.
type InvokeXObject struct{ Name string }

func (TextBegin) isOp()            {}
func (TextEnd) isOp()              {}
func (TextMoveAbs) isOp()          {}
func (TextMoveRel) isOp()          {}
func (TextMoveNext) isOp()         {}
func (SetTextMatrix) isOp()        {}
func (ShowText) isOp()             {}
func (ShowTextArray) isOp()        {}
func (SetFont) isOp()              {}
func (MoveTo) isOp()               {}
func (LineTo) isOp()               {}
func (CurveTo) isOp()              {}
func (ClosePath) isOp()            {}
func (Rect) isOp()                 {}
func (Fill) isOp()                 {}
func (Stroke) isOp()               {}
func (EndPath) isOp()              {}
func (SaveGraphicsState) isOp()    {}
func (RestoreGraphicsState) isOp() {}
func (InvokeXObject) isOp()        {}
