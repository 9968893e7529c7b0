// Package contentstream turns a page's raw content-stream bytes into
// the closed set of ir.Op values (and back, for the reconstructor). A
// token that isn't a recognized operand followed by an allow-listed
// operator keyword is a DISALLOWED_CONSTRUCT: this parser rejects the
// page rather than silently dropping the offending bytes (I4).
package contentstream

import (
	"fmt"

	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/mechiko/pdfsanitize/internal/pdflex"
	"github.com/mechiko/pdfsanitize/internal/pdfobj"
	"github.com/pkg/errors"
)

// ErrDisallowedOperator is returned for any operator keyword outside
// the allow-list. A malformed operand sequence for an allow-listed
// operator is reported with its own error, wrapped with the operator.
var ErrDisallowedOperator = errors.New("contentstream: operator not in the allow-list")

func isWS(b byte) bool {
	return b == 0x00 || b == 0x09 || b == 0x0A || b == 0x0C || b == 0x0D || b == 0x20
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// Parse converts the content-stream bytes of a single page into an
// ordered operator list. Unsupported operators (Bézier inline images
// BI/ID/EI, shading sh, marked content, form XObjects reached via Do
// with a non-image resource, text rendering mode Tr, clipping W, color
// operators, etc.) are rejected outright: the sanitizer's allow-list is
// the operand+operator pairs named in ir.Op, nothing else.
func Parse(buf []byte, limit int) ([]ir.Op, error) {
	var ops []ir.Op
	var operands []pdfobj.Object
	pos := 0
	n := len(buf)

	for pos < n {
		pos = skipWhitespaceAndComments(buf, pos)
		if pos >= n {
			break
		}

		c := buf[pos]
		switch {
		case c == '/' || c == '(' || c == '[' || c == '<' || isDigitStart(c):
			obj, next, err := pdflex.ParseObject(buf, pos)
			if err != nil {
				return nil, errors.Wrap(err, "contentstream: operand")
			}
			operands = append(operands, obj)
			pos = next

		default:
			kw, next := readKeyword(buf, pos)
			if kw == "" {
				return nil, errors.Wrapf(ErrDisallowedOperator, "unrecognized byte 0x%02x at %d", c, pos)
			}
			pos = next

			op, err := buildOp(kw, operands)
			if err != nil {
				return nil, err
			}
			operands = operands[:0]
			if op != nil {
				ops = append(ops, op)
				if limit > 0 && len(ops) > limit {
					return nil, errors.New("contentstream: operator count exceeds page limit")
				}
			}
		}
	}

	if len(operands) != 0 {
		return nil, errors.New("contentstream: trailing operands with no operator")
	}
	return ops, nil
}

func isDigitStart(b byte) bool {
	return (b >= '0' && b <= '9') || b == '+' || b == '-' || b == '.'
}

func skipWhitespaceAndComments(buf []byte, pos int) int {
	for pos < len(buf) {
		if isWS(buf[pos]) {
			pos++
			continue
		}
		if buf[pos] == '%' {
			for pos < len(buf) && buf[pos] != '\n' && buf[pos] != '\r' {
				pos++
			}
			continue
		}
		break
	}
	return pos
}

func readKeyword(buf []byte, pos int) (string, int) {
	start := pos
	for pos < len(buf) && !isWS(buf[pos]) && !isDelim(buf[pos]) {
		pos++
	}
	return string(buf[start:pos]), pos
}

func num(o pdfobj.Object) (float64, bool) {
	switch v := o.(type) {
	case pdfobj.Integer:
		return float64(v), true
	case pdfobj.Float:
		return float64(v), true
	}
	return 0, false
}

func name(o pdfobj.Object) (string, bool) {
	v, ok := o.(pdfobj.Name)
	return string(v), ok
}

func bytesOf(o pdfobj.Object) ([]byte, bool) {
	switch v := o.(type) {
	case pdfobj.StringLiteral:
		return []byte(v), true
	case pdfobj.HexLiteral:
		return []byte(v), true
	}
	return nil, false
}

// buildOp maps an operator keyword and its preceding operand stack to
// an ir.Op. A nil, nil return means the operator is a recognized no-op
// that carries no IR content.
func buildOp(kw string, args []pdfobj.Object) (ir.Op, error) {
	switch kw {
	case "BT":
		return ir.TextBegin{}, nil
	case "ET":
		return ir.TextEnd{}, nil
	case "Td":
		x, y, err := xy(args)
		if err != nil {
			return nil, wrapOp(kw, err)
		}
		return ir.TextMoveAbs{X: x, Y: y}, nil
	case "TD":
		x, y, err := xy(args)
		if err != nil {
			return nil, wrapOp(kw, err)
		}
		return ir.TextMoveRel{X: x, Y: y}, nil
	case "T*":
		return ir.TextMoveNext{}, nil
	case "Tm":
		if len(args) != 6 {
			return nil, wrapOp(kw, errWrongArgCount(6, len(args)))
		}
		vals := make([]float64, 6)
		for i, a := range args {
			v, ok := num(a)
			if !ok {
				return nil, wrapOp(kw, errNotANumber(i))
			}
			vals[i] = v
		}
		return ir.SetTextMatrix{A: vals[0], B: vals[1], C: vals[2], D: vals[3], E: vals[4], F: vals[5]}, nil
	case "Tf":
		if len(args) != 2 {
			return nil, wrapOp(kw, errWrongArgCount(2, len(args)))
		}
		fontName, ok := name(args[0])
		if !ok {
			return nil, wrapOp(kw, errors.New("first operand is not a name"))
		}
		size, ok := num(args[1])
		if !ok {
			return nil, wrapOp(kw, errNotANumber(1))
		}
		return ir.SetFont{Name: fontName, Size: size}, nil
	case "Tj":
		if len(args) != 1 {
			return nil, wrapOp(kw, errWrongArgCount(1, len(args)))
		}
		b, ok := bytesOf(args[0])
		if !ok {
			return nil, wrapOp(kw, errors.New("operand is not a string"))
		}
		return ir.ShowText{Bytes: b}, nil
	case "TJ":
		if len(args) != 1 {
			return nil, wrapOp(kw, errWrongArgCount(1, len(args)))
		}
		arr, ok := args[0].(pdfobj.Array)
		if !ok {
			return nil, wrapOp(kw, errors.New("operand is not an array"))
		}
		elems := make([]ir.ShowTextArrayElem, 0, len(arr))
		for _, e := range arr {
			if b, ok := bytesOf(e); ok {
				elems = append(elems, ir.ShowTextArrayElem{Bytes: b})
				continue
			}
			if v, ok := num(e); ok {
				elems = append(elems, ir.ShowTextArrayElem{Adjust: v, IsAdjust: true})
				continue
			}
			return nil, wrapOp(kw, errors.New("TJ array element is neither string nor number"))
		}
		return ir.ShowTextArray{Elems: elems}, nil
	case "m":
		x, y, err := xy(args)
		if err != nil {
			return nil, wrapOp(kw, err)
		}
		return ir.MoveTo{X: x, Y: y}, nil
	case "l":
		x, y, err := xy(args)
		if err != nil {
			return nil, wrapOp(kw, err)
		}
		return ir.LineTo{X: x, Y: y}, nil
	case "c":
		if len(args) != 6 {
			return nil, wrapOp(kw, errWrongArgCount(6, len(args)))
		}
		vals := make([]float64, 6)
		for i, a := range args {
			v, ok := num(a)
			if !ok {
				return nil, wrapOp(kw, errNotANumber(i))
			}
			vals[i] = v
		}
		return ir.CurveTo{X1: vals[0], Y1: vals[1], X2: vals[2], Y2: vals[3], X3: vals[4], Y3: vals[5]}, nil
	case "h":
		return ir.ClosePath{}, nil
	case "re":
		if len(args) != 4 {
			return nil, wrapOp(kw, errWrongArgCount(4, len(args)))
		}
		vals := make([]float64, 4)
		for i, a := range args {
			v, ok := num(a)
			if !ok {
				return nil, wrapOp(kw, errNotANumber(i))
			}
			vals[i] = v
		}
		return ir.Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
	case "f", "F", "f*":
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
		if len(args) != 1 {
			return nil, wrapOp(kw, errWrongArgCount(1, len(args)))
		}
		nm, ok := name(args[0])
		if !ok {
			return nil, wrapOp(kw, errors.New("operand is not a name"))
		}
		return ir.InvokeXObject{Name: nm}, nil
	}
	return nil, errors.Wrapf(ErrDisallowedOperator, "%q", kw)
}

func xy(args []pdfobj.Object) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, errWrongArgCount(2, len(args))
	}
	x, ok := num(args[0])
	if !ok {
		return 0, 0, errNotANumber(0)
	}
	y, ok := num(args[1])
	if !ok {
		return 0, 0, errNotANumber(1)
	}
	return x, y, nil
}

func errWrongArgCount(want, got int) error {
	return fmt.Errorf("want %d operands, got %d", want, got)
}

func errNotANumber(i int) error {
	return fmt.Errorf("operand %d is not a number", i)
}

func wrapOp(kw string, err error) error {
	return errors.Wrapf(err, "contentstream: %s", kw)
}
