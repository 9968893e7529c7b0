package contentstream

import (
	"bytes"
	"fmt"

	"github.com/mechiko/pdfsanitize/internal/ir"
)

// Serialize renders an operator list back into PDF content-stream
// syntax. It is the mirror of Parse and is used only by the
// reconstructor: the bytes it emits are fresh, never the original
// stream's bytes re-threaded through.
func Serialize(ops []ir.Op) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		writeOp(&buf, op)
	}
	return buf.Bytes()
}

func writeOp(buf *bytes.Buffer, op ir.Op) {
	switch o := op.(type) {
	case ir.TextBegin:
		buf.WriteString("BT\n")
	case ir.TextEnd:
		buf.WriteString("ET\n")
	case ir.TextMoveAbs:
		fmt.Fprintf(buf, "%s %s Td\n", num2(o.X), num2(o.Y))
	case ir.TextMoveRel:
		fmt.Fprintf(buf, "%s %s TD\n", num2(o.X), num2(o.Y))
	case ir.TextMoveNext:
		buf.WriteString("T*\n")
	case ir.SetTextMatrix:
		fmt.Fprintf(buf, "%s %s %s %s %s %s Tm\n", num2(o.A), num2(o.B), num2(o.C), num2(o.D), num2(o.E), num2(o.F))
	case ir.SetFont:
		fmt.Fprintf(buf, "/%s %s Tf\n", o.Name, num2(o.Size))
	case ir.ShowText:
		buf.WriteByte('(')
		buf.Write(escapeLiteral(o.Bytes))
		buf.WriteString(") Tj\n")
	case ir.ShowTextArray:
		buf.WriteByte('[')
		for _, e := range o.Elems {
			if e.IsAdjust {
				buf.WriteString(num2(e.Adjust))
				buf.WriteByte(' ')
				continue
			}
			buf.WriteByte('(')
			buf.Write(escapeLiteral(e.Bytes))
			buf.WriteString(") ")
		}
		buf.WriteString("] TJ\n")
	case ir.MoveTo:
		fmt.Fprintf(buf, "%s %s m\n", num2(o.X), num2(o.Y))
	case ir.LineTo:
		fmt.Fprintf(buf, "%s %s l\n", num2(o.X), num2(o.Y))
	case ir.CurveTo:
		fmt.Fprintf(buf, "%s %s %s %s %s %s c\n", num2(o.X1), num2(o.Y1), num2(o.X2), num2(o.Y2), num2(o.X3), num2(o.Y3))
	case ir.ClosePath:
		buf.WriteString("h\n")
	case ir.Rect:
		fmt.Fprintf(buf, "%s %s %s %s re\n", num2(o.X), num2(o.Y), num2(o.W), num2(o.H))
	case ir.Fill:
		buf.WriteString("f\n")
	case ir.Stroke:
		buf.WriteString("S\n")
	case ir.EndPath:
		buf.WriteString("n\n")
	case ir.SaveGraphicsState:
		buf.WriteString("q\n")
	case ir.RestoreGraphicsState:
		buf.WriteString("Q\n")
	case ir.InvokeXObject:
		fmt.Fprintf(buf, "/%s Do\n", o.Name)
	}
}

func num2(f float64) string {
	s := fmt.Sprintf("%.4f", f)
	return s
}

func escapeLiteral(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case '(', ')', '\\':
			out = append(out, '\\', c)
		default:
			out = append(out, c)
		}
	}
	return out
}
