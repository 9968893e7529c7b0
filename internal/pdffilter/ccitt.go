package pdffilter

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// ccittDecoder implements CCITTFaxDecode (Group 3/4). Adapted from the
// teacher's in-tree ccitt/reader.go: the pixel-buffer bookkeeping and
// pass/horizontal/vertical mode handling follow the same algorithm,
// rewritten against a bit-at-a-time prefix lookup (the teacher's
// 32-bit getBitBuf/hasPrefix window needed a code-length table this
// pack's retrieval did not include) and trimmed to decode-only — the
// teacher's own Encode was an unimplemented stub.
type ccittDecoder struct{}

func (ccittDecoder) Decode(r io.Reader, budget int64, parms Params) (*bytes.Buffer, error) {
	columns := 1728
	if v, ok := parms["Columns"]; ok && v > 0 {
		columns = int(v)
	}
	rows := 0
	if v, ok := parms["Rows"]; ok && v > 0 {
		rows = int(v)
	}
	k := int64(0)
	if v, ok := parms["K"]; ok {
		k = v
	}
	if k > 0 {
		return nil, errors.New("pdffilter: ccitt: mixed 1D/2D (K>0) unsupported")
	}
	blackIs1 := parms["BlackIs1"] == 1
	byteAlign := parms["EncodedByteAlign"] == 1

	raw, err := io.ReadAll(io.LimitReader(r, budget*8+4096))
	if err != nil {
		return nil, errors.Wrap(err, "pdffilter: ccitt: read source")
	}

	dec := &ccittBitDecoder{
		raw:       raw,
		width:     columns,
		align:     byteAlign,
		white:     true,
		maxRows:   rows,
		budgetPix: budget,
	}
	pix, err := dec.decode()
	if err != nil {
		return nil, err
	}
	if !blackIs1 {
		invertBits(pix)
	}
	var out bytes.Buffer
	out.Write(pix)
	return &out, nil
}

type ccittBitDecoder struct {
	raw       []byte
	pos       int // bit position
	width     int
	align     bool
	white     bool
	row       int
	a0        int
	rowBits   []bool // current reference-row changing-element colors, by column
	refRow    []bool
	maxRows   int
	budgetPix int64
	out       []byte // packed 1bpp rows
	stride    int
}

func (d *ccittBitDecoder) bitAt(pos int) (bool, bool) {
	byteIdx := pos / 8
	if byteIdx >= len(d.raw) {
		return false, false
	}
	bit := 7 - uint(pos%8)
	return (d.raw[byteIdx]>>bit)&1 == 1, true
}

// readCode consumes bits one at a time until the accumulated bit
// string matches an entry in one of tables; prefix-freedom of the
// CCITT code tables guarantees at most one table entry can ever match.
// If no entry matches within 14 bits (or the data ends first), the bit
// position is restored and ok is false.
func (d *ccittBitDecoder) readCode(tables ...map[string]int) (int, bool, error) {
	start := d.pos
	var sb []byte
	for i := 0; i < 14; i++ {
		b, ok := d.bitAt(d.pos)
		if !ok {
			break
		}
		d.pos++
		if b {
			sb = append(sb, '1')
		} else {
			sb = append(sb, '0')
		}
		s := string(sb)
		for _, t := range tables {
			if v, ok := t[s]; ok {
				return v, true, nil
			}
		}
	}
	d.pos = start
	return 0, false, nil
}

func (d *ccittBitDecoder) readMode() (string, error) {
	var sb []byte
	for i := 0; i < 13; i++ {
		b, ok := d.bitAt(d.pos)
		if !ok {
			return "", errors.New("pdffilter: ccitt: truncated mode code")
		}
		d.pos++
		if b {
			sb = append(sb, '1')
		} else {
			sb = append(sb, '0')
		}
		s := string(sb)
		for _, m := range modeCodes {
			if m == s {
				return m, nil
			}
		}
	}
	return "", errors.New("pdffilter: ccitt: unrecognized mode code")
}

func (d *ccittBitDecoder) runLength(white bool) (int, error) {
	total := 0
	for {
		v, ok, err := d.readCode(sharedMakeup)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		total += v
	}
	makeup := whiteMakeup
	term := whiteTerm
	if !white {
		makeup, term = blackMakeup, blackTerm
	}
	for {
		v, ok, err := d.readCode(makeup)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		total += v
		if v < 64 {
			break
		}
	}
	v, ok, err := d.readCode(term)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.New("pdffilter: ccitt: missing terminating code")
	}
	return total + v, nil
}

func (d *ccittBitDecoder) decode() ([]byte, error) {
	d.stride = (d.width + 7) / 8
	d.refRow = make([]bool, d.width) // reference row, initially all white (false)
	d.a0 = -1

	for {
		if d.maxRows > 0 && d.row >= d.maxRows {
			break
		}
		if int64(len(d.out)) > d.budgetPix {
			return nil, ErrBudgetExceeded
		}

		if d.align && d.pos%8 != 0 {
			d.pos += 8 - d.pos%8
		}

		mode, err := d.readMode()
		if err != nil {
			return nil, err
		}
		if mode == modeEOFB {
			break
		}

		curRow := make([]bool, d.width)
		copy(curRow, d.rowBits)

		b1, b2 := d.changingElements(d.a0, d.white)

		switch mode {
		case modePass:
			d.fillRun(curRow, d.a0, b2, d.white)
			d.a0 = b2
		case modeHoriz:
			if d.a0 < 0 {
				d.a0 = 0
			}
			r1, err := d.runLength(d.white)
			if err != nil {
				return nil, err
			}
			a1 := clamp(d.a0+r1, 0, d.width)
			d.fillRun(curRow, d.a0, a1, d.white)
			r2, err := d.runLength(!d.white)
			if err != nil {
				return nil, err
			}
			a2 := clamp(a1+r2, 0, d.width)
			d.fillRun(curRow, a1, a2, !d.white)
			d.a0 = a2
		case modeV0, modeVR1, modeVR2, modeVR3, modeVL1, modeVL2, modeVL3:
			off := verticalOffset(mode)
			a1 := clamp(b1+off, 0, d.width)
			start := d.a0
			if start < 0 {
				start = 0
			}
			d.fillRun(curRow, start, a1, d.white)
			d.a0 = a1
			d.white = !d.white
		case modeExt:
			return nil, errors.New("pdffilter: ccitt: extension mode unsupported")
		}

		if d.a0 >= d.width {
			d.out = append(d.out, packRow(curRow, d.stride)...)
			d.rowBits = curRow
			d.row++
			d.a0 = -1
			d.white = true
		}
	}

	if d.a0 >= 0 && d.a0 < d.width {
		d.out = append(d.out, packRow(d.rowBits, d.stride)...)
	}
	if int64(len(d.out)) > d.budgetPix {
		return nil, ErrBudgetExceeded
	}

	return d.out, nil
}

// changingElements locates b1 (the first changing element on the
// reference row to the right of a0 with color opposite of the
// current color) and b2 (the next changing element after b1).
func (d *ccittBitDecoder) changingElements(a0 int, white bool) (b1, b2 int) {
	ref := d.rowBits
	if ref == nil {
		ref = make([]bool, d.width)
	}
	start := a0
	if start < 0 {
		start = 0
	}
	colorAt := func(i int) bool {
		if i >= d.width {
			return false
		}
		return ref[i]
	}
	i := start
	if a0 >= 0 {
		cur := colorAt(a0)
		for i < d.width && colorAt(i) == cur {
			i++
		}
	} else {
		for i < d.width && colorAt(i) == false {
			i++
		}
	}
	for i < d.width && colorAt(i) == white {
		i++
	}
	b1 = i
	j := b1 + 1
	for j < d.width && colorAt(j) == colorAt(b1) {
		j++
	}
	b2 = j
	if b1 > d.width {
		b1 = d.width
	}
	if b2 > d.width {
		b2 = d.width
	}
	return b1, b2
}

func (d *ccittBitDecoder) fillRun(row []bool, from, to int, black bool) {
	if from < 0 {
		from = 0
	}
	if to > d.width {
		to = d.width
	}
	if !black {
		return
	}
	for i := from; i < to; i++ {
		row[i] = true
	}
}

func verticalOffset(mode string) int {
	switch mode {
	case modeV0:
		return 0
	case modeVR1:
		return 1
	case modeVR2:
		return 2
	case modeVR3:
		return 3
	case modeVL1:
		return -1
	case modeVL2:
		return -2
	case modeVL3:
		return -3
	}
	return 0
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func packRow(row []bool, stride int) []byte {
	out := make([]byte, stride)
	for i, black := range row {
		if black {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func invertBits(b []byte) {
	for i := range b {
		b[i] ^= 0xff
	}
}
