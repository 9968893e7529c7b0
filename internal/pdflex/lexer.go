// Package pdflex is the low-level tokenizer the whitelist parser
// scans raw, untrusted PDF bytes with. It produces pdfobj.Object
// values only; it never returns a borrowed slice of the input's own
// bytes into a long-lived structure without copying, so that once the
// parser discards an input buffer nothing it handed upstream still
// aliases it.
package pdflex

import (
	"strconv"
	"strings"

	"github.com/mechiko/pdfsanitize/internal/pdfobj"
	"github.com/pkg/errors"
)

// ErrCorrupt is wrapped by every lexical error this package returns.
var ErrCorrupt = errors.New("pdflex: corrupt object")

func isWhitespace(b byte) bool {
	switch b {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// SkipWhitespace advances pos past whitespace and %-comments.
func SkipWhitespace(buf []byte, pos int) int {
	for pos < len(buf) {
		switch {
		case isWhitespace(buf[pos]):
			pos++
		case buf[pos] == '%':
			for pos < len(buf) && buf[pos] != '\x0A' && buf[pos] != '\x0D' {
				pos++
			}
		default:
			return pos
		}
	}
	return pos
}

func positionToNextDelimiter(buf []byte, pos int) int {
	for pos < len(buf) && !isWhitespace(buf[pos]) && !isDelimiter(buf[pos]) {
		pos++
	}
	return pos
}

// ParseObject parses exactly one PDF object starting at pos (after
// leading whitespace has already been skipped by the caller, or not —
// ParseObject skips it itself) and returns the object and the
// position immediately following it.
func ParseObject(buf []byte, pos int) (pdfobj.Object, int, error) {
	pos = SkipWhitespace(buf, pos)
	if pos >= len(buf) {
		return nil, pos, errors.Wrap(ErrCorrupt, "unexpected end of input")
	}

	switch buf[pos] {
	case '/':
		return parseName(buf, pos)
	case '(':
		return parseStringLiteral(buf, pos)
	case '[':
		return parseArray(buf, pos)
	case '<':
		if pos+1 < len(buf) && buf[pos+1] == '<' {
			return parseDict(buf, pos)
		}
		return parseHexLiteral(buf, pos)
	}

	// Boolean / null / number / indirect reference all start with a
	// non-delimiter token.
	if tok, next := nextToken(buf, pos); tok != "" {
		switch tok {
		case "true":
			return pdfobj.Boolean(true), next, nil
		case "false":
			return pdfobj.Boolean(false), next, nil
		case "null":
			return pdfobj.Null{}, next, nil
		}
		return parseNumericOrIndRef(buf, pos, next, tok)
	}

	return nil, pos, errors.Wrapf(ErrCorrupt, "unexpected byte 0x%02x at %d", buf[pos], pos)
}

func nextToken(buf []byte, pos int) (string, int) {
	start := pos
	end := positionToNextDelimiter(buf, pos)
	if end == start {
		return "", pos
	}
	return string(buf[start:end]), end
}

func parseName(buf []byte, pos int) (pdfobj.Object, int, error) {
	pos++ // skip '/'
	start := pos
	for pos < len(buf) && !isWhitespace(buf[pos]) && !isDelimiter(buf[pos]) {
		pos++
	}
	raw := string(buf[start:pos])
	decoded, err := decodeNameHex(raw)
	if err != nil {
		return nil, pos, err
	}
	return pdfobj.Name(decoded), pos, nil
}

func decodeNameHex(s string) (string, error) {
	if !strings.Contains(s, "#") {
		return s, nil
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '#' && i+2 < len(s) {
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", errors.Wrap(ErrCorrupt, "malformed name hex escape")
			}
			sb.WriteByte(byte(v))
			i += 2
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String(), nil
}

func parseStringLiteral(buf []byte, pos int) (pdfobj.Object, int, error) {
	pos++ // skip '('
	var out []byte
	depth := 0
	for pos < len(buf) {
		c := buf[pos]
		switch c {
		case '\\':
			if pos+1 >= len(buf) {
				return nil, pos, errors.Wrap(ErrCorrupt, "unterminated string literal escape")
			}
			n, adv := decodeStringEscape(buf[pos+1:])
			out = append(out, n...)
			pos += 1 + adv
			continue
		case '(':
			depth++
			out = append(out, c)
			pos++
		case ')':
			if depth == 0 {
				pos++
				return pdfobj.StringLiteral(out), pos, nil
			}
			depth--
			out = append(out, c)
			pos++
		default:
			out = append(out, c)
			pos++
		}
	}
	return nil, pos, errors.Wrap(ErrCorrupt, "unterminated string literal")
}

func decodeStringEscape(buf []byte) ([]byte, int) {
	if len(buf) == 0 {
		return nil, 0
	}
	switch buf[0] {
	case 'n':
		return []byte{'\n'}, 1
	case 'r':
		return []byte{'\r'}, 1
	case 't':
		return []byte{'\t'}, 1
	case 'b':
		return []byte{'\b'}, 1
	case 'f':
		return []byte{'\f'}, 1
	case '(', ')', '\\':
		return []byte{buf[0]}, 1
	case '\x0A':
		return nil, 1
	case '\x0D':
		if len(buf) > 1 && buf[1] == '\x0A' {
			return nil, 2
		}
		return nil, 1
	}
	if buf[0] >= '0' && buf[0] <= '7' {
		n := 0
		v := 0
		for n < 3 && n < len(buf) && buf[n] >= '0' && buf[n] <= '7' {
			v = v*8 + int(buf[n]-'0')
			n++
		}
		return []byte{byte(v)}, n
	}
	// Unknown escape: PDF spec says the backslash is ignored.
	return []byte{buf[0]}, 1
}

func parseHexLiteral(buf []byte, pos int) (pdfobj.Object, int, error) {
	pos++ // skip '<'
	start := pos
	for pos < len(buf) && buf[pos] != '>' {
		pos++
	}
	if pos >= len(buf) {
		return nil, pos, errors.Wrap(ErrCorrupt, "unterminated hex literal")
	}
	hexDigits := make([]byte, 0, pos-start)
	for _, b := range buf[start:pos] {
		if isWhitespace(b) {
			continue
		}
		hexDigits = append(hexDigits, b)
	}
	if len(hexDigits)%2 == 1 {
		hexDigits = append(hexDigits, '0')
	}
	out := make([]byte, len(hexDigits)/2)
	for i := 0; i < len(out); i++ {
		v, err := strconv.ParseUint(string(hexDigits[2*i:2*i+2]), 16, 8)
		if err != nil {
			return nil, pos, errors.Wrap(ErrCorrupt, "malformed hex literal digit")
		}
		out[i] = byte(v)
	}
	return pdfobj.HexLiteral(out), pos + 1, nil
}

func parseArray(buf []byte, pos int) (pdfobj.Object, int, error) {
	pos++ // skip '['
	arr := pdfobj.Array{}
	for {
		pos = SkipWhitespace(buf, pos)
		if pos >= len(buf) {
			return nil, pos, errors.Wrap(ErrCorrupt, "unterminated array")
		}
		if buf[pos] == ']' {
			return arr, pos + 1, nil
		}
		o, next, err := ParseObject(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		arr = append(arr, o)
		pos = next
	}
}

func parseDict(buf []byte, pos int) (pdfobj.Object, int, error) {
	pos += 2 // skip '<<'
	d := pdfobj.Dict{}
	for {
		pos = SkipWhitespace(buf, pos)
		if pos >= len(buf) {
			return nil, pos, errors.Wrap(ErrCorrupt, "unterminated dictionary")
		}
		if buf[pos] == '>' {
			if pos+1 < len(buf) && buf[pos+1] == '>' {
				return d, pos + 2, nil
			}
			return nil, pos, errors.Wrap(ErrCorrupt, "malformed dictionary terminator")
		}
		if buf[pos] != '/' {
			return nil, pos, errors.Wrapf(ErrCorrupt, "expected dict key at %d", pos)
		}
		keyObj, next, err := parseName(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		pos = SkipWhitespace(buf, next)
		val, next2, err := ParseObject(buf, pos)
		if err != nil {
			return nil, pos, err
		}
		d[string(keyObj.(pdfobj.Name))] = val
		pos = next2
	}
}

// parseNumericOrIndRef disambiguates Integer, Float, and IndirectRef
// ("N G R"), the only PDF constructs that begin with a digit or sign.
func parseNumericOrIndRef(buf []byte, startPos, afterTok int, tok string) (pdfobj.Object, int, error) {
	if strings.ContainsAny(tok, ".eE") || (!isAllDigitsOrSign(tok)) {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, afterTok, errors.Wrapf(ErrCorrupt, "malformed number %q", tok)
		}
		if isNonFinite(f) {
			return nil, afterTok, errors.Wrapf(ErrCorrupt, "non-finite number %q", tok)
		}
		return pdfobj.Float(f), afterTok, nil
	}

	// Candidate integer. Look ahead for "G R".
	i, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(tok, 64)
		if ferr != nil {
			return nil, afterTok, errors.Wrapf(ErrCorrupt, "malformed number %q", tok)
		}
		return pdfobj.Float(f), afterTok, nil
	}

	save := afterTok
	p := SkipWhitespace(buf, afterTok)
	genTok, p2 := nextToken(buf, p)
	if genTok != "" && isAllDigitsOrSign(genTok) && !strings.ContainsAny(genTok, ".eE") {
		p3 := SkipWhitespace(buf, p2)
		if p3 < len(buf) && buf[p3] == 'R' && (p3+1 >= len(buf) || isWhitespace(buf[p3+1]) || isDelimiter(buf[p3+1])) {
			gen, gerr := strconv.ParseInt(genTok, 10, 64)
			if gerr == nil && i >= 0 && gen >= 0 {
				return pdfobj.IndirectRef{ObjectNumber: int(i), GenerationNumber: int(gen)}, p3 + 1, nil
			}
		}
	}

	return pdfobj.Integer(i), save, nil
}

func isAllDigitsOrSign(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '+' || c == '-' {
			if i != 0 {
				return false
			}
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isNonFinite(f float64) bool {
	return f != f || f > 1e300 || f < -1e300
}

// ParseObjectAttributes parses a classic "N G obj" header and returns
// the object and generation numbers.
func ParseObjectAttributes(buf []byte, pos int) (objNr, genNr int, next int, err error) {
	pos = SkipWhitespace(buf, pos)
	tok1, p1 := nextToken(buf, pos)
	n1, err := strconv.Atoi(tok1)
	if err != nil {
		return 0, 0, pos, errors.Wrap(ErrCorrupt, "malformed object number")
	}
	p1 = SkipWhitespace(buf, p1)
	tok2, p2 := nextToken(buf, p1)
	n2, err := strconv.Atoi(tok2)
	if err != nil {
		return 0, 0, pos, errors.Wrap(ErrCorrupt, "malformed generation number")
	}
	p2 = SkipWhitespace(buf, p2)
	tok3, p3 := nextToken(buf, p2)
	if tok3 != "obj" {
		return 0, 0, pos, errors.Wrap(ErrCorrupt, "expected 'obj' keyword")
	}
	return n1, n2, p3, nil
}
