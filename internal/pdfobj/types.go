// Package pdfobj implements the tagged-variant PDF object model the
// whitelist parser traverses. Every PDF primitive is represented by a
// distinct Go type satisfying Object; there is no duck-typed field
// access anywhere above this package. An object the parser does not
// recognize is a parse error, never a silently-ignored value.
package pdfobj

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Object is satisfied by every PDF primitive kind the lexer can
// produce: Boolean, Integer, Float, Name, StringLiteral, HexLiteral,
// Array, Dict, StreamDict, IndirectRef and Null.
type Object interface {
	fmt.Stringer
	Clone() Object
}

// Null represents the PDF null object.
type Null struct{}

func (Null) String() string { return "null" }
func (Null) Clone() Object  { return Null{} }

// Boolean represents a PDF boolean object.
type Boolean bool

func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }
func (b Boolean) Clone() Object  { return b }

// Integer represents a PDF integer object.
type Integer int64

func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }
func (i Integer) Clone() Object  { return i }

// Float represents a PDF real object, parsed at unbounded precision
// from the source decimal and converted once to IEEE-754 double.
type Float float64

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'f', -1, 64) }
func (f Float) Clone() Object  { return f }

// Name represents a PDF name object, e.g. /Type.
type Name string

func (n Name) String() string { return "/" + string(n) }
func (n Name) Clone() Object  { return n }

// StringLiteral represents a PDF (...) delimited string. Bytes are
// stored exactly as decoded from the literal's escape sequences; no
// text-encoding interpretation happens at this layer (Open Question
// O1 — interpretation is the font's job, never the parser's).
type StringLiteral []byte

func (s StringLiteral) String() string { return fmt.Sprintf("(%s)", string(s)) }
func (s StringLiteral) Clone() Object {
	c := make(StringLiteral, len(s))
	copy(c, s)
	return c
}

// HexLiteral represents a PDF <...> delimited hex string.
type HexLiteral []byte

func (h HexLiteral) String() string { return fmt.Sprintf("<%x>", []byte(h)) }
func (h HexLiteral) Clone() Object {
	c := make(HexLiteral, len(h))
	copy(c, h)
	return c
}

// IndirectRef represents an "N G R" indirect object reference.
type IndirectRef struct {
	ObjectNumber     int
	GenerationNumber int
}

func (r IndirectRef) String() string {
	return fmt.Sprintf("%d %d R", r.ObjectNumber, r.GenerationNumber)
}
func (r IndirectRef) Clone() Object { return r }

// Array represents a PDF array object.
type Array []Object

func (a Array) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, o := range a {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(o.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

func (a Array) Clone() Object {
	c := make(Array, len(a))
	for i, o := range a {
		c[i] = o.Clone()
	}
	return c
}

// Dict represents a PDF dictionary object. Key order is not
// significant to the PDF grammar; Keys() returns a sorted order so
// that any serialization built from a Dict is deterministic (needed
// for reconstructor determinism, spec.md §4.3.2).
type Dict map[string]Object

func (d Dict) String() string {
	var sb strings.Builder
	sb.WriteString("<<")
	for _, k := range d.Keys() {
		sb.WriteString("/" + k + " ")
		sb.WriteString(d[k].String())
		sb.WriteByte(' ')
	}
	sb.WriteString(">>")
	return sb.String()
}

func (d Dict) Clone() Object {
	c := make(Dict, len(d))
	for k, v := range d {
		c[k] = v.Clone()
	}
	return c
}

// Keys returns the dictionary's keys in sorted order.
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NameEntry returns the Name value of key, or ("", false) if absent
// or of a different type.
func (d Dict) NameEntry(key string) (string, bool) {
	o, ok := d[key]
	if !ok {
		return "", false
	}
	n, ok := o.(Name)
	return string(n), ok
}

// IntEntry returns the Integer value of key, or (0, false) if absent
// or of a different type.
func (d Dict) IntEntry(key string) (int64, bool) {
	o, ok := d[key]
	if !ok {
		return 0, false
	}
	i, ok := o.(Integer)
	return int64(i), ok
}

// ArrayEntry returns the Array value of key, or (nil, false) if
// absent or of a different type.
func (d Dict) ArrayEntry(key string) (Array, bool) {
	o, ok := d[key]
	if !ok {
		return nil, false
	}
	a, ok := o.(Array)
	return a, ok
}

// DictEntry returns the Dict value of key, or (nil, false) if absent
// or of a different type.
func (d Dict) DictEntry(key string) (Dict, bool) {
	o, ok := d[key]
	if !ok {
		return nil, false
	}
	dd, ok := o.(Dict)
	return dd, ok
}

// StreamDict represents a PDF stream object: a Dict plus its raw
// (still encoded) byte payload and the ordered list of filter names
// declared in /Filter. The parser never exposes a StreamDict's Raw
// bytes to the reconstructor — they are decoded, validated and
// re-typed into an ir.ImageRef or content-stream Op list first.
type StreamDict struct {
	Dict
	Raw     []byte
	Filters []string
	Parms   []Dict
}

func (sd StreamDict) String() string {
	return fmt.Sprintf("%s stream(%d bytes, filters=%v)", sd.Dict.String(), len(sd.Raw), sd.Filters)
}

func (sd StreamDict) Clone() Object {
	c := sd
	c.Dict = sd.Dict.Clone().(Dict)
	c.Raw = append([]byte(nil), sd.Raw...)
	c.Filters = append([]string(nil), sd.Filters...)
	parms := make([]Dict, len(sd.Parms))
	for i, p := range sd.Parms {
		if p != nil {
			parms[i] = p.Clone().(Dict)
		}
	}
	c.Parms = parms
	return c
}
