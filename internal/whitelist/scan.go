package whitelist

import (
	"bytes"

	"github.com/mechiko/pdfsanitize/internal/pdflex"
	"github.com/mechiko/pdfsanitize/internal/pdfobj"
)

// scanObjects performs a brute-force, xref-free sweep of the file for
// "N G obj ... endobj" spans. The classic cross-reference table is
// never trusted: it is attacker-controlled data that exists purely to
// accelerate readers, and trusting it is exactly the mechanism behind
// shadowed-object and xref-smuggling attacks. A straight left-to-right
// scan for object bodies, keeping the last definition of any object
// number (mirroring how incremental updates are meant to be read),
// gives the same result without ever consulting xref/trailer bytes.
func scanObjects(buf []byte, maxObjects int) (map[int]pdfobj.Object, error) {
	objects := make(map[int]pdfobj.Object)
	count := 0

	pos := 0
	for {
		idx := bytes.Index(buf[pos:], []byte("obj"))
		if idx < 0 {
			break
		}
		objPos := pos + idx

		// Walk backward from "obj" to recover "N G obj".
		headerStart := backtrackObjectHeader(buf, objPos)
		if headerStart < 0 {
			pos = objPos + 3
			continue
		}

		objNr, _, next, err := pdflex.ParseObjectAttributes(buf, headerStart)
		if err != nil {
			pos = objPos + 3
			continue
		}

		bodyPos := pdflex.SkipWhitespace(buf, next)
		obj, afterObj, err := pdflex.ParseObject(buf, bodyPos)
		if err != nil {
			pos = objPos + 3
			continue
		}

		afterObj = pdflex.SkipWhitespace(buf, afterObj)
		if hasKeywordAt(buf, afterObj, "stream") {
			streamDict, ok := obj.(pdfobj.Dict)
			if !ok {
				pos = afterObj
				continue
			}
			sd, streamEnd, err := readStream(buf, afterObj, streamDict)
			if err == nil {
				obj = sd
				afterObj = streamEnd
			}
		}

		objects[objNr] = obj
		count++
		if maxObjects > 0 && count > maxObjects {
			return nil, failf(LimitExceeded, "", "file defines more than %d indirect objects", maxObjects)
		}
		pos = afterObj
	}

	return objects, nil
}

// backtrackObjectHeader looks immediately before a located "obj"
// keyword for "<digits> <digits>" and returns the start offset of the
// first digit, or -1 if the bytes before "obj" don't form a header.
func backtrackObjectHeader(buf []byte, objPos int) int {
	p := objPos
	p = skipSpacesBackward(buf, p)
	genEnd := p
	p = skipDigitsBackward(buf, p)
	genStart := p
	if genStart == genEnd {
		return -1
	}
	p = skipSpacesBackward(buf, p)
	if p == genStart {
		return -1 // no separating whitespace
	}
	numEnd := p
	p = skipDigitsBackward(buf, p)
	numStart := p
	if numStart == numEnd {
		return -1
	}
	return numStart
}

func skipSpacesBackward(buf []byte, p int) int {
	for p > 0 && isWS(buf[p-1]) {
		p--
	}
	return p
}

func skipDigitsBackward(buf []byte, p int) int {
	for p > 0 && buf[p-1] >= '0' && buf[p-1] <= '9' {
		p--
	}
	return p
}

func isWS(b byte) bool {
	switch b {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func hasKeywordAt(buf []byte, pos int, kw string) bool {
	if pos+len(kw) > len(buf) {
		return false
	}
	return string(buf[pos:pos+len(kw)]) == kw
}

// readStream extracts a stream's raw bytes using the dict's declared
// /Length where it is trustworthy (a small non-negative integer
// consistent with an "endstream" marker nearby), falling back to a
// literal search for the next "endstream" token — the same tolerance
// classic PDF readers apply, since a forged /Length is a well known
// attack against naive parsers that trust it unconditionally.
func readStream(buf []byte, afterDict int, d pdfobj.Dict) (pdfobj.StreamDict, int, error) {
	pos := afterDict + len("stream")
	if pos < len(buf) && buf[pos] == '\r' {
		pos++
	}
	if pos < len(buf) && buf[pos] == '\n' {
		pos++
	}
	start := pos

	end := -1
	if length, ok := d.IntEntry("Length"); ok && length >= 0 && start+int(length) <= len(buf) {
		candidate := start + int(length)
		probe := pdflex.SkipWhitespace(buf, candidate)
		if hasKeywordAt(buf, probe, "endstream") {
			end = candidate
		}
	}
	if end < 0 {
		idx := bytes.Index(buf[start:], []byte("endstream"))
		if idx < 0 {
			return pdfobj.StreamDict{}, 0, failf(Malformed, "", "stream missing endstream marker")
		}
		end = start + idx
		for end > start && isWS(buf[end-1]) {
			end--
		}
	}

	raw := append([]byte(nil), buf[start:end]...)

	afterEndstream := bytes.Index(buf[end:], []byte("endstream"))
	if afterEndstream < 0 {
		return pdfobj.StreamDict{}, 0, failf(Malformed, "", "stream missing endstream marker")
	}
	nextPos := end + afterEndstream + len("endstream")

	filters, parms := filterChain(d)
	return pdfobj.StreamDict{Dict: d, Raw: raw, Filters: filters, Parms: parms}, nextPos, nil
}

func filterChain(d pdfobj.Dict) ([]string, []pdfobj.Dict) {
	var names []string
	var parms []pdfobj.Dict

	switch f := d["Filter"].(type) {
	case pdfobj.Name:
		names = append(names, string(f))
	case pdfobj.Array:
		for _, e := range f {
			if n, ok := e.(pdfobj.Name); ok {
				names = append(names, string(n))
			}
		}
	}

	switch p := d["DecodeParms"].(type) {
	case pdfobj.Dict:
		parms = append(parms, p)
	case pdfobj.Array:
		for _, e := range p {
			if dd, ok := e.(pdfobj.Dict); ok {
				parms = append(parms, dd)
			} else {
				parms = append(parms, nil)
			}
		}
	}
	for len(parms) < len(names) {
		parms = append(parms, nil)
	}
	return names, parms
}

// resolve follows a single level of indirection: if o is an
// IndirectRef, the referenced object is returned; otherwise o itself.
func resolve(objects map[int]pdfobj.Object, o pdfobj.Object) pdfobj.Object {
	if ref, ok := o.(pdfobj.IndirectRef); ok {
		if target, ok := objects[ref.ObjectNumber]; ok {
			return target
		}
		return nil
	}
	return o
}

func resolveDict(objects map[int]pdfobj.Object, o pdfobj.Object) (pdfobj.Dict, bool) {
	r := resolve(objects, o)
	switch v := r.(type) {
	case pdfobj.Dict:
		return v, true
	case pdfobj.StreamDict:
		return v.Dict, true
	}
	return nil, false
}

func resolveStream(objects map[int]pdfobj.Object, o pdfobj.Object) (pdfobj.StreamDict, bool) {
	r := resolve(objects, o)
	sd, ok := r.(pdfobj.StreamDict)
	return sd, ok
}
