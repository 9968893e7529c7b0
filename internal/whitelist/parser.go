// Package whitelist implements the constructive, allow-list PDF
// parser: it never returns the input's own object graph, only a fresh
// ir.Document built exclusively from admitted constructs. Anything
// encountered that is not on the allow-list causes a typed
// ParseFailure rather than a best-effort pass-through.
package whitelist

import (
	"bytes"
	"crypto/sha256"

	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/mechiko/pdfsanitize/internal/pdffilter"
	"github.com/mechiko/pdfsanitize/internal/pdfobj"
	"github.com/pkg/errors"
)

// ParserVersion is embedded into every Document this package produces.
const ParserVersion = "pdfsanitize-whitelist/1"

// Policy selects how the parser reacts to a single page's rejection.
type Policy string

const (
	// PolicyPermissive drops the offending page and continues.
	PolicyPermissive Policy = "PERMISSIVE"
	// PolicyStrict rejects the whole document if any page fails.
	PolicyStrict Policy = "STRICT"
)

// Limits bounds every resource the parser is willing to admit. The
// pipeline controller constructs this from its configuration and
// sends it in the job spec; the isolation worker passes it to Parse.
type Limits struct {
	MaxInputBytes      int64
	MaxObjects         int
	MaxPages           int
	MaxOpsPerPage      int
	MaxImagePixels     int64
	MaxDecodeOutputBytes int64
	MaxPDFVersion      string
	Policy             Policy
}

func (l Limits) withDefaults() Limits {
	if l.MaxInputBytes == 0 {
		l.MaxInputBytes = 500 << 20
	}
	if l.MaxObjects == 0 {
		l.MaxObjects = 2_000_000
	}
	if l.MaxPages == 0 {
		l.MaxPages = ir.DefaultMaxPages
	}
	if l.MaxOpsPerPage == 0 {
		l.MaxOpsPerPage = ir.DefaultMaxOpsPerPage
	}
	if l.MaxImagePixels == 0 {
		l.MaxImagePixels = int64(ir.DefaultMaxImageDimension) * int64(ir.DefaultMaxImageDimension)
	}
	if l.MaxDecodeOutputBytes == 0 {
		l.MaxDecodeOutputBytes = int64(ir.DefaultMaxImageBytes)
	}
	if l.MaxPDFVersion == "" {
		l.MaxPDFVersion = "1.7"
	}
	if l.Policy == "" {
		l.Policy = PolicyPermissive
	}
	return l
}

// Parse reads buf (the full contents of a candidate PDF file already
// verified to live under the declared input root and to not be a
// symlink — that precondition is the caller's, per spec.md §4.1.1) and
// returns a validated ir.Document or a typed ParseFailure.
func Parse(buf []byte, lim Limits) (*ir.Document, error) {
	lim = lim.withDefaults()

	if err := checkPreconditions(buf, lim); err != nil {
		return nil, err
	}

	objects, err := scanObjects(buf, lim.MaxObjects)
	if err != nil {
		return nil, err
	}

	if isEncrypted(objects) {
		return nil, fail(Encrypted, "", errors.New("document declares an /Encrypt dictionary"))
	}

	catalog, err := findCatalog(objects)
	if err != nil {
		return nil, err
	}

	p := &parser{objects: objects, lim: lim, seen: map[int]bool{}}
	if err := p.checkBlockedKeys(catalog, "Catalog"); err != nil {
		return nil, err
	}

	pagesRoot, ok := resolveDict(objects, catalog["Pages"])
	if !ok {
		return nil, fail(Malformed, "Catalog", errors.New("missing or malformed /Pages"))
	}

	var pageDicts []inherited
	if err := p.collectPages(pagesRoot, inherited{}, &pageDicts); err != nil {
		return nil, err
	}
	if len(pageDicts) == 0 {
		return nil, fail(Malformed, "Pages", errors.New("document has zero pages"))
	}
	if len(pageDicts) > lim.MaxPages {
		return nil, failf(LimitExceeded, "Pages", "document has %d pages, limit is %d", len(pageDicts), lim.MaxPages)
	}

	var pages []*ir.Page
	for i, inh := range pageDicts {
		page, err := p.buildPage(inh, i)
		if err != nil {
			if lim.Policy == PolicyStrict {
				return nil, err
			}
			continue
		}
		pages = append(pages, page)
	}
	if len(pages) == 0 {
		return nil, fail(Malformed, "Pages", errors.New("no page survived allow-list admission"))
	}

	doc := &ir.Document{
		Pages:         pages,
		SourceSHA256:  sha256.Sum256(buf),
		ParserVersion: ParserVersion,
		Threats:       p.threats,
	}
	if err := ir.Validate(doc, ir.Limits{MaxPages: lim.MaxPages, MaxOpsPerPage: lim.MaxOpsPerPage}); err != nil {
		return nil, fail(Malformed, "", errors.Wrap(err, "IR failed re-validation at construction time"))
	}
	return doc, nil
}

func checkPreconditions(buf []byte, lim Limits) error {
	if int64(len(buf)) > lim.MaxInputBytes {
		return failf(LimitExceeded, "", "input is %d bytes, limit is %d", len(buf), lim.MaxInputBytes)
	}
	if len(buf) < 8 || !bytes.HasPrefix(buf, []byte("%PDF-")) {
		return fail(NotAPDF, "0", errors.New("missing %PDF- magic bytes"))
	}
	version := string(bytes.TrimRight(buf[5:8], "\r\n \t"))
	if version > lim.MaxPDFVersion {
		return failf(UnsupportedVersion, "0", "declared version %s exceeds maximum %s", version, lim.MaxPDFVersion)
	}
	if !bytes.Contains(buf, []byte("%%EOF")) {
		return fail(Truncated, "", errors.New("missing %%EOF marker"))
	}
	return nil
}

func isEncrypted(objects map[int]pdfobj.Object) bool {
	for _, o := range objects {
		if d, ok := o.(pdfobj.Dict); ok {
			if _, has := d["Encrypt"]; has {
				if _, isRef := d["Encrypt"].(pdfobj.IndirectRef); isRef {
					return true
				}
				if _, isDict := d["Encrypt"].(pdfobj.Dict); isDict {
					return true
				}
			}
		}
	}
	return false
}

// findCatalog locates the single /Type /Catalog dictionary. The
// classic trailer's /Root entry is attacker-controlled exactly like
// the xref table is, so the catalog is instead found by its declared
// type among the scanned objects; more than one candidate is
// ambiguous and rejected.
func findCatalog(objects map[int]pdfobj.Object) (pdfobj.Dict, error) {
	var found pdfobj.Dict
	count := 0
	for _, o := range objects {
		d, ok := o.(pdfobj.Dict)
		if !ok {
			continue
		}
		if t, ok := d.NameEntry("Type"); ok && t == "Catalog" {
			found = d
			count++
		}
	}
	if count == 0 {
		return nil, fail(Malformed, "", errors.New("no /Type /Catalog object found"))
	}
	if count > 1 {
		return nil, fail(DisallowedConstruct, "", errors.New("multiple Catalog objects is an allow-list violation"))
	}
	return found, nil
}

var decoderFor = pdffilter.NewDecoder
