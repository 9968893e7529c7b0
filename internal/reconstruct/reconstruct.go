// Package reconstruct rebuilds a minimal, syntactically clean PDF from
// an ir.Document. It never touches the original input bytes — every
// byte it emits is freshly generated from IR fields, so the output is
// deterministic and reproducible given an identical Document.
package reconstruct

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mechiko/pdfsanitize/internal/contentstream"
	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/pkg/errors"
)

// Result reports the fingerprint and size of a successfully written
// output file, for the audit trail's document.sanitized_* fields.
type Result struct {
	SHA256 [32]byte
	Bytes  int64
}

// object is one indirect object awaiting serialization; objects are
// emitted strictly in ascending Num order so the byte stream — and
// therefore its SHA-256 — is reproducible for a given Document.
type object struct {
	Num   int
	Body  []byte // everything between "N 0 obj" and "endobj", already rendered
	Bytes []byte // raw stream payload, appended after the dict if non-nil
}

// Reconstruct renders doc and atomically writes it to outPath (via a
// temp file in the same directory, then rename, so a concurrent reader
// never observes a partially written file).
func Reconstruct(doc *ir.Document, outPath string) (Result, error) {
	data, err := render(doc)
	if err != nil {
		return Result{}, err
	}

	dir := filepath.Dir(outPath)
	tmp, err := os.CreateTemp(dir, ".pdfsanitize-out-*")
	if err != nil {
		return Result{}, errors.Wrap(err, "reconstruct: create temp output file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return Result{}, errors.Wrap(err, "reconstruct: write temp output file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Result{}, errors.Wrap(err, "reconstruct: fsync temp output file")
	}
	if err := tmp.Close(); err != nil {
		return Result{}, errors.Wrap(err, "reconstruct: close temp output file")
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return Result{}, errors.Wrap(err, "reconstruct: rename temp output file into place")
	}

	return Result{SHA256: sha256.Sum256(data), Bytes: int64(len(data))}, nil
}

// render produces the full PDF byte stream in memory. Splitting this
// from Reconstruct keeps the pure, testable half free of filesystem
// concerns.
func render(doc *ir.Document) ([]byte, error) {
	if len(doc.Pages) == 0 {
		return nil, errors.New("reconstruct: document has no pages")
	}

	var objs []*object
	nextNum := 1

	alloc := func() int {
		n := nextNum
		nextNum++
		return n
	}

	catalogNum := alloc()
	pagesNum := alloc()

	pageNums := make([]int, len(doc.Pages))
	for i := range doc.Pages {
		pageNums[i] = alloc()
	}

	for i, page := range doc.Pages {
		if err := renderPage(page, pageNums[i], pagesNum, &objs, alloc); err != nil {
			return nil, errors.Wrapf(err, "page %d", i)
		}
	}

	kids := make([]string, len(pageNums))
	for i, n := range pageNums {
		kids[i] = fmt.Sprintf("%d 0 R", n)
	}
	pagesBody := fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", joinSpace(kids), len(pageNums))
	objs = append(objs, &object{Num: pagesNum, Body: []byte(pagesBody)})

	catalogBody := fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesNum)
	objs = append(objs, &object{Num: catalogNum, Body: []byte(catalogBody)})

	return assemble(catalogNum, objs), nil
}

func joinSpace(ss []string) string {
	var sb bytes.Buffer
	for i, s := range ss {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s)
	}
	return sb.String()
}

// renderPage emits the Page object plus its Contents stream, font
// resource dicts, and image XObject streams, all freshly numbered.
func renderPage(page *ir.Page, pageNum, parentNum int, objs *[]*object, alloc func() int) error {
	contentBytes := contentstream.Serialize(page.ContentOps)
	contentNum := alloc()
	*objs = append(*objs, &object{
		Num:   contentNum,
		Body:  []byte(fmt.Sprintf("<< /Length %d >>", len(contentBytes))),
		Bytes: contentBytes,
	})

	fontNames := make([]string, 0, len(page.Fonts))
	for name := range page.Fonts {
		fontNames = append(fontNames, name)
	}
	sortStrings(fontNames)

	fontEntries := make([]string, 0, len(fontNames))
	for _, name := range fontNames {
		f := page.Fonts[name]
		fontNum := alloc()
		body := fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /%s >>", f.BaseFont)
		*objs = append(*objs, &object{Num: fontNum, Body: []byte(body)})
		fontEntries = append(fontEntries, fmt.Sprintf("/%s %d 0 R", name, fontNum))
	}

	imageNames := make([]string, 0, len(page.Images))
	for name := range page.Images {
		imageNames = append(imageNames, name)
	}
	sortStrings(imageNames)

	xobjEntries := make([]string, 0, len(imageNames))
	for _, name := range imageNames {
		img := page.Images[name]
		imgNum := alloc()
		encoded, err := flateEncode(img.PixelData)
		if err != nil {
			return errors.Wrapf(err, "image %q", name)
		}
		body := fmt.Sprintf(
			"<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /%s /BitsPerComponent %d /Filter /FlateDecode /Length %d >>",
			img.Width, img.Height, img.ColorSpace, img.BitsPerComp, len(encoded))
		*objs = append(*objs, &object{Num: imgNum, Body: []byte(body), Bytes: encoded})
		xobjEntries = append(xobjEntries, fmt.Sprintf("/%s %d 0 R", name, imgNum))
	}

	resourceParts := []string{}
	if len(fontEntries) > 0 {
		resourceParts = append(resourceParts, fmt.Sprintf("/Font << %s >>", joinSpace(fontEntries)))
	}
	if len(xobjEntries) > 0 {
		resourceParts = append(resourceParts, fmt.Sprintf("/XObject << %s >>", joinSpace(xobjEntries)))
	}
	resources := "<< " + joinSpace(resourceParts) + " >>"

	mb := page.MediaBox
	pageBody := fmt.Sprintf(
		"<< /Type /Page /Parent %d 0 R /MediaBox [%s %s %s %s] /Resources %s /Contents %d 0 R >>",
		parentNum, fnum(mb.X0), fnum(mb.Y0), fnum(mb.X1), fnum(mb.Y1), resources, contentNum)

	*objs = append(*objs, &object{Num: pageNum, Body: []byte(pageBody)})
	return nil
}

func fnum(f float64) string {
	return fmt.Sprintf("%.4f", f)
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j-1] > ss[j]; j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}

// assemble writes the header, every object in ascending number order,
// a classic cross-reference table, and the trailer.
func assemble(catalogNum int, objs []*object) []byte {
	byNum := map[int]*object{}
	maxNum := 0
	for _, o := range objs {
		byNum[o.Num] = o
		if o.Num > maxNum {
			maxNum = o.Num
		}
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, maxNum+1)
	for n := 1; n <= maxNum; n++ {
		o, ok := byNum[n]
		if !ok {
			offsets[n] = -1
			continue
		}
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\n", o.Num, o.Body)
		if o.Bytes != nil {
			buf.WriteString("stream\n")
			buf.Write(o.Bytes)
			buf.WriteString("\nendstream\n")
		}
		buf.WriteString("endobj\n")
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n <= maxNum; n++ {
		if offsets[n] < 0 {
			buf.WriteString("0000000000 00000 f \n")
			continue
		}
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[n])
	}

	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", maxNum+1, catalogNum, xrefOffset)

	return buf.Bytes()
}
