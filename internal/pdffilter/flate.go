package pdffilter

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/pkg/errors"
)

// flateDecoder implements FlateDecode via stdlib compress/zlib (PDF's
// FlateDecode streams carry a zlib header per ISO 32000-1 §7.4.4).
type flateDecoder struct{}

func (flateDecoder) Decode(r io.Reader, budget int64, _ Params) (*bytes.Buffer, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "pdffilter: flate: bad zlib header")
	}
	defer zr.Close()

	var out bytes.Buffer
	if err := copyWithBudget(&out, zr, budget); err != nil {
		return nil, err
	}
	return &out, nil
}
