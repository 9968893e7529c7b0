package pdffilter

import (
	"bytes"
	"io"

	hlzw "github.com/hhrutter/lzw"
)

// lzwDecoder implements LZWDecode using the real published
// hhrutter/lzw module (PDF's LZW variant differs subtly from
// compress/lzw's GIF variant in its early-change behavior, which is
// why PDF libraries carry a dedicated implementation rather than
// reusing the stdlib one).
type lzwDecoder struct{}

func (lzwDecoder) Decode(r io.Reader, budget int64, parms Params) (*bytes.Buffer, error) {
	earlyChange := 1
	if v, ok := parms["EarlyChange"]; ok {
		earlyChange = int(v)
	}

	rc := hlzw.NewReader(r, earlyChange == 1)
	defer rc.Close()

	var out bytes.Buffer
	if err := copyWithBudget(&out, rc, budget); err != nil {
		return nil, err
	}
	return &out, nil
}
