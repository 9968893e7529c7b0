// Package pdffilter implements PDF stream filter decoders. Every
// decoder enforces a declared output-byte budget so a small
// compressed input cannot exhaust worker memory (a decompression
// bomb, spec.md §4.1.3) — exceeding the budget aborts the decode with
// ErrBudgetExceeded rather than returning a truncated buffer.
package pdffilter

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// Filter names as they appear in a PDF /Filter entry.
const (
	ASCII85   = "ASCII85Decode"
	ASCIIHex  = "ASCIIHexDecode"
	RunLength = "RunLengthDecode"
	LZW       = "LZWDecode"
	Flate     = "FlateDecode"
	CCITTFax  = "CCITTFaxDecode"
	JBIG2     = "JBIG2Decode"
	DCT       = "DCTDecode"
)

// ErrUnsupportedFilter signals a filter name the engine does not
// implement at all (never admitted regardless of policy).
var ErrUnsupportedFilter = errors.New("pdffilter: filter not supported")

// ErrBudgetExceeded signals a decode whose output exceeded the
// caller-supplied byte budget.
var ErrBudgetExceeded = errors.New("pdffilter: decode output budget exceeded")

// AllowedImageFilters is the set of filters admissible as part of an
// ImageRef.filter_chain (Open Question O3). JBIG2Decode is excluded:
// it has a documented history of decoder vulnerabilities, and this
// package has no decoder for it. The whitelist parser consults only
// this list; config.Configuration.AllowedImageFilters is loaded but
// does not change which filters are admitted.
var AllowedImageFilters = []string{Flate, DCT, CCITTFax}

// Params carries a decode parameter dictionary's integer entries,
// e.g. {"Columns": 1728, "K": -1, "BlackIs1": 0}.
type Params map[string]int64

// Decoder decodes a single filter's encoded bytes. Decode must stop
// and return ErrBudgetExceeded as soon as more than budget bytes of
// output have been produced.
type Decoder interface {
	Decode(r io.Reader, budget int64, parms Params) (*bytes.Buffer, error)
}

// NewDecoder returns the Decoder implementing filterName, or
// ErrUnsupportedFilter.
func NewDecoder(filterName string) (Decoder, error) {
	switch filterName {
	case ASCII85:
		return ascii85Decoder{}, nil
	case ASCIIHex:
		return asciiHexDecoder{}, nil
	case RunLength:
		return runLengthDecoder{}, nil
	case LZW:
		return lzwDecoder{}, nil
	case Flate:
		return flateDecoder{}, nil
	case CCITTFax:
		return ccittDecoder{}, nil
	case DCT:
		return dctDecoder{}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedFilter, "%q", filterName)
	}
}

// budgetedBuffer caps how many bytes can be written to it.
type budgetedBuffer struct {
	buf    bytes.Buffer
	budget int64
}

func (b *budgetedBuffer) Write(p []byte) (int, error) {
	if int64(b.buf.Len())+int64(len(p)) > b.budget {
		return 0, ErrBudgetExceeded
	}
	return b.buf.Write(p)
}

func copyWithBudget(dst io.Writer, src io.Reader, budget int64) error {
	lr := io.LimitReader(src, budget+1)
	n, err := io.Copy(dst, lr)
	if err != nil {
		return err
	}
	if n > budget {
		return ErrBudgetExceeded
	}
	return nil
}
