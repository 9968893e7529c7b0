package pdffilter

import (
	"bytes"
	"encoding/ascii85"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

type ascii85Decoder struct{}

const eodASCII85 = "~>"

func (ascii85Decoder) Decode(r io.Reader, budget int64, _ Params) (*bytes.Buffer, error) {
	p, err := io.ReadAll(io.LimitReader(r, budget*2+1024))
	if err != nil {
		return nil, errors.Wrap(err, "pdffilter: ascii85: read source")
	}
	p = bytes.TrimSuffix(bytes.TrimSpace(p), []byte(eodASCII85))

	var out bytes.Buffer
	if err := copyWithBudget(&out, ascii85.NewDecoder(bytes.NewReader(p)), budget); err != nil {
		return nil, err
	}
	return &out, nil
}

type asciiHexDecoder struct{}

const eodHex = '>'

func (asciiHexDecoder) Decode(r io.Reader, budget int64, _ Params) (*bytes.Buffer, error) {
	bb, err := io.ReadAll(io.LimitReader(r, budget*2+1024))
	if err != nil {
		return nil, errors.Wrap(err, "pdffilter: asciihex: read source")
	}

	p := make([]byte, 0, len(bb))
	for _, b := range bb {
		if b == eodHex {
			break
		}
		switch b {
		case 0x09, 0x0A, 0x0C, 0x0D, 0x20:
			continue
		}
		p = append(p, b)
	}
	if len(p)%2 == 1 {
		p = append(p, '0')
	}

	if int64(hex.DecodedLen(len(p))) > budget {
		return nil, ErrBudgetExceeded
	}
	dst := make([]byte, hex.DecodedLen(len(p)))
	if _, err := hex.Decode(dst, p); err != nil {
		return nil, errors.Wrap(err, "pdffilter: asciihex: malformed hex digit")
	}
	return bytes.NewBuffer(dst), nil
}
