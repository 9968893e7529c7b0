package pdffilter

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

type runLengthDecoder struct{}

const eodRunLength = 0x80

func (runLengthDecoder) Decode(r io.Reader, budget int64, _ Params) (*bytes.Buffer, error) {
	src := bufio.NewReader(r)
	var out bytes.Buffer

	for {
		b, err := src.ReadByte()
		if err != nil {
			return nil, errors.Wrap(err, "pdffilter: runlength: missing EOD marker")
		}
		if b == eodRunLength {
			if int64(out.Len()) > budget {
				return nil, ErrBudgetExceeded
			}
			return &out, nil
		}
		if int64(out.Len()) > budget {
			return nil, ErrBudgetExceeded
		}
		if b < 0x80 {
			count := int(b) + 1
			for j := 0; j < count; j++ {
				c, err := src.ReadByte()
				if err != nil {
					return nil, errors.Wrap(err, "pdffilter: runlength: truncated literal run")
				}
				out.WriteByte(c)
			}
			continue
		}
		count := 257 - int(b)
		c, err := src.ReadByte()
		if err != nil {
			return nil, errors.Wrap(err, "pdffilter: runlength: truncated replicate run")
		}
		for j := 0; j < count; j++ {
			out.WriteByte(c)
		}
	}
}
