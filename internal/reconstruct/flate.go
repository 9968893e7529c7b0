package reconstruct

import (
	"bytes"
	"compress/zlib"

	"github.com/pkg/errors"
)

// flateEncode re-compresses decoded pixel data with a fresh
// FlateDecode stream; the reconstructor never passes through the
// original image stream bytes, even when the original filter was
// already Flate.
func flateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "reconstruct: flate encode")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "reconstruct: flate encode close")
	}
	return buf.Bytes(), nil
}
