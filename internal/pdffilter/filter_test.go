package pdffilter_test

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"testing"

	"github.com/mechiko/pdfsanitize/internal/pdffilter"
	"github.com/stretchr/testify/require"
)

func TestFlateDecodeRoundTrip(t *testing.T) {
	input := []byte("Hello, sanitizer! Hello, sanitizer! Hello, sanitizer!")

	var encoded bytes.Buffer
	zw := zlib.NewWriter(&encoded)
	_, err := zw.Write(input)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	dec, err := pdffilter.NewDecoder(pdffilter.Flate)
	require.NoError(t, err)

	out, err := dec.Decode(bytes.NewReader(encoded.Bytes()), 1<<20, nil)
	require.NoError(t, err)
	require.Equal(t, input, out.Bytes())
}

func TestFlateDecodeBudgetExceeded(t *testing.T) {
	input := bytes.Repeat([]byte("A"), 10_000)

	var encoded bytes.Buffer
	zw := zlib.NewWriter(&encoded)
	_, err := zw.Write(input)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	dec, err := pdffilter.NewDecoder(pdffilter.Flate)
	require.NoError(t, err)

	_, err = dec.Decode(bytes.NewReader(encoded.Bytes()), 100, nil)
	require.ErrorIs(t, err, pdffilter.ErrBudgetExceeded)
}

func TestASCII85DecodeRoundTrip(t *testing.T) {
	input := []byte("the quick brown fox")

	var encoded bytes.Buffer
	enc := ascii85.NewEncoder(&encoded)
	_, err := enc.Write(input)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	encoded.WriteString("~>")

	dec, err := pdffilter.NewDecoder(pdffilter.ASCII85)
	require.NoError(t, err)

	out, err := dec.Decode(bytes.NewReader(encoded.Bytes()), 1<<10, nil)
	require.NoError(t, err)
	require.Equal(t, input, out.Bytes())
}

func TestASCIIHexDecodeRoundTrip(t *testing.T) {
	dec, err := pdffilter.NewDecoder(pdffilter.ASCIIHex)
	require.NoError(t, err)

	out, err := dec.Decode(bytes.NewReader([]byte("48656c6c6f>")), 1<<10, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("Hello"), out.Bytes())
}

func TestRunLengthDecode(t *testing.T) {
	// Replicate run: 4 copies of 'A' followed by a literal run "Bc" then EOD.
	encoded := []byte{257 - 4, 'A', 1, 'B', 'c', 0x80}

	dec, err := pdffilter.NewDecoder(pdffilter.RunLength)
	require.NoError(t, err)

	out, err := dec.Decode(bytes.NewReader(encoded), 1<<10, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("AAAABc"), out.Bytes())
}

func TestUnsupportedFilter(t *testing.T) {
	_, err := pdffilter.NewDecoder("BogusDecode")
	require.ErrorIs(t, err, pdffilter.ErrUnsupportedFilter)
}
