package pdffilter

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"

	"github.com/pkg/errors"
)

// DecodedImage is what a DCT/CCITT decode produces: raw,
// already-validated pixel bytes plus the geometry the decoder itself
// observed, so the caller can cross-check it against whatever the PDF
// image dictionary *claims* (the decode-and-measure check of IR
// invariant I5).
type DecodedImage struct {
	Width, Height int
	Components    int
	Pixels        []byte // row-major, Components bytes per pixel, 8 bits per component
}

type dctDecoder struct{}

// Decode decodes a DCTDecode (baseline/progressive JPEG) stream via
// the standard library's image/jpeg and flattens it to row-major
// 8-bit samples so the caller can measure it against the declared
// width/height/components before admission.
func (dctDecoder) Decode(r io.Reader, budget int64, _ Params) (*bytes.Buffer, error) {
	img, err := jpeg.Decode(io.LimitReader(r, budget*4+1024))
	if err != nil {
		return nil, errors.Wrap(err, "pdffilter: dct: jpeg decode failed")
	}

	di, err := flattenImage(img)
	if err != nil {
		return nil, err
	}
	if int64(len(di.Pixels)) > budget {
		return nil, ErrBudgetExceeded
	}

	var out bytes.Buffer
	out.Write(di.Pixels)
	return &out, nil
}

// DecodeMeasured is the variant the whitelist parser calls directly:
// it returns geometry alongside pixels rather than forcing the caller
// to re-derive it from a flat buffer and claimed dimensions.
func DecodeMeasuredDCT(r io.Reader, budget int64) (*DecodedImage, error) {
	img, err := jpeg.Decode(io.LimitReader(r, budget*4+1024))
	if err != nil {
		return nil, errors.Wrap(err, "pdffilter: dct: jpeg decode failed")
	}
	di, err := flattenImage(img)
	if err != nil {
		return nil, err
	}
	if int64(len(di.Pixels)) > budget {
		return nil, ErrBudgetExceeded
	}
	return di, nil
}

func flattenImage(img image.Image) (*DecodedImage, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, errors.New("pdffilter: dct: empty image bounds")
	}

	switch px := img.(type) {
	case *image.Gray:
		return &DecodedImage{Width: w, Height: h, Components: 1, Pixels: px.Pix}, nil
	case *image.CMYK:
		return &DecodedImage{Width: w, Height: h, Components: 4, Pixels: px.Pix}, nil
	default:
		rgba := image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				rgba.Set(x, y, img.At(x, y))
			}
		}
		pixels := make([]byte, 0, w*h*3)
		for y := 0; y < h; y++ {
			row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
			for x := 0; x < w; x++ {
				pixels = append(pixels, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
		return &DecodedImage{Width: w, Height: h, Components: 3, Pixels: pixels}, nil
	}
}
