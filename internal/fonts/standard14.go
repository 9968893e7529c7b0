// Package fonts admits only the 14 standard Type1 base fonts every PDF
// consumer must support without an embedded font program. Sanitization
// never re-embeds font data, so a FontRef that doesn't name one of
// these is rejected rather than passed through.
package fonts

import "github.com/pkg/errors"

// ErrNotStandard14 is returned by Validate for any BaseFont name outside
// the allow-list.
var ErrNotStandard14 = errors.New("fonts: not a standard 14 base font")

var standard14 = map[string]bool{
	"Times-Roman":          true,
	"Times-Bold":           true,
	"Times-Italic":         true,
	"Times-BoldItalic":     true,
	"Helvetica":            true,
	"Helvetica-Bold":       true,
	"Helvetica-Oblique":    true,
	"Helvetica-BoldOblique": true,
	"Courier":              true,
	"Courier-Bold":         true,
	"Courier-Oblique":      true,
	"Courier-BoldOblique":  true,
	"Symbol":               true,
	"ZapfDingbats":         true,
}

// IsStandard14 reports whether name is one of the 14 base fonts.
func IsStandard14(name string) bool {
	return standard14[name]
}

// Validate returns ErrNotStandard14 if name isn't an admitted base font.
func Validate(name string) error {
	if !IsStandard14(name) {
		return errors.Wrapf(ErrNotStandard14, "%q", name)
	}
	return nil
}

// Names returns the 14 admitted base font names in a fixed, stable order.
func Names() []string {
	return []string{
		"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic",
		"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique",
		"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique",
		"Symbol", "ZapfDingbats",
	}
}
