package whitelist

import (
	"fmt"

	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/mechiko/pdfsanitize/internal/pdfobj"
)

// blockedKeys names the Catalog/Page-level constructs spec.md §4.1.2
// calls out as automatic-interaction or embedded-execution vectors.
// None has any admitted representation in the IR, so their mere
// presence on an otherwise well-formed dictionary is a policy
// decision, not a structural parse error.
var blockedKeys = []string{
	"OpenAction", "AA", "JavaScript", "JS", "Launch", "SubmitForm",
	"GoToR", "EmbeddedFile", "RichMedia", "AcroForm", "Annots",
	"OCProperties", "Metadata", "Info",
}

var blockedKeySeverity = map[string]string{
	"OpenAction":   "CRITICAL",
	"AA":           "CRITICAL",
	"JavaScript":   "CRITICAL",
	"JS":           "CRITICAL",
	"Launch":       "CRITICAL",
	"SubmitForm":   "HIGH",
	"GoToR":        "HIGH",
	"EmbeddedFile": "HIGH",
	"RichMedia":    "HIGH",
	"AcroForm":     "MEDIUM",
	"Annots":       "MEDIUM",
	"OCProperties": "LOW",
	"Metadata":     "LOW",
	"Info":         "LOW",
}

// checkBlockedKeys inspects dict (a Catalog or Page dictionary, never
// an intermediate Pages node) for any of blockedKeys. Under
// PolicyStrict the first match rejects the document with
// DISALLOWED_CONSTRUCT; under PolicyPermissive each match is deleted
// from dict and recorded as a Threat so the caller's eventual document
// never carries it and the audit trail still shows it was there.
func (p *parser) checkBlockedKeys(dict pdfobj.Dict, locator string) error {
	for _, key := range blockedKeys {
		if _, ok := dict[key]; !ok {
			continue
		}
		if p.lim.Policy == PolicyStrict {
			return failf(DisallowedConstruct, locator, "dictionary carries disallowed key /%s", key)
		}
		delete(dict, key)
		p.threats = append(p.threats, ir.Threat{
			Kind:     key,
			Severity: blockedKeySeverity[key],
			Locator:  locator,
			Action:   "REMOVED",
		})
	}
	return nil
}

func pageLocator(index int) string {
	return fmt.Sprintf("Page[%d]", index)
}
