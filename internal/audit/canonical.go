package audit

import (
	"crypto/sha256"
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/text/unicode/norm"
)

// canonicalFields is an intermediate, explicitly ordered view of Event
// used only to build the HMAC input. Building it by hand (rather than
// marshaling Event directly) pins the exact field order and string
// form independently of any future struct-tag reshuffle, and applies
// Unicode NFC normalization to every free-text field per Open Question
// O2 so that the MAC is stable across visually-identical but
// differently-composed UTF-8 encodings of operator-entered text.
type canonicalFields struct {
	EventID           string `json:"event_id"`
	UTCTimestamp      string `json:"utc_timestamp"`
	WorkstationID     string `json:"workstation_id"`
	Operator          string `json:"operator"`
	ClassificationTag string `json:"classification_tag"`
	Document          struct {
		OriginalName    string `json:"original_name"`
		OriginalSHA256  string `json:"original_sha256"`
		OriginalBytes   string `json:"original_bytes"`
		SanitizedName   string `json:"sanitized_name"`
		SanitizedSHA256 string `json:"sanitized_sha256"`
		SanitizedBytes  string `json:"sanitized_bytes"`
		ProcessingMs    string `json:"processing_ms"`
	} `json:"document"`
	ThreatsRemoved []struct {
		Kind     string `json:"kind"`
		Severity string `json:"severity"`
		Locator  string `json:"locator"`
		Action   string `json:"action"`
	} `json:"threats_removed"`
	Policy        string `json:"policy"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

func nfc(s string) string { return norm.NFC.String(s) }

func i64(n int64) string { return strconv.FormatInt(n, 10) }

// canonicalize builds the deterministic byte sequence an Event's HMAC
// is computed over. It never reads or writes HMACSHA256 itself.
func canonicalize(e *Event) []byte {
	var c canonicalFields
	c.EventID = nfc(e.EventID)
	c.UTCTimestamp = e.UTCTimestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	c.WorkstationID = nfc(e.WorkstationID)
	c.Operator = nfc(e.Operator)
	c.ClassificationTag = nfc(e.ClassificationTag)
	c.Document.OriginalName = nfc(e.Document.OriginalName)
	c.Document.OriginalSHA256 = e.Document.OriginalSHA256
	c.Document.OriginalBytes = i64(e.Document.OriginalBytes)
	c.Document.SanitizedName = nfc(e.Document.SanitizedName)
	c.Document.SanitizedSHA256 = e.Document.SanitizedSHA256
	c.Document.SanitizedBytes = i64(e.Document.SanitizedBytes)
	c.Document.ProcessingMs = i64(e.Document.ProcessingMs)

	threats := make([]ThreatRemoved, len(e.ThreatsRemoved))
	copy(threats, e.ThreatsRemoved)
	sort.SliceStable(threats, func(i, j int) bool {
		if threats[i].Locator != threats[j].Locator {
			return threats[i].Locator < threats[j].Locator
		}
		return threats[i].Kind < threats[j].Kind
	})
	for _, t := range threats {
		var ct struct {
			Kind     string `json:"kind"`
			Severity string `json:"severity"`
			Locator  string `json:"locator"`
			Action   string `json:"action"`
		}
		ct.Kind = nfc(t.Kind)
		ct.Severity = string(t.Severity)
		ct.Locator = nfc(t.Locator)
		ct.Action = string(t.Action)
		c.ThreatsRemoved = append(c.ThreatsRemoved, ct)
	}

	c.Policy = nfc(e.Policy)
	c.Status = string(e.Status)
	c.FailureReason = nfc(e.FailureReason)

	// encoding/json marshals struct fields in declaration order, which
	// is fixed above, and encodes each string the same way every time
	// (non-ASCII text as UTF-8, HTML-special characters as \u escapes)
	// -- both properties the HMAC input depends on.
	b, err := json.Marshal(c)
	if err != nil {
		// c contains only strings and a slice of strings; marshaling
		// cannot fail.
		panic(err)
	}
	return b
}

// DeriveKey derives the HMAC subkey used to sign/verify audit events
// from the secret referenced by keyRef via HKDF-SHA256, so that the
// raw configured secret is never used as a MAC key directly.
func DeriveKey(secret []byte, keyRef string) ([]byte, error) {
	h := hkdf.New(sha256.New, secret, []byte("pdfsanitize-audit-hmac-salt"), []byte(keyRef))
	key := make([]byte, 32)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	return key, nil
}
