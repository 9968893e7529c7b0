package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Sign computes e.HMACSHA256 over the canonicalized event and sets it,
// mutating e in place. It must be the last thing done to an event
// before it is appended (§3.3: "finalized ... at job end").
func Sign(e *Event, key []byte) {
	mac := hmac.New(sha256.New, key)
	mac.Write(canonicalize(e))
	e.HMACSHA256 = hex.EncodeToString(mac.Sum(nil))
}

// ErrTampered is returned by Verify when the stored MAC disagrees with
// the recomputed one. Per §4.5, this is a discovery, not a correction:
// the record is reported as suspect and the chain of custody is
// considered broken.
var ErrTampered = errors.New("audit: hmac does not match, record is suspect")

// Verify recomputes the HMAC over e's canonicalized fields (excluding
// the stored MAC itself) and compares it against e.HMACSHA256 in
// constant time.
func Verify(e *Event, key []byte) error {
	mac := hmac.New(sha256.New, key)
	mac.Write(canonicalize(e))
	want := mac.Sum(nil)

	got, err := hex.DecodeString(e.HMACSHA256)
	if err != nil {
		return errors.Wrap(ErrTampered, "malformed hmac encoding")
	}
	if !hmac.Equal(want, got) {
		return ErrTampered
	}
	return nil
}
