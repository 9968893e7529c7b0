package whitelist

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Reason enumerates the typed rejection categories a Parse call can
// return. The pipeline controller maps these onto the AuditEvent's
// failure_reason field verbatim.
type Reason string

const (
	NotAPDF                     Reason = "NOT_A_PDF"
	Truncated                   Reason = "TRUNCATED"
	UnsupportedVersion          Reason = "UNSUPPORTED_VERSION"
	Encrypted                   Reason = "ENCRYPTED"
	DisallowedConstruct         Reason = "DISALLOWED_CONSTRUCT"
	DecompressionBudgetExceeded Reason = "DECOMPRESSION_BUDGET_EXCEEDED"
	LimitExceeded               Reason = "LIMIT_EXCEEDED"
	Malformed                   Reason = "MALFORMED"
)

// ParseFailure is the typed rejection Parse returns instead of a
// Document. Locator is a best-effort human-readable pointer (object
// number, page index, byte offset) for the audit trail.
type ParseFailure struct {
	Reason  Reason
	Locator string
	Err     error
}

func (f *ParseFailure) Error() string {
	if f.Locator != "" {
		return string(f.Reason) + " at " + f.Locator + ": " + f.Err.Error()
	}
	return string(f.Reason) + ": " + f.Err.Error()
}

func (f *ParseFailure) Unwrap() error { return f.Err }

// wireParseFailure is the JSON shape a ParseFailure crosses the
// worker/controller pipe as: Err's concrete type (often a bare
// *errors.fundamental) carries no exported fields for json to walk,
// so it is flattened to its message string and reconstructed with
// errors.New on the far side.
type wireParseFailure struct {
	Reason  Reason `json:"reason"`
	Locator string `json:"locator,omitempty"`
	Message string `json:"message"`
}

func (f *ParseFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(wireParseFailure{Reason: f.Reason, Locator: f.Locator, Message: msg})
}

func (f *ParseFailure) UnmarshalJSON(data []byte) error {
	var w wireParseFailure
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f.Reason = w.Reason
	f.Locator = w.Locator
	f.Err = errors.New(w.Message)
	return nil
}

func fail(reason Reason, locator string, err error) *ParseFailure {
	return &ParseFailure{Reason: reason, Locator: locator, Err: err}
}

func failf(reason Reason, locator, format string, args ...interface{}) *ParseFailure {
	return fail(reason, locator, errors.Errorf(format, args...))
}
