// Package audit implements the tamper-evident dual-format audit trail
// (§3.2, §4.5): one JSON record (authoritative) and one human-readable
// text record per job, both covered by an HMAC-SHA256 computed over a
// canonicalized encoding of the event.
package audit

import (
	"fmt"
	"time"
)

// Severity classifies a removed threat.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Action records what the sanitizer did about a removed construct.
type Action string

const (
	ActionRemoved  Action = "REMOVED"
	ActionZeroed   Action = "ZEROED"
	ActionRejected Action = "REJECTED"
)

// Status is the terminal disposition of a job.
type Status string

const (
	StatusSuccess         Status = "SUCCESS"
	StatusFailed          Status = "FAILED"
	StatusRejected        Status = "REJECTED"
	StatusTimeout         Status = "TIMEOUT"
	StatusCompromiseAbort Status = "COMPROMISE_ABORT"
)

// ThreatRemoved records one admitted-but-rewritten or rejected
// construct encountered while parsing.
type ThreatRemoved struct {
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Locator  string   `json:"locator"`
	Action   Action   `json:"action"`
}

// DocumentInfo is the §3.2 document sub-record.
type DocumentInfo struct {
	OriginalName    string `json:"original_name"`
	OriginalSHA256  string `json:"original_sha256"`
	OriginalBytes   int64  `json:"original_bytes"`
	SanitizedName   string `json:"sanitized_name"`
	SanitizedSHA256 string `json:"sanitized_sha256"`
	SanitizedBytes  int64  `json:"sanitized_bytes"`
	ProcessingMs    int64  `json:"processing_ms"`
}

// Event is the full §3.2 AuditEvent record. Created tentatively at job
// start, finalized (status, hashes, HMAC) at job end, appended exactly
// once, never mutated afterward.
type Event struct {
	EventID           string          `json:"event_id"`
	UTCTimestamp      time.Time       `json:"utc_timestamp"`
	WorkstationID     string          `json:"workstation_id"`
	Operator          string          `json:"operator"`
	ClassificationTag string          `json:"classification_tag"`
	Document          DocumentInfo    `json:"document"`
	ThreatsRemoved    []ThreatRemoved `json:"threats_removed"`
	Policy            string          `json:"policy"`
	Status            Status          `json:"status"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	HMACSHA256        string          `json:"hmac_sha256"`
}

// FormatEventID renders the STZ-YYYYMMDD-HHMMSSmmm event id for ts.
// Uniqueness within a process is the caller's responsibility (the
// generator in sequence.go serializes event creation and nudges the
// clock forward on collision).
func FormatEventID(ts time.Time) string {
	u := ts.UTC()
	return fmt.Sprintf("STZ-%s-%s%03d", u.Format("20060102"), u.Format("150405"), u.Nanosecond()/1_000_000)
}
