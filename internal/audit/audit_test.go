package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleEvent(id string) *Event {
	return &Event{
		EventID:           id,
		UTCTimestamp:      time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC),
		WorkstationID:     "WS-04",
		Operator:          "jdoe",
		ClassificationTag: "UNCLASSIFIED",
		Document: DocumentInfo{
			OriginalName:    "report.pdf",
			OriginalSHA256:  "aa",
			OriginalBytes:   1024,
			SanitizedName:   "report_sanitized.pdf",
			SanitizedSHA256: "bb",
			SanitizedBytes:  900,
			ProcessingMs:    42,
		},
		ThreatsRemoved: []ThreatRemoved{
			{Kind: "JavaScript", Severity: SeverityCritical, Locator: "object 9", Action: ActionRejected},
		},
		Policy: "AGGRESSIVE",
		Status: StatusSuccess,
	}
}

func TestSignThenVerifySucceeds(t *testing.T) {
	e := sampleEvent("STZ-20260731-120000000")
	key, err := DeriveKey([]byte("top-secret"), "ref-1")
	require.NoError(t, err)

	Sign(e, key)
	require.NotEmpty(t, e.HMACSHA256)
	require.NoError(t, Verify(e, key))
}

func TestVerifyDetectsTamperedField(t *testing.T) {
	e := sampleEvent("STZ-20260731-120000000")
	key, _ := DeriveKey([]byte("top-secret"), "ref-1")
	Sign(e, key)

	e.Operator = "attacker"
	require.ErrorIs(t, Verify(e, key), ErrTampered)
}

func TestVerifyDetectsTamperedMACAlone(t *testing.T) {
	e := sampleEvent("STZ-20260731-120000000")
	key, _ := DeriveKey([]byte("top-secret"), "ref-1")
	Sign(e, key)

	e.HMACSHA256 = "00" + e.HMACSHA256[2:]
	require.ErrorIs(t, Verify(e, key), ErrTampered)
}

func TestCanonicalizeIsStableAcrossThreatOrder(t *testing.T) {
	a := sampleEvent("STZ-x")
	a.ThreatsRemoved = []ThreatRemoved{
		{Kind: "JavaScript", Locator: "object 9", Severity: SeverityCritical, Action: ActionRejected},
		{Kind: "Launch", Locator: "object 2", Severity: SeverityHigh, Action: ActionRemoved},
	}
	b := sampleEvent("STZ-x")
	b.ThreatsRemoved = []ThreatRemoved{
		{Kind: "Launch", Locator: "object 2", Severity: SeverityHigh, Action: ActionRemoved},
		{Kind: "JavaScript", Locator: "object 9", Severity: SeverityCritical, Action: ActionRejected},
	}
	require.Equal(t, canonicalize(a), canonicalize(b))
}

func TestSequenceNeverGoesBackwards(t *testing.T) {
	var seq Sequence
	fixed := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	id1, t1 := seq.Next(fixed)
	id2, t2 := seq.Next(fixed)
	require.NotEqual(t, id1, id2)
	require.True(t, t2.After(t1))
}

func TestWriterAppendIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir}
	e := sampleEvent("STZ-20260731-120000000")
	key, _ := DeriveKey([]byte("k"), "ref")
	Sign(e, key)

	require.NoError(t, w.Append(e))
	firstJSON, err := os.ReadFile(filepath.Join(dir, e.EventID+".json"))
	require.NoError(t, err)

	e.Operator = "someone-else" // would change the record if re-written
	require.NoError(t, w.Append(e))
	secondJSON, err := os.ReadFile(filepath.Join(dir, e.EventID+".json"))
	require.NoError(t, err)
	require.Equal(t, firstJSON, secondJSON)
}

func TestWriterAppendWritesBothFormats(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir}
	e := sampleEvent("STZ-20260731-130000000")
	key, _ := DeriveKey([]byte("k"), "ref")
	Sign(e, key)

	require.NoError(t, w.Append(e))
	require.FileExists(t, filepath.Join(dir, e.EventID+".json"))
	require.FileExists(t, filepath.Join(dir, e.EventID+".txt"))

	txt, err := os.ReadFile(filepath.Join(dir, e.EventID+".txt"))
	require.NoError(t, err)
	require.Contains(t, string(txt), "report.pdf")
	require.Contains(t, string(txt), "JavaScript")
}
