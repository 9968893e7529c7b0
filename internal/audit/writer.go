package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Writer appends finalized events to the configured audit directory as
// two independent files per event: `STZ-<id>.json` (authoritative) and
// `STZ-<id>.txt` (human-readable). Append is idempotent by event id
// and holds an advisory exclusive lock on the directory for the
// duration of a single append, per §4.5/§5 ("exclusive write access to
// the audit directory via advisory file locks").
type Writer struct {
	Dir string
}

func (w *Writer) jsonPath(id string) string { return filepath.Join(w.Dir, id+".json") }
func (w *Writer) textPath(id string) string { return filepath.Join(w.Dir, id+".txt") }

// Append writes e to both sinks. If a record for e.EventID already
// exists, Append returns nil without rewriting it (idempotent retry
// safety for a controller that crashed after writing but before
// returning the JobResult).
func (w *Writer) Append(e *Event) error {
	if err := os.MkdirAll(w.Dir, 0o750); err != nil {
		return errors.Wrap(err, "audit: mkdir")
	}

	unlock, err := w.lock()
	if err != nil {
		return errors.Wrap(err, "audit: lock directory")
	}
	defer unlock()

	if _, err := os.Stat(w.jsonPath(e.EventID)); err == nil {
		return nil
	}

	writeOnce := func() error {
		if err := atomicWrite(w.jsonPath(e.EventID), jsonRecord(e)); err != nil {
			return err
		}
		return atomicWrite(w.textPath(e.EventID), []byte(textRecord(e)))
	}

	if err := writeOnce(); err != nil {
		// One retry per §4.5 ("writer retries once before reporting").
		if err2 := writeOnce(); err2 != nil {
			return errors.Wrap(err2, "audit: append failed after retry")
		}
	}
	return nil
}

func (w *Writer) lock() (func(), error) {
	f, err := os.OpenFile(w.Dir, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}

func jsonRecord(e *Event) []byte {
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		panic(err)
	}
	return b
}

func textRecord(e *Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "event_id:          %s\n", e.EventID)
	fmt.Fprintf(&b, "utc_timestamp:     %s\n", e.UTCTimestamp.UTC().Format("2006-01-02T15:04:05.000Z"))
	fmt.Fprintf(&b, "workstation_id:    %s\n", e.WorkstationID)
	fmt.Fprintf(&b, "operator:          %s\n", e.Operator)
	fmt.Fprintf(&b, "classification:    %s\n", e.ClassificationTag)
	fmt.Fprintf(&b, "policy:            %s\n", e.Policy)
	fmt.Fprintf(&b, "status:            %s\n", e.Status)
	if e.FailureReason != "" {
		fmt.Fprintf(&b, "failure_reason:    %s\n", e.FailureReason)
	}
	fmt.Fprintf(&b, "original:          %s (%d bytes, sha256 %s)\n",
		e.Document.OriginalName, e.Document.OriginalBytes, e.Document.OriginalSHA256)
	fmt.Fprintf(&b, "sanitized:         %s (%d bytes, sha256 %s)\n",
		e.Document.SanitizedName, e.Document.SanitizedBytes, e.Document.SanitizedSHA256)
	fmt.Fprintf(&b, "processing_ms:     %d\n", e.Document.ProcessingMs)
	fmt.Fprintf(&b, "hmac_sha256:       %s\n", e.HMACSHA256)
	if len(e.ThreatsRemoved) == 0 {
		b.WriteString("threats_removed:   (none)\n")
	} else {
		b.WriteString("threats_removed:\n")
		for _, t := range e.ThreatsRemoved {
			fmt.Fprintf(&b, "  - %-8s severity=%-8s action=%-8s at %s\n", t.Kind, t.Severity, t.Action, t.Locator)
		}
	}
	return b.String()
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pdfsanitize-audit-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
