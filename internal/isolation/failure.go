package isolation

import "github.com/pkg/errors"

// Reason enumerates the isolation-harness-level rejection categories,
// distinct from whitelist.Reason: these describe the worker process's
// own misbehavior, not anything about the PDF it was handed.
type Reason string

const (
	ChildCrash Reason = "CHILD_CRASH"
	Timeout    Reason = "TIMEOUT"
	IRInvalid  Reason = "IR_INVALID"
)

// Failure is the typed error ParseIsolated returns when the worker
// process itself is the problem, as opposed to a whitelist.ParseFailure
// the worker reported cleanly.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string { return string(f.Reason) + ": " + f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

func fail(reason Reason, err error) *Failure {
	return &Failure{Reason: reason, Err: err}
}

var errChildKilled = errors.New("isolation: worker process was killed")
