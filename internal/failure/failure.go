// Package failure collects the job-level error taxonomy (§7) that the
// pipeline controller maps onto JobResult and AuditEvent.failure_reason.
// internal/whitelist and internal/isolation keep their own
// package-local Reason types for their internal error plumbing;
// Classify folds both of those, plus the categories only the
// controller itself can detect, into one taxon for reporting.
package failure

import "github.com/pkg/errors"

// Taxon is one leaf of the §7 error taxonomy.
type Taxon string

const (
	// Input rejection.
	NotAPDF            Taxon = "NOT_A_PDF"
	Truncated          Taxon = "TRUNCATED"
	UnsupportedVersion Taxon = "UNSUPPORTED_VERSION"
	Encrypted          Taxon = "ENCRYPTED"
	Oversize           Taxon = "OVERSIZE"
	SourceNotReadonly  Taxon = "SOURCE_NOT_READONLY"

	// Content rejection.
	DisallowedConstruct         Taxon = "DISALLOWED_CONSTRUCT"
	Malformed                   Taxon = "MALFORMED"
	LimitExceeded               Taxon = "LIMIT_EXCEEDED"
	DecompressionBudgetExceeded Taxon = "DECOMPRESSION_BUDGET_EXCEEDED"

	// Isolation failure.
	ChildCrash Taxon = "CHILD_CRASH"
	Timeout    Taxon = "TIMEOUT"
	IRInvalid  Taxon = "IR_INVALID"

	// Reconstruction failure.
	EmptyDocument       Taxon = "EMPTY_DOCUMENT"
	InvariantViolation  Taxon = "INVARIANT_VIOLATION"
	OutputExceedsBudget Taxon = "OUTPUT_EXCEEDS_BUDGET"

	// System failure.
	IO              Taxon = "IO"
	AuditWriteFailed Taxon = "AUDIT_WRITE_FAILED"
)

// Category groups taxa for the caller that only needs to know which
// broad bucket an error belongs to (e.g. whether it's a probable
// attack worth extra operator attention).
type Category string

const (
	CategoryInput          Category = "INPUT_REJECTION"
	CategoryContent        Category = "CONTENT_REJECTION"
	CategoryIsolation      Category = "ISOLATION_FAILURE"
	CategoryReconstruction Category = "RECONSTRUCTION_FAILURE"
	CategorySystem         Category = "SYSTEM_FAILURE"
)

var categoryOf = map[Taxon]Category{
	NotAPDF:                     CategoryInput,
	Truncated:                   CategoryInput,
	UnsupportedVersion:          CategoryInput,
	Encrypted:                   CategoryInput,
	Oversize:                    CategoryInput,
	SourceNotReadonly:           CategoryInput,
	DisallowedConstruct:         CategoryContent,
	Malformed:                   CategoryContent,
	LimitExceeded:               CategoryContent,
	DecompressionBudgetExceeded: CategoryContent,
	ChildCrash:                  CategoryIsolation,
	Timeout:                     CategoryIsolation,
	IRInvalid:                   CategoryIsolation,
	EmptyDocument:               CategoryReconstruction,
	InvariantViolation:          CategoryReconstruction,
	OutputExceedsBudget:         CategoryReconstruction,
	IO:                          CategorySystem,
	AuditWriteFailed:            CategorySystem,
}

// Category reports which §7 bucket t belongs to.
func (t Taxon) Category() Category {
	if c, ok := categoryOf[t]; ok {
		return c
	}
	return CategorySystem
}

// JobFailure is the error type the pipeline controller constructs for
// any non-success outcome, carrying the taxon and a one-line locator
// the JobResult surfaces to the caller verbatim.
type JobFailure struct {
	Taxon   Taxon
	Locator string
	Err     error
}

func (f *JobFailure) Error() string {
	if f.Locator != "" {
		return string(f.Taxon) + " at " + f.Locator + ": " + f.Err.Error()
	}
	return string(f.Taxon) + ": " + f.Err.Error()
}

func (f *JobFailure) Unwrap() error { return f.Err }

// New constructs a JobFailure. Locator may be empty.
func New(taxon Taxon, locator string, err error) *JobFailure {
	return &JobFailure{Taxon: taxon, Locator: locator, Err: err}
}

// Wrap is New with an errors.Errorf-style message instead of a
// pre-built error.
func Wrap(taxon Taxon, locator, format string, args ...interface{}) *JobFailure {
	return New(taxon, locator, errors.Errorf(format, args...))
}
