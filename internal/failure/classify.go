package failure

import (
	"errors"

	"github.com/mechiko/pdfsanitize/internal/isolation"
	"github.com/mechiko/pdfsanitize/internal/whitelist"
)

var whitelistTaxon = map[whitelist.Reason]Taxon{
	whitelist.NotAPDF:                     NotAPDF,
	whitelist.Truncated:                   Truncated,
	whitelist.UnsupportedVersion:          UnsupportedVersion,
	whitelist.Encrypted:                   Encrypted,
	whitelist.DisallowedConstruct:         DisallowedConstruct,
	whitelist.DecompressionBudgetExceeded: DecompressionBudgetExceeded,
	whitelist.LimitExceeded:               LimitExceeded,
	whitelist.Malformed:                   Malformed,
}

var isolationTaxon = map[isolation.Reason]Taxon{
	isolation.ChildCrash: ChildCrash,
	isolation.Timeout:    Timeout,
	isolation.IRInvalid:  IRInvalid,
}

// FromParseFailure maps a whitelist.ParseFailure onto its JobFailure
// equivalent, preserving the locator and wrapped error.
func FromParseFailure(pf *whitelist.ParseFailure) *JobFailure {
	taxon, ok := whitelistTaxon[pf.Reason]
	if !ok {
		taxon = Malformed
	}
	return New(taxon, pf.Locator, pf.Unwrap())
}

// FromIsolationFailure maps an isolation.Failure onto its JobFailure
// equivalent.
func FromIsolationFailure(f *isolation.Failure) *JobFailure {
	taxon, ok := isolationTaxon[f.Reason]
	if !ok {
		taxon = ChildCrash
	}
	return New(taxon, "", f.Unwrap())
}

// Classify inspects err and returns the best-fitting JobFailure: a
// *JobFailure is returned unchanged, a *whitelist.ParseFailure or
// *isolation.Failure is mapped via the tables above, and anything
// else is reported as a System/IO failure.
func Classify(err error) *JobFailure {
	if err == nil {
		return nil
	}
	var jf *JobFailure
	if errors.As(err, &jf) {
		return jf
	}
	var pf *whitelist.ParseFailure
	if errors.As(err, &pf) {
		return FromParseFailure(pf)
	}
	var isf *isolation.Failure
	if errors.As(err, &isf) {
		return FromIsolationFailure(isf)
	}
	return New(IO, "", err)
}
