package failure

import (
	"errors"
	"testing"

	"github.com/mechiko/pdfsanitize/internal/isolation"
	"github.com/mechiko/pdfsanitize/internal/whitelist"
	"github.com/stretchr/testify/require"
)

func TestCategoryGrouping(t *testing.T) {
	require.Equal(t, CategoryInput, NotAPDF.Category())
	require.Equal(t, CategoryContent, DisallowedConstruct.Category())
	require.Equal(t, CategoryIsolation, Timeout.Category())
	require.Equal(t, CategoryReconstruction, EmptyDocument.Category())
	require.Equal(t, CategorySystem, AuditWriteFailed.Category())
}

func TestJobFailureErrorIncludesLocator(t *testing.T) {
	jf := New(Malformed, "object 7", errors.New("bad dict"))
	require.Contains(t, jf.Error(), "MALFORMED")
	require.Contains(t, jf.Error(), "object 7")
	require.Contains(t, jf.Error(), "bad dict")
}

func TestClassifyPassesThroughJobFailure(t *testing.T) {
	orig := New(Timeout, "", errors.New("slow"))
	require.Same(t, orig, Classify(orig))
}

func TestClassifyMapsParseFailure(t *testing.T) {
	pf := whitelist.ParseFailure{Reason: whitelist.Encrypted, Locator: "trailer", Err: errors.New("found /Encrypt")}
	jf := Classify(&pf)
	require.Equal(t, Encrypted, jf.Taxon)
	require.Equal(t, "trailer", jf.Locator)
}

func TestClassifyMapsIsolationFailure(t *testing.T) {
	f := &isolation.Failure{Reason: isolation.ChildCrash, Err: errors.New("exit status 1")}
	jf := Classify(f)
	require.Equal(t, ChildCrash, jf.Taxon)
}

func TestClassifyFallsBackToIOForUnknownError(t *testing.T) {
	jf := Classify(errors.New("disk full"))
	require.Equal(t, IO, jf.Taxon)
}
