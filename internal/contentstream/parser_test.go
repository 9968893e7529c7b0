package contentstream_test

import (
	"testing"

	"github.com/mechiko/pdfsanitize/internal/contentstream"
	"github.com/mechiko/pdfsanitize/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAllowListedOnly(t *testing.T) {
	src := []byte("q\nBT\n72 720 Td\n(Hello) Tj\nET\n72 100 200 50 re\nf\nQ\n")

	ops, err := contentstream.Parse(src, 0)
	require.NoError(t, err)
	require.Len(t, ops, 8)
	assert.IsType(t, ir.SaveGraphicsState{}, ops[0])
	assert.IsType(t, ir.TextBegin{}, ops[1])
	assert.IsType(t, ir.TextMoveAbs{}, ops[2])
	assert.IsType(t, ir.ShowText{}, ops[3])
	assert.IsType(t, ir.TextEnd{}, ops[4])
	assert.IsType(t, ir.Rect{}, ops[5])
	assert.IsType(t, ir.Fill{}, ops[6])
	assert.IsType(t, ir.RestoreGraphicsState{}, ops[7])
}

func TestParseRejectsDisallowedOperator(t *testing.T) {
	src := []byte("1 0 0 RG\n")

	_, err := contentstream.Parse(src, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, contentstream.ErrDisallowedOperator)
}

func TestParseSetFont(t *testing.T) {
	src := []byte("/F1 12 Tf\n")

	ops, err := contentstream.Parse(src, 0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, ir.SetFont{Name: "F1", Size: 12}, ops[0])
}

func TestParseInvokeXObject(t *testing.T) {
	src := []byte("/Im0 Do\n")

	ops, err := contentstream.Parse(src, 0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, ir.InvokeXObject{Name: "Im0"}, ops[0])
}

func TestParseTJArray(t *testing.T) {
	src := []byte("[(Hel) -20 (lo)] TJ\n")

	ops, err := contentstream.Parse(src, 0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	arr, ok := ops[0].(ir.ShowTextArray)
	require.True(t, ok)
	require.Len(t, arr.Elems, 3)
	assert.Equal(t, []byte("Hel"), arr.Elems[0].Bytes)
	assert.True(t, arr.Elems[1].IsAdjust)
	assert.Equal(t, -20.0, arr.Elems[1].Adjust)
}

func TestParseRejectsOperatorLimit(t *testing.T) {
	src := []byte("q\nQ\nq\nQ\nq\nQ\n")

	_, err := contentstream.Parse(src, 2)
	require.Error(t, err)
}

func TestSerializeRoundTrip(t *testing.T) {
	ops := []ir.Op{
		ir.SaveGraphicsState{},
		ir.TextBegin{},
		ir.SetFont{Name: "F1", Size: 12},
		ir.TextMoveAbs{X: 72, Y: 720},
		ir.ShowText{Bytes: []byte("Hello")},
		ir.TextEnd{},
		ir.InvokeXObject{Name: "Im0"},
		ir.RestoreGraphicsState{},
	}

	out := contentstream.Serialize(ops)

	reparsed, err := contentstream.Parse(out, 0)
	require.NoError(t, err)
	assert.Equal(t, ops, reparsed)
}
