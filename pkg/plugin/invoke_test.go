package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoke_CoercesArguments(t *testing.T) {
	type selection struct {
		ID    string
		Index int
	}

	var (
		gotInt  int
		gotText string
		gotSel  selection
	)
	fn := func(n int, s string, sel selection) {
		gotInt, gotText, gotSel = n, s, sel
	}

	err := invoke(fn, []any{float64(3), "query", map[string]any{"id": "a", "index": "2"}})
	require.NoError(t, err)
	assert.Equal(t, 3, gotInt)
	assert.Equal(t, "query", gotText)
	assert.Equal(t, selection{ID: "a", Index: 2}, gotSel)
}

func TestInvoke_MissingAndExtraArguments(t *testing.T) {
	var got []any
	require.NoError(t, invoke(func(a string, b int64) { got = []any{a, b} }, []any{"only"}))
	assert.Equal(t, []any{"only", int64(0)}, got)

	require.NoError(t, invoke(func(a string) { got = []any{a} }, []any{"x", "y", "z"}))
	assert.Equal(t, []any{"x"}, got)
}

func TestInvoke_Variadic(t *testing.T) {
	var got []int
	require.NoError(t, invoke(func(prefix string, rest ...int) { got = rest }, []any{"p", int64(1), float64(2)}))
	assert.Equal(t, []int{1, 2}, got)
}

func TestInvoke_ReturnsHandlerError(t *testing.T) {
	boom := errors.New("boom")
	assert.ErrorIs(t, invoke(func() error { return boom }, nil), boom)
	assert.NoError(t, invoke(func() error { return nil }, nil))
}

func TestInvoke_NotCallable(t *testing.T) {
	assert.ErrorIs(t, invoke("nope", nil), ErrNotCallable)

	var nilFn func()
	assert.ErrorIs(t, invoke(nilFn, nil), ErrNotCallable)
}

func TestInvoke_IncompatibleArgument(t *testing.T) {
	err := invoke(func(n int) {}, []any{map[string]any{"a": 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument 0")
}
