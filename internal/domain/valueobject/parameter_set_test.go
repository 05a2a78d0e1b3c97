package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParameterSet_EncodePreservesOrder(t *testing.T) {
	params := NewParameterSet(
		Param{Key: "q", Value: "a b&c"},
		Param{Key: "f.lang", Value: "Go"},
		Param{Key: "case", Value: "true"},
		Param{Key: "f.lang", Value: "C++"},
	)

	assert.Equal(t, "q=a+b%26c&f.lang=Go&case=true&f.lang=C%2B%2B", params.Encode())
	assert.Equal(t, []string{"Go", "C++"}, params.All("f.lang"))
	assert.Equal(t, "a b&c", params.Get("q"))
	assert.Empty(t, params.Get("missing"))
	assert.True(t, params.Has("case"))
	assert.False(t, params.Has("regexp"))
	assert.Equal(t, 4, params.Len())
}

func TestParameterSet_WithDoesNotMutate(t *testing.T) {
	base := NewParameterSet(Param{Key: "q", Value: "foo"})
	paged := base.With("page", "2")

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, "q=foo", base.Encode())
	assert.Equal(t, "q=foo&page=2", paged.Encode())

	copied := paged.Params()
	copied[0].Value = "bar"
	assert.Equal(t, "foo", paged.Get("q"))
}

func TestParameterSet_Equal(t *testing.T) {
	a := NewParameterSet(Param{Key: "q", Value: "x"}, Param{Key: "case", Value: "true"})
	b := NewParameterSet(Param{Key: "q", Value: "x"}, Param{Key: "case", Value: "true"})
	c := NewParameterSet(Param{Key: "case", Value: "true"}, Param{Key: "q", Value: "x"})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, ParameterSet{}.Equal(NewParameterSet()))
}
