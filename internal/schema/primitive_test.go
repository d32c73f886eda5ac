package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencila-go/docengine/internal/schema"
)

func TestPrimitiveNodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		node schema.Node
	}{
		{"null", &schema.NullNode{}},
		{"boolean true", &schema.BooleanNode{Value: true}},
		{"boolean false", &schema.BooleanNode{Value: false}},
		{"integer", &schema.IntegerNode{Value: -42}},
		{"number", &schema.NumberNode{Value: 3.14159}},
		{"string", &schema.StringNode{Value: "hello"}},
		{"array", &schema.ArrayNode{Items: []schema.Node{
			&schema.IntegerNode{Value: 1},
			&schema.StringNode{Value: "two"},
		}}},
		{"object", &schema.ObjectNode{Entries: []schema.ObjectEntry{
			{Key: "a", Value: &schema.IntegerNode{Value: 1}},
			{Key: "b", Value: &schema.BooleanNode{Value: true}},
		}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := schema.MarshalNode(tc.node)
			require.NoError(t, err)

			got, err := schema.UnmarshalNode(data)
			require.NoError(t, err)

			assert.True(t, tc.node.Equal(got), "round-tripped node should equal original")
			assert.Equal(t, tc.node.Type(), got.Type())
		})
	}
}

func TestPrimitiveNodeEqual(t *testing.T) {
	assert.True(t, (&schema.IntegerNode{Value: 1}).Equal(&schema.IntegerNode{Value: 1}))
	assert.False(t, (&schema.IntegerNode{Value: 1}).Equal(&schema.IntegerNode{Value: 2}))
	assert.False(t, (&schema.IntegerNode{Value: 1}).Equal(&schema.NumberNode{Value: 1}))
	assert.True(t, (&schema.NullNode{}).Equal(&schema.NullNode{}))
}

func TestPrimitiveNodeHashStability(t *testing.T) {
	a := &schema.StringNode{Value: "same"}
	b := &schema.StringNode{Value: "same"}
	c := &schema.StringNode{Value: "different"}

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestPrimitiveNodeClone(t *testing.T) {
	original := &schema.ArrayNode{Items: []schema.Node{&schema.IntegerNode{Value: 1}}}
	cloned := original.Clone().(*schema.ArrayNode)

	assert.True(t, original.Equal(cloned))

	// Mutating the clone must not affect the original (deep copy).
	cloned.Items[0].(*schema.IntegerNode).Value = 99
	assert.Equal(t, int64(1), original.Items[0].(*schema.IntegerNode).Value)
}

func TestObjectNodePreservesInsertionOrder(t *testing.T) {
	obj := &schema.ObjectNode{Entries: []schema.ObjectEntry{
		{Key: "z", Value: &schema.IntegerNode{Value: 1}},
		{Key: "a", Value: &schema.IntegerNode{Value: 2}},
	}}

	data, err := schema.MarshalNode(obj)
	require.NoError(t, err)

	got, err := schema.UnmarshalNode(data)
	require.NoError(t, err)

	gotObj := got.(*schema.ObjectNode)
	require.Len(t, gotObj.Entries, 2)
	assert.Equal(t, "z", gotObj.Entries[0].Key)
	assert.Equal(t, "a", gotObj.Entries[1].Key)
}
