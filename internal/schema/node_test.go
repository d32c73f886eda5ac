package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencila-go/docengine/internal/schema"
)

func TestParagraphRoundTripAndContainer(t *testing.T) {
	p := &schema.Paragraph{Content: []schema.Node{
		&schema.Text{Value: "hello "},
		&schema.Strong{Content: []schema.Node{&schema.Text{Value: "world"}}},
	}}

	var c schema.Container = p
	assert.Len(t, *c.Children(), 2)

	data, err := schema.MarshalNode(p)
	require.NoError(t, err)

	got, err := schema.UnmarshalNode(data)
	require.NoError(t, err)
	assert.True(t, p.Equal(got))
}

func TestUnmarshalNodeAcceptsPropertyAliases(t *testing.T) {
	data := []byte(`{"type":"stencila:CodeChunk","code":"1+1","programming-language":"python"}`)

	got, err := schema.UnmarshalNode(data)
	require.NoError(t, err)

	chunk, ok := got.(*schema.CodeChunk)
	require.True(t, ok)
	assert.Equal(t, "python", chunk.ProgrammingLanguage)
}

func TestUnmarshalNodeUnknownType(t *testing.T) {
	_, err := schema.UnmarshalNode([]byte(`{"type":"schema:NotAThing"}`))
	assert.Error(t, err)
}

func TestIsAbstract(t *testing.T) {
	assert.True(t, schema.IsAbstract("stencila:Block"))
	assert.False(t, schema.IsAbstract("schema:Paragraph"))
}
