package node_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uon-marshaller/node"
)

func TestMetaOf(t *testing.T) {
	type Order struct {
		ID      int      `uon:"id"`
		Tags    []string `uon:"tags,expand"`
		Note    string   `json:"note,omitempty"`
		Plain   string
		Hidden  string `uon:"-"`
		private string
	}

	meta := node.MetaOf(reflect.TypeOf(Order{}))
	require.Len(t, meta.Properties, 4)

	names := make([]string, 0, len(meta.Properties))
	for _, p := range meta.Properties {
		names = append(names, p.Name)
	}

	// declaration order, tag precedence: uon tag, json tag, field name
	assert.Equal(t, []string{"id", "tags", "note", "Plain"}, names)

	tags, ok := meta.Property("tags")
	require.True(t, ok)
	assert.True(t, tags.Expandable)

	id, ok := meta.Property("id")
	require.True(t, ok)
	assert.False(t, id.Expandable)

	_, ok = meta.Property("Hidden")
	assert.False(t, ok)
}

func TestMetaOfCached(t *testing.T) {
	type Point struct{ X, Y int }

	first := node.MetaOf(reflect.TypeOf(Point{}))
	second := node.MetaOf(reflect.TypeOf(Point{}))
	assert.Same(t, first, second)
}

func TestOrderedMapSetGet(t *testing.T) {
	m := node.OrderedMap{}
	m = m.Set("a", 1).Set("b", 2).Set("a", 3)

	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Len(t, m, 2)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}
