package uon

import (
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uon-marshaller/node"
	"uon-marshaller/options"
	"uon-marshaller/swap"
)

func unmarshal(t *testing.T, doc string) any {
	t.Helper()

	v, err := Unmarshal([]byte(doc))
	require.NoError(t, err)

	return v
}

func TestUnmarshalDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want any
	}{
		{"scalar root", "_value=42", int64(42)},
		{"float root", "_value=3.5", 3.5},
		{"null root", "_value=%00", nil},
		{"bool root", "_value=true", true},
		{"marked string", "_value=$s(true)", "true"},
		{"empty document", "", node.OrderedMap{}},
		{"root sequence", "0=1&1=a", []any{int64(1), "a"}},
		{
			"map with array",
			"a=1&b=$a(2,3)",
			node.OrderedMap{}.Set("a", int64(1)).Set("b", []any{int64(2), int64(3)}),
		},
		{
			"expanded pairs collapse",
			"a=1&b=2&b=3",
			node.OrderedMap{}.Set("a", int64(1)).Set("b", []any{int64(2), int64(3)}),
		},
		{
			"nested object",
			"m=$o(k=1,n=$o())",
			node.OrderedMap{}.Set("m", node.OrderedMap{}.Set("k", int64(1)).Set("n", node.OrderedMap{})),
		},
		{"bare key is null", "flag", node.OrderedMap{}.Set("flag", nil)},
		{"empty value", "a=", node.OrderedMap{}.Set("a", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unmarshal(t, tt.doc))
		})
	}
}

func TestUnmarshalEscapes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want any
	}{
		{"tilde escape", "_value=a~,b", "a,b"},
		{"escaped equals", "_value=a~%3Db", "a=b"},
		{"escaped ampersand", "_value=x%26y", "x&y"},
		{"base64 padding", "_value=YQ~%3D~%3D", "YQ=="},
		{"equals in member key", "m=$o(a~%3Db=1)", node.OrderedMap{}.Set("m", node.OrderedMap{}.Set("a=b", int64(1)))},
		{"percent escape", "_value=%41", "A"},
		{"plus is space", "_value=foo+bar", "foo bar"},
		{"escaped grammar", "_value=a~(b~)", "a(b)"},
		{"utf8", "_value=caf%C3%A9", "café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unmarshal(t, tt.doc))
		})
	}
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"truncated percent", "_value=%2", ErrBadEscape},
		{"bad hex", "_value=%zz", ErrBadEscape},
		{"unterminated object", "a=$o(x=1", ErrSyntax},
		{"unterminated array", "a=$a(1,2", ErrSyntax},
		{"missing member value", "a=$o(x)", ErrSyntax},
		{"trailing data", "a=$a(1)x", ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.doc))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRoundTripDocuments(t *testing.T) {
	docs := []string{
		"_value=42",
		"_value=%00",
		"_value=foo+bar",
		"_value=$s(123)",
		"a=1&b=$a(2,3)&c=$o(x=y)&d=%00",
		"0=1&1=$a(2,3)",
		"k=a~,~(b~)",
		"_value=a~%3Db",
		"_value=x%26y",
		"_value=YQ~%3D~%3D",
		"_value=50%25",
		"_value=a%2Bb",
		"k~%3D1=$o(a~%3Db=v)",
	}

	for _, doc := range docs {
		t.Run(doc, func(t *testing.T) {
			v, err := Unmarshal([]byte(doc))
			require.NoError(t, err)

			got, err := (&Serializer{}).MarshalString(v)
			require.NoError(t, err)
			assert.Equal(t, doc, got, "intermediate value: %s", spew.Sdump(v))
		})
	}
}

func TestRoundTripPercentSpaces(t *testing.T) {
	opts := options.Default()
	opts.PlusSpaces = false

	docs := []string{
		"_value=foo%20bar",
		"_value=a%2Bb",
		"k=$o(x=one%20two)",
	}

	for _, doc := range docs {
		t.Run(doc, func(t *testing.T) {
			v, err := (&Parser{Options: opts}).Unmarshal([]byte(doc))
			require.NoError(t, err)

			got, err := (&Serializer{Options: opts}).MarshalString(v)
			require.NoError(t, err)
			assert.Equal(t, doc, got)
		})
	}
}

func TestUnmarshalAs(t *testing.T) {
	reg := swap.New()
	require.NoError(t, reg.Register(time.Time{},
		func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
		func(s string) (time.Time, error) { return time.Parse(time.RFC3339, s) }))

	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	data, err := (&Serializer{Registry: reg}).Marshal(when)
	require.NoError(t, err)
	assert.Equal(t, "_value=2024-03-01T12:00:00Z", string(data))

	v, err := (&Parser{Registry: reg}).UnmarshalAs(data, time.Time{})
	require.NoError(t, err)
	assert.True(t, when.Equal(v.(time.Time)))
}

func TestUnmarshalAsForwardOnly(t *testing.T) {
	reg := swap.New()
	require.NoError(t, reg.Register(time.Time{},
		func(t time.Time) string { return t.UTC().Format(time.RFC3339) }, nil))

	data := []byte("_value=2024-03-01T12:00:00Z")

	_, err := (&Parser{Registry: reg}).UnmarshalAs(data, time.Time{})
	require.ErrorIs(t, err, swap.ErrUnsupportedReverse)
}

func TestUnmarshalAsPassthrough(t *testing.T) {
	v, err := (&Parser{}).UnmarshalAs([]byte("_value=7"), "")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}
