package serialize

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uon-marshaller/internal/diagnostic"
	"uon-marshaller/node"
	"uon-marshaller/options"
	"uon-marshaller/primitive"
	"uon-marshaller/swap"
)

// eventWriter renders the event stream as a compact debug string, close to
// the wire shape but without any escaping.
type eventWriter struct {
	b       strings.Builder
	entries int
}

func (w *eventWriter) BeginEntry() {
	if w.entries > 0 {
		w.b.WriteByte('&')
	}
	w.entries++
}

func (w *eventWriter) Key(_ primitive.KindEnum, text string) {
	w.b.WriteString(text)
	w.b.WriteByte('=')
}

func (w *eventWriter) EndEntry() {}

func (w *eventWriter) Scalar(kind primitive.KindEnum, text string) {
	if kind == primitive.KindNull {
		w.b.WriteString("<null>")
		return
	}

	w.b.WriteString(text)
}

func (w *eventWriter) BeginObject() { w.b.WriteByte('{') }
func (w *eventWriter) EndObject()   { w.b.WriteByte('}') }
func (w *eventWriter) BeginArray()  { w.b.WriteByte('[') }
func (w *eventWriter) EndArray()    { w.b.WriteByte(']') }
func (w *eventWriter) NextMember()  { w.b.WriteByte(',') }

func (w *eventWriter) MemberKey(_ primitive.KindEnum, text string) {
	w.b.WriteString(text)
	w.b.WriteByte('=')
}

func (w *eventWriter) Flush() error { return nil }

func render(t *testing.T, opts *options.Options, reg *swap.Registry, root any) (string, *Session) {
	t.Helper()

	s := New(reg, opts)
	w := &eventWriter{}
	require.NoError(t, s.Serialize(w, root))

	return w.b.String(), s
}

type person struct {
	ID   int      `uon:"id"`
	Tags []string `uon:"tags"`
	Note *string  `uon:"note"`
}

func TestSerializeRoots(t *testing.T) {
	tests := []struct {
		name string
		root any
		want string
	}{
		{"int scalar", 42, "_value=42"},
		{"string scalar", "hello", "_value=hello"},
		{"nil root", nil, "_value=<null>"},
		{"record", person{ID: 5, Tags: []string{"x", "y"}}, "id=5&tags=[x,y]"},
		{"map", map[string]any{"b": 2, "a": 1}, "a=1&b=2"},
		{"sequence", []any{1, "a"}, "0=1&1=a"},
		{"nested", map[string]any{"m": map[string]int{"k": 1}}, "m={k=1}"},
		{"stream", strings.NewReader("raw body"), "_value=raw body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := render(t, nil, nil, tt.root)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNullProperties(t *testing.T) {
	got, _ := render(t, nil, nil, person{ID: 1, Tags: []string{"a"}})
	assert.Equal(t, "id=1&tags=[a]", got)

	opts := options.Default()
	opts.KeepNullProperties = true

	got, _ = render(t, opts, nil, person{ID: 1, Tags: []string{"a"}})
	assert.Equal(t, "id=1&tags=[a]&note=<null>", got)
}

func TestExpandedParams(t *testing.T) {
	opts := options.Default()
	opts.ExpandedParams = true

	got, _ := render(t, opts, nil, map[string]any{"a": 1, "b": []int{2, 3}})
	assert.Equal(t, "a=1&b=2&b=3", got)

	// empty sequences expand into nothing at all
	got, _ = render(t, opts, nil, map[string]any{"a": 1, "b": []int{}})
	assert.Equal(t, "a=1", got)
}

func TestExpandableProperty(t *testing.T) {
	type query struct {
		ID   int      `uon:"id"`
		Tags []string `uon:"tags,expand"`
	}

	got, _ := render(t, nil, nil, query{ID: 5, Tags: []string{"x", "y"}})
	assert.Equal(t, "id=5&tags=x&tags=y", got)
}

type loop struct {
	Name string `uon:"name"`
	Next *loop  `uon:"next"`
}

func TestRecursionDetected(t *testing.T) {
	a := loop{Name: "a"}
	a.Next = &a

	s := New(nil, nil)
	err := s.Serialize(&eventWriter{}, &a)
	require.ErrorIs(t, err, ErrRecursionDetected)

	var perr *PathError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "next", perr.Path)
}

func TestRecursionIgnored(t *testing.T) {
	a := loop{Name: "a"}
	a.Next = &a

	opts := options.Default()
	opts.IgnoreRecursions = true

	got, _ := render(t, opts, nil, &a)
	assert.Equal(t, "name=a&next=<null>", got)
}

func TestRepeatedValueIsNotRecursion(t *testing.T) {
	shared := &loop{Name: "s"}
	got, _ := render(t, nil, nil, map[string]any{"a": shared, "b": shared})
	assert.Equal(t, "a={name=s}&b={name=s}", got)
}

func TestMaxDepthExceeded(t *testing.T) {
	opts := options.Default()
	opts.MaxDepth = 3

	deep := []any{[]any{[]any{[]any{1}}}}

	s := New(nil, opts)
	err := s.Serialize(&eventWriter{}, deep)
	require.ErrorIs(t, err, ErrStackDepthExceeded)
}

func TestSwapApplied(t *testing.T) {
	reg := swap.New()
	require.NoError(t, reg.Register(time.Time{},
		func(t time.Time) string { return t.UTC().Format(time.RFC3339) }, nil))

	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	got, _ := render(t, nil, reg, map[string]any{"t": when})
	assert.Equal(t, "t=2024-03-01T12:00:00Z", got)
}

func TestAccessorFailureIsolation(t *testing.T) {
	reg := swap.New()
	require.NoError(t, reg.Register(time.Time{},
		func(time.Time) (string, error) { return "", errors.New("boom") }, nil))

	type event struct {
		When time.Time `uon:"when"`
		ID   int       `uon:"id"`
	}

	got, s := render(t, nil, reg, event{ID: 7})
	assert.Equal(t, "when=&id=7", got)

	diags := s.Diagnostics()
	require.True(t, diags.HasWarnings())
	assert.Equal(t, diagnostic.CodeAccessorFailure, diags.Warnings[0].Code)
	assert.Equal(t, "when", diags.Warnings[0].Path)
}

func TestTrimOptions(t *testing.T) {
	opts := options.Default()
	opts.TrimEmptyCollections = true
	opts.TrimEmptyMaps = true
	opts.TrimStrings = true

	root := map[string]any{
		"a": []int{},
		"b": map[string]int{},
		"c": "  x  ",
		"d": 1,
	}

	got, _ := render(t, opts, nil, root)
	assert.Equal(t, "c=x&d=1", got)
}

func TestOrderedMap(t *testing.T) {
	m := node.OrderedMap{}.Set("z", 1).Set("a", 2)

	got, _ := render(t, nil, nil, m)
	assert.Equal(t, "z=1&a=2", got)

	opts := options.Default()
	opts.SortMaps = true

	got, _ = render(t, opts, nil, m)
	assert.Equal(t, "a=2&z=1", got)
}

func TestNumericMapKeysSortByValue(t *testing.T) {
	got, _ := render(t, nil, nil, map[int]string{10: "a", 2: "b", 1: "c"})
	assert.Equal(t, "1=c&2=b&10=a", got)

	got, _ = render(t, nil, nil, map[float64]string{10: "y", 2.5: "x"})
	assert.Equal(t, "2.5=x&10=y", got)

	// text keys keep the lexical order even when they look numeric
	got, _ = render(t, nil, nil, map[string]string{"2": "b", "10": "a"})
	assert.Equal(t, "10=a&2=b", got)
}

func TestSortProperties(t *testing.T) {
	opts := options.Default()
	opts.SortProperties = true

	got, _ := render(t, opts, nil, person{ID: 1, Tags: []string{"t"}})
	assert.Equal(t, "id=1&tags=[t]", got)

	type zebra struct {
		Z int `uon:"z"`
		A int `uon:"a"`
	}

	got, _ = render(t, opts, nil, zebra{Z: 1, A: 2})
	assert.Equal(t, "a=2&z=1", got)
}

func TestSessionReused(t *testing.T) {
	s := New(nil, nil)
	require.NoError(t, s.Serialize(&eventWriter{}, 1))

	err := s.Serialize(&eventWriter{}, 2)
	require.ErrorIs(t, err, ErrSessionReused)
}

func TestAmbiguousKindDiagnostic(t *testing.T) {
	got, s := render(t, nil, nil, map[string]any{"ch": make(chan int)})
	assert.Contains(t, got, "ch=")

	require.True(t, s.Diagnostics().HasWarnings())
	assert.Equal(t, diagnostic.CodeAmbiguousKind, s.Diagnostics().Warnings[0].Code)
}
