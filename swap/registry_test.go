package swap_test

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uon-marshaller/swap"
)

func timeForward(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func timeReverse(s string) (time.Time, error) { return time.Parse(time.RFC3339, s) }

func TestRegisterAndResolve(t *testing.T) {
	reg := swap.New()
	require.NoError(t, reg.Register(time.Time{}, timeForward, timeReverse))

	sw := reg.Resolve(reflect.TypeOf(time.Time{}))
	require.NotNil(t, sw)
	assert.True(t, sw.CanForward())
	assert.True(t, sw.CanReverse())
	assert.False(t, sw.Discovered)

	out, err := sw.Apply(nil, reflect.ValueOf(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:05Z", out)

	back, err := sw.Revert(nil, "2024-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), back)
}

func TestResolvePointerVariants(t *testing.T) {
	type payload struct{ Raw string }

	reg := swap.New()
	require.NoError(t, reg.Register(&payload{}, func(p *payload) string { return p.Raw }, nil))

	// value type resolves a pointer registration
	sw := reg.Resolve(reflect.TypeOf(payload{}))
	require.NotNil(t, sw)

	out, err := sw.Apply(nil, reflect.ValueOf(payload{Raw: "x"}))
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}

func TestResolveInterfaceRegistration(t *testing.T) {
	reg := swap.New()
	require.NoError(t, reg.Register(
		reflect.TypeOf((*fmt.Stringer)(nil)).Elem(),
		func(s fmt.Stringer) string { return s.String() },
		nil,
	))

	sw := reg.Resolve(reflect.TypeOf(time.Minute))
	require.NotNil(t, sw)

	out, err := sw.Apply(nil, reflect.ValueOf(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "2m0s", out)
}

func TestResolveSpecificBeatsInterface(t *testing.T) {
	reg := swap.New()
	require.NoError(t, reg.Register(
		reflect.TypeOf((*fmt.Stringer)(nil)).Elem(),
		func(s fmt.Stringer) string { return s.String() },
		nil,
	))
	require.NoError(t, reg.Register(
		time.Duration(0),
		func(d time.Duration) int64 { return int64(d) },
		nil,
	))

	sw := reg.Resolve(reflect.TypeOf(time.Second))
	require.NotNil(t, sw)

	out, err := sw.Apply(nil, reflect.ValueOf(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(time.Second), out)
}

type sectioned interface {
	fmt.Stringer
	Section() string
}

type chapter struct{ title string }

func (c chapter) String() string  { return c.title }
func (c chapter) Section() string { return "ch " + c.title }

func TestResolveNarrowerInterfaceWins(t *testing.T) {
	stringerType := reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	sectionedType := reflect.TypeOf((*sectioned)(nil)).Elem()

	// registration order must not matter, only interface specificity
	orders := map[string][]reflect.Type{
		"wide first":   {stringerType, sectionedType},
		"narrow first": {sectionedType, stringerType},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			reg := swap.New()

			for _, declared := range order {
				switch declared {
				case stringerType:
					require.NoError(t, reg.Register(declared,
						func(s fmt.Stringer) string { return s.String() }, nil))
				case sectionedType:
					require.NoError(t, reg.Register(declared,
						func(s sectioned) string { return s.Section() }, nil))
				}
			}

			sw := reg.Resolve(reflect.TypeOf(chapter{}))
			require.NotNil(t, sw)

			out, err := sw.Apply(nil, reflect.ValueOf(chapter{title: "one"}))
			require.NoError(t, err)
			assert.Equal(t, "ch one", out)

			// a plain Stringer still resolves the wide registration
			sw = reg.Resolve(reflect.TypeOf(time.Minute))
			require.NotNil(t, sw)

			out, err = sw.Apply(nil, reflect.ValueOf(2*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, "2m0s", out)
		})
	}
}

func TestRegisterLastWriteWins(t *testing.T) {
	reg := swap.New()
	require.NoError(t, reg.Register("", func(s string) string { return "first:" + s }, nil))
	require.NoError(t, reg.Register("", func(s string) string { return "second:" + s }, nil))

	sw := reg.Resolve(reflect.TypeOf(""))
	require.NotNil(t, sw)

	out, err := sw.Apply(nil, reflect.ValueOf("x"))
	require.NoError(t, err)
	assert.Equal(t, "second:x", out)
}

func TestRegisterRejects(t *testing.T) {
	reg := swap.New()

	assert.Error(t, reg.Register(nil, timeForward, nil))
	assert.Error(t, reg.Register(time.Time{}, nil, nil))
	assert.Error(t, reg.Register(time.Time{}, "not a function", nil))

	// forward that cannot accept the declared type
	assert.Error(t, reg.Register(time.Time{}, func(s strings.Builder) string { return "" }, nil))
}

func TestResolveReverseOnly(t *testing.T) {
	reg := swap.New()
	require.NoError(t, reg.Register(time.Time{}, nil, timeReverse))

	// reverse-only swaps are rejected for serialization
	assert.Nil(t, reg.Resolve(reflect.TypeOf(time.Time{})))

	// but stay resolvable for reconstruction
	sw := reg.ResolveReverse(reflect.TypeOf(time.Time{}))
	require.NotNil(t, sw)
	assert.True(t, sw.CanReverse())
}

func TestRevertPassthrough(t *testing.T) {
	reg := swap.New()

	out, err := reg.Revert(nil, reflect.TypeOf(42), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}
