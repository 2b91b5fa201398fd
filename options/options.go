// Package options holds the serializer configuration object. An Options
// value is built once at configuration time and read-only during traversal;
// sessions never mutate it.
package options

const DefaultMaxDepth = 100

// Options gates the branch choices of the traversal session and the format
// writer.
type Options struct {
	// SortMaps renders ordered-map entries in sorted key order. Built-in Go
	// maps are always rendered sorted since they carry no insertion order.
	SortMaps bool `yaml:"sort_maps"`

	// SortProperties renders record properties in sorted name order instead
	// of declaration order.
	SortProperties bool `yaml:"sort_properties"`

	// KeepNullProperties renders record properties whose value is null
	// instead of dropping them.
	KeepNullProperties bool `yaml:"keep_null_properties"`

	// ExpandedParams renders every sequence-valued entry as repeated
	// key=value pairs instead of one composite entry, regardless of
	// per-property expandable flags.
	ExpandedParams bool `yaml:"expanded_params"`

	// TrimEmptyCollections drops entries whose value is an empty sequence.
	TrimEmptyCollections bool `yaml:"trim_empty_collections"`

	// TrimEmptyMaps drops entries whose value is an empty map.
	TrimEmptyMaps bool `yaml:"trim_empty_maps"`

	// TrimStrings trims surrounding whitespace from string scalars.
	TrimStrings bool `yaml:"trim_strings"`

	// IgnoreRecursions renders a null placeholder at an identity cycle
	// instead of failing the whole call.
	IgnoreRecursions bool `yaml:"ignore_recursions"`

	// PlusSpaces encodes spaces as '+' instead of '%20'.
	PlusSpaces bool `yaml:"plus_spaces"`

	// MaxDepth bounds traversal nesting; exceeding it fails the call. This
	// is distinct from recursion detection, which tracks value identity.
	MaxDepth int `yaml:"max_depth"`
}

// Default returns the option set used when the caller provides none.
func Default() *Options {
	return &Options{
		PlusSpaces: true,
		MaxDepth:   DefaultMaxDepth,
	}
}

// Validate checks invariants a loaded option set must satisfy.
func (o *Options) Validate() error {
	if o.MaxDepth <= 0 {
		return errMaxDepth
	}

	return nil
}
