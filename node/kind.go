package node

//go:generate go tool stringer -type=Kind -output=kind_string.go

// Kind is the classified structural category of a runtime value. It drives
// the exhaustive per-kind dispatch in the traversal session.
type Kind int

const (
	KindUnknown Kind = iota
	KindScalar
	KindMap
	KindCollection
	KindArray
	KindRecord
	KindStream

	// KindTotal is a constant that represents the total number of kinds defined
	KindTotal = int(iota)
)

// IsSequence reports whether the kind holds positionally ordered elements.
func (k Kind) IsSequence() bool {
	return k == KindCollection || k == KindArray
}

// IsComposite reports whether the kind has child nodes to recurse into.
func (k Kind) IsComposite() bool {
	switch k {
	default:
		return false
	case KindMap, KindCollection, KindArray, KindRecord:
		return true
	}
}
