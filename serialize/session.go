// Package serialize walks an object graph depth first and feeds a Writer
// with the resulting event stream. The walk is recursion safe: every
// reference backed value is tracked on a visited set while its subtree is
// open, and revisiting one either fails the traversal or renders a null
// placeholder, depending on the options.
package serialize

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"uon-marshaller/internal/diagnostic"
	"uon-marshaller/node"
	"uon-marshaller/options"
	"uon-marshaller/primitive"
	"uon-marshaller/swap"
)

// RootValueKey is the synthetic key under which a scalar or stream root is
// rendered, since the top level of a document is always a key=value list.
const RootValueKey = "_value"

// Session drives one traversal. A session is single use: Serialize consumes
// it and subsequent calls return ErrSessionReused. Sessions are not safe for
// concurrent use.
type Session struct {
	opts *options.Options
	reg  *swap.Registry
	ctx  *swap.Context

	w     Writer
	depth int
	seen  map[node.Ident]struct{}
	path  []string
	diags diagnostic.Diagnostics
	done  bool
}

// New creates a session over the given substitution registry and options.
// Both may be nil, in which case an empty registry and default options are
// used.
func New(reg *swap.Registry, opts *options.Options) *Session {
	if reg == nil {
		reg = swap.New()
	}

	if opts == nil {
		opts = options.Default()
	}

	return &Session{
		opts: opts,
		reg:  reg,
		ctx:  swap.NewContext(opts),
		seen: make(map[node.Ident]struct{}),
	}
}

// Diagnostics returns the diagnostics accumulated so far. Valid during and
// after Serialize.
func (s *Session) Diagnostics() *diagnostic.Diagnostics {
	return &s.diags
}

// Serialize traverses root and emits the document through w. Non fatal
// problems (failing accessors, unreadable streams, ambiguous values) are
// recorded as diagnostics and traversal continues; only structural failures
// (recursion, depth, writer errors) abort with an error.
func (s *Session) Serialize(w Writer, root any) error {
	if s.done {
		return ErrSessionReused
	}

	s.done = true
	s.w = w

	if err := s.writeRoot(root); err != nil {
		return err
	}

	return w.Flush()
}

func (s *Session) writeRoot(root any) error {
	n, err := s.substitute(node.ClassifyAny(root))
	if err != nil {
		s.diags.AddWarning(diagnostic.CodeAccessorFailure, err.Error(), RootValueKey)
		n = textNode("")
	}

	switch {
	case n.Kind == node.KindMap:
		pop := s.pushIdent(n.Ident)
		defer pop()

		return s.writeTop(s.mapMembers(n), false)

	case n.Kind == node.KindRecord:
		pop := s.pushIdent(n.Ident)
		defer pop()

		return s.writeTop(s.recordMembers(n), true)

	case n.Kind.IsSequence():
		return s.writeTopSequence(n)
	}

	// scalar and stream roots go under the synthetic value key
	s.path = append(s.path, RootValueKey)
	err = s.emitTopEntry(member{key: RootValueKey, keyKind: primitive.KindString}, n, false)
	s.path = s.path[:len(s.path)-1]

	return err
}

// writeTopSequence renders a root collection or array as a pseudo map whose
// keys are the element indexes.
func (s *Session) writeTopSequence(n node.Node) error {
	pop := s.pushIdent(n.Ident)
	defer pop()

	ln := n.Value.Len()
	for i := 0; i < ln; i++ {
		m := member{
			key:     strconv.Itoa(i),
			keyKind: primitive.KindInt,
			val:     n.Value.Index(i),
		}

		if err := s.writeTopEntry(m, false); err != nil {
			return err
		}
	}

	return nil
}

// member is one key/value pair of a map or record body, in render order.
type member struct {
	key        string
	keyKind    primitive.KindEnum
	num        float64 // key sort rank when every key of the map is numeric
	val        reflect.Value
	err        error // accessor failure while reading val
	expandable bool
}

func (s *Session) writeTop(members []member, fromRecord bool) error {
	for _, m := range members {
		if err := s.writeTopEntry(m, fromRecord); err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) writeTopEntry(m member, fromRecord bool) error {
	s.path = append(s.path, m.key)
	n := s.resolveMember(m)
	err := s.emitTopEntry(m, n, fromRecord)
	s.path = s.path[:len(s.path)-1]

	return err
}

func (s *Session) emitTopEntry(m member, n node.Node, fromRecord bool) error {
	if s.skipValue(n, fromRecord) {
		return nil
	}

	if n.Kind.IsSequence() && (m.expandable || s.opts.ExpandedParams) {
		return s.emitExpanded(m, n)
	}

	s.w.BeginEntry()
	s.w.Key(m.keyKind, m.key)
	err := s.writeNode(n)
	s.w.EndEntry()

	return err
}

// emitExpanded renders a sequence valued entry as repeated sibling pairs,
// one per element, all under the same key. An empty sequence contributes no
// pairs at all.
func (s *Session) emitExpanded(m member, n node.Node) error {
	pop := s.pushIdent(n.Ident)
	defer pop()

	ln := n.Value.Len()
	for i := 0; i < ln; i++ {
		s.path = append(s.path, "["+strconv.Itoa(i)+"]")
		en := s.resolveMember(member{val: n.Value.Index(i)})

		s.w.BeginEntry()
		s.w.Key(m.keyKind, m.key)
		err := s.writeNode(en)
		s.w.EndEntry()

		s.path = s.path[:len(s.path)-1]

		if err != nil {
			return err
		}
	}

	return nil
}

// writeNode renders one already substituted value. It owns the depth gate
// and the visited set discipline: the node's identity stays on the set for
// exactly as long as its subtree is open.
func (s *Session) writeNode(n node.Node) error {
	s.depth++
	defer func() { s.depth-- }()

	if s.depth > s.opts.MaxDepth {
		return &PathError{Path: s.pathString(), Err: ErrStackDepthExceeded}
	}

	if !n.Ident.IsZero() {
		if _, visited := s.seen[n.Ident]; visited {
			if s.opts.IgnoreRecursions {
				s.w.Scalar(primitive.KindNull, "")
				return nil
			}

			return &PathError{Path: s.pathString(), Err: ErrRecursionDetected}
		}

		s.seen[n.Ident] = struct{}{}
		defer s.popIdent(n.Ident)
	}

	switch n.Kind {
	case node.KindScalar:
		s.writeScalar(n)
		return nil
	case node.KindStream:
		s.writeStream(n)
		return nil
	case node.KindMap:
		return s.writeMembers(s.mapMembers(n), false)
	case node.KindRecord:
		return s.writeMembers(s.recordMembers(n), true)
	case node.KindCollection, node.KindArray:
		return s.writeSequence(n)
	}

	s.w.Scalar(primitive.KindString, "")

	return nil
}

func (s *Session) writeScalar(n node.Node) {
	if n.IsNull() {
		s.w.Scalar(primitive.KindNull, "")
		return
	}

	text := primitive.Format(n.Value, n.Scalar)
	if n.Scalar == primitive.KindString && s.opts.TrimStrings {
		text = strings.TrimSpace(text)
	}

	s.w.Scalar(n.Scalar, text)
}

func (s *Session) writeStream(n node.Node) {
	r, ok := n.Value.Interface().(io.Reader)
	if !ok {
		s.diags.AddWarning(diagnostic.CodeUnreadableStream,
			fmt.Sprintf("%s does not expose its reader", n.Actual), s.pathString())
		s.w.Scalar(primitive.KindString, "")

		return
	}

	data, err := io.ReadAll(r)
	if err != nil {
		s.diags.AddWarning(diagnostic.CodeUnreadableStream, err.Error(), s.pathString())
		s.w.Scalar(primitive.KindString, "")

		return
	}

	s.w.Scalar(primitive.KindString, string(data))
}

func (s *Session) writeMembers(members []member, fromRecord bool) error {
	s.w.BeginObject()

	first := true
	for _, m := range members {
		s.path = append(s.path, m.key)
		n := s.resolveMember(m)

		var err error
		if !s.skipValue(n, fromRecord) {
			if !first {
				s.w.NextMember()
			}
			first = false

			s.w.MemberKey(m.keyKind, m.key)
			err = s.writeNode(n)
		}

		s.path = s.path[:len(s.path)-1]

		if err != nil {
			return err
		}
	}

	s.w.EndObject()

	return nil
}

// writeSequence renders collection and array bodies. Elements are never
// skipped, a dropped element would silently renumber its siblings; nulls
// and empty composites render as they are.
func (s *Session) writeSequence(n node.Node) error {
	s.w.BeginArray()

	ln := n.Value.Len()
	for i := 0; i < ln; i++ {
		if i > 0 {
			s.w.NextMember()
		}

		s.path = append(s.path, "["+strconv.Itoa(i)+"]")
		en := s.resolveMember(member{val: n.Value.Index(i)})
		err := s.writeNode(en)
		s.path = s.path[:len(s.path)-1]

		if err != nil {
			return err
		}
	}

	s.w.EndArray()

	return nil
}

// resolveMember classifies and substitutes one member value. Accessor and
// substitution failures degrade to an empty string value with a warning, so
// one bad member never takes down its siblings.
func (s *Session) resolveMember(m member) node.Node {
	if m.err != nil {
		s.diags.AddWarning(diagnostic.CodeAccessorFailure, m.err.Error(), s.pathString())
		return textNode("")
	}

	n, err := s.substitute(node.Classify(m.val))
	if err != nil {
		s.diags.AddWarning(diagnostic.CodeAccessorFailure, err.Error(), s.pathString())
		return textNode("")
	}

	n.Name = m.key

	return n
}

// substitute applies the registered or discovered swap for the node's
// actual type, if any, and reclassifies the result. The substitute borrows
// the original value's identity so recursion through swapped values is
// still caught. A substitute that classifies as a record is ignored and the
// original value kept, swaps exist to move values toward the wire model,
// not sideways.
func (s *Session) substitute(n node.Node) (node.Node, error) {
	if n.IsNull() {
		return n, nil
	}

	sw := s.reg.Resolve(n.Actual)
	if sw == nil {
		if n.Ambiguous {
			s.diags.AddWarning(diagnostic.CodeAmbiguousKind,
				fmt.Sprintf("%s has no clear wire kind, rendering as text", n.Actual), s.pathString())
		}

		return n, nil
	}

	if sw.Ambiguous {
		s.diags.AddWarning(diagnostic.CodeAmbiguousSwap,
			fmt.Sprintf("multiple substitution candidates on %s", n.Actual), s.pathString())
	}

	out, err := sw.Apply(s.ctx, n.Value)
	if err != nil {
		return n, err
	}

	eff := node.ClassifyAny(out)
	if eff.Kind == node.KindRecord {
		return n, nil
	}

	eff.Declared = n.Actual
	eff.Ident = n.Ident

	return eff, nil
}

// skipValue reports whether a member is dropped instead of rendered, per
// the trim options. Null members are dropped only from records; a map
// entry's presence is part of its meaning.
func (s *Session) skipValue(n node.Node, fromRecord bool) bool {
	if n.IsNull() {
		return fromRecord && !s.opts.KeepNullProperties
	}

	switch n.Kind {
	case node.KindCollection, node.KindArray:
		return s.opts.TrimEmptyCollections && n.Value.Len() == 0
	case node.KindMap:
		return s.opts.TrimEmptyMaps && n.Value.Len() == 0
	}

	return false
}

// mapMembers lists the entries of a map node in render order. Built-in maps
// iterate in randomized order, so they always sort by key text; an
// OrderedMap keeps its insertion order unless SortMaps asks otherwise.
func (s *Session) mapMembers(n node.Node) []member {
	if n.Ordered {
		ln := n.Value.Len()
		members := make([]member, 0, ln)

		for i := 0; i < ln; i++ {
			entry := n.Value.Index(i)
			members = append(members, member{
				key:     entry.Field(0).String(),
				keyKind: primitive.KindString,
				val:     entry.Field(1),
			})
		}

		if s.opts.SortMaps {
			sort.SliceStable(members, func(i, j int) bool { return members[i].key < members[j].key })
		}

		return members
	}

	keys := n.Value.MapKeys()
	members := make([]member, 0, len(keys))

	numeric := true
	for _, k := range keys {
		kk, kt := keyText(k)
		m := member{key: kt, keyKind: kk, val: n.Value.MapIndex(k)}

		if kk.IsNumber() {
			m.num, _ = strconv.ParseFloat(kt, 64)
		} else {
			numeric = false
		}

		members = append(members, m)
	}

	// numeric keys order by value so 2 comes before 10, anything else
	// falls back to the formatted text
	if numeric {
		sort.SliceStable(members, func(i, j int) bool { return members[i].num < members[j].num })
	} else {
		sort.SliceStable(members, func(i, j int) bool { return members[i].key < members[j].key })
	}

	return members
}

func keyText(k reflect.Value) (primitive.KindEnum, string) {
	kn := node.Classify(k)
	if kn.Kind == node.KindScalar && !kn.IsNull() {
		return kn.Scalar, primitive.Format(kn.Value, kn.Scalar)
	}

	return primitive.KindString, fmt.Sprint(k.Interface())
}

// recordMembers lists a record's properties in declaration order, or sorted
// by name under SortProperties. A property whose read panics is carried as
// a failed member and degraded later, keeping its siblings intact.
func (s *Session) recordMembers(n node.Node) []member {
	props := node.MetaOf(n.Actual).Properties

	if s.opts.SortProperties {
		props = append([]node.Property(nil), props...)
		sort.SliceStable(props, func(i, j int) bool { return props[i].Name < props[j].Name })
	}

	members := make([]member, 0, len(props))
	for _, p := range props {
		fv, err := fieldValue(n.Value, p.Index)
		members = append(members, member{
			key:        p.Name,
			keyKind:    primitive.KindString,
			val:        fv,
			err:        err,
			expandable: p.Expandable,
		})
	}

	return members
}

func fieldValue(v reflect.Value, index int) (fv reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("property read failed: %v", r)
		}
	}()

	return v.Field(index), nil
}

func textNode(text string) node.Node {
	return node.Node{
		Kind:   node.KindScalar,
		Scalar: primitive.KindString,
		Actual: reflect.TypeOf(text),
		Value:  reflect.ValueOf(text),
	}
}

// pushIdent puts an identity on the visited set for the duration of a
// sibling loop (root composites, expanded entries) where writeNode does not
// own it. Already present identities are left alone; the nested writeNode
// reports the recursion.
func (s *Session) pushIdent(id node.Ident) func() {
	if id.IsZero() {
		return func() {}
	}

	if _, ok := s.seen[id]; ok {
		return func() {}
	}

	s.seen[id] = struct{}{}

	return func() { s.popIdent(id) }
}

func (s *Session) popIdent(id node.Ident) {
	if _, ok := s.seen[id]; !ok {
		s.diags.AddError(diagnostic.CodeRemovalOutOfSync,
			fmt.Sprintf("identity %#x missing from visited set", id.Ptr), s.pathString())

		return
	}

	delete(s.seen, id)
}

func (s *Session) pathString() string {
	var b strings.Builder

	for _, seg := range s.path {
		if b.Len() > 0 && !strings.HasPrefix(seg, "[") {
			b.WriteByte('.')
		}

		b.WriteString(seg)
	}

	return b.String()
}
