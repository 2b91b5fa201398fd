package serialize

import "uon-marshaller/primitive"

// Writer receives the event stream produced by a Session. Implementations
// turn the events into a concrete wire format and own all escaping and
// delimiter rules. The session guarantees a well formed event sequence:
// every BeginEntry is closed by EndEntry, every BeginObject/BeginArray by
// the matching End call, and NextMember precedes every member but the
// first inside a composite.
type Writer interface {
	// BeginEntry opens one top level key=value pair. Key follows.
	BeginEntry()
	// Key emits the top level entry key.
	Key(kind primitive.KindEnum, text string)
	// EndEntry closes the current top level pair.
	EndEntry()

	// Scalar emits one leaf value, already formatted as text. A null
	// scalar arrives as primitive.KindNull with empty text.
	Scalar(kind primitive.KindEnum, text string)

	// BeginObject and EndObject bracket map and record bodies.
	BeginObject()
	EndObject()

	// BeginArray and EndArray bracket collection and array bodies.
	BeginArray()
	EndArray()

	// NextMember separates consecutive members of the innermost composite.
	NextMember()
	// MemberKey emits a map key or record property name inside an object.
	MemberKey(kind primitive.KindEnum, text string)

	// Flush finishes the document and reports any pending write error.
	Flush() error
}
