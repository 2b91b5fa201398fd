package uon

import (
	"bytes"
	"io"

	"uon-marshaller/internal/diagnostic"
	"uon-marshaller/options"
	"uon-marshaller/serialize"
	"uon-marshaller/swap"
)

// Serializer marshals object graphs into UON documents. The zero value is
// usable; Registry and Options default when nil. One serializer may be used
// concurrently, every call runs its own session.
type Serializer struct {
	Registry *swap.Registry
	Options  *options.Options
}

// Marshal renders v with default options and an empty registry, so only
// convention-discovered substitutions apply.
func Marshal(v any) ([]byte, error) {
	return (&Serializer{}).Marshal(v)
}

// Marshal renders v into a UON document.
func (s *Serializer) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.Write(&buf, v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// MarshalString is Marshal returning a string.
func (s *Serializer) MarshalString(v any) (string, error) {
	data, err := s.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// Write renders v into out and returns the traversal diagnostics, which may
// carry warnings even on success.
func (s *Serializer) Write(out io.Writer, v any) (*diagnostic.Diagnostics, error) {
	session := serialize.New(s.Registry, s.Options)
	err := session.Serialize(NewWriter(out, s.Options), v)

	return session.Diagnostics(), err
}
