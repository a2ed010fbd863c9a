package hscrypto

import (
	"fmt"
)

// decoderFunc decodes the scheme-specific bytes following the type prefix
// into a concrete PubKey.
type decoderFunc func([]byte) (PubKey, error)

// Registry maps a short type-name prefix to a PubKey constructor, so that
// validator sets configured with mixed key schemes can be marshaled and
// unmarshaled without the caller needing to know the concrete type ahead of
// time.
//
// There is no global registry; every binary that needs one constructs its
// own and registers the schemes it supports.
type Registry struct {
	byTypeName map[string]decoderFunc

	// dynamic Go type (as printed by %T) -> type name, for Marshal to
	// find the right prefix given a concrete instance.
	typeNameOf map[string]string
}

// Register associates typeName with decode, and records that values of the
// same dynamic type as example should marshal under typeName.
//
// typeName must be at most 255 bytes; it is length-prefixed on the wire.
func (r *Registry) Register(typeName string, example PubKey, decode func([]byte) (PubKey, error)) {
	if len(typeName) > 255 {
		panic(fmt.Errorf("hscrypto: type name %q exceeds 255 bytes", typeName))
	}

	if r.byTypeName == nil {
		r.byTypeName = make(map[string]decoderFunc)
		r.typeNameOf = make(map[string]string)
	}

	r.byTypeName[typeName] = decode
	r.typeNameOf[typeOf(example)] = typeName
}

// Marshal encodes k as a single length-prefixed type name followed by
// k.PubKeyBytes(). It panics if k's dynamic type was never registered,
// since that indicates a configuration bug rather than a recoverable error.
func (r *Registry) Marshal(k PubKey) []byte {
	typeName, ok := r.typeNameOf[typeOf(k)]
	if !ok {
		panic(fmt.Errorf("hscrypto: no registered type name for %T", k))
	}

	out := make([]byte, 0, 1+len(typeName)+len(k.PubKeyBytes()))
	out = append(out, byte(len(typeName)))
	out = append(out, typeName...)
	out = append(out, k.PubKeyBytes()...)
	return out
}

// Unmarshal decodes a value produced by Marshal.
func (r *Registry) Unmarshal(b []byte) (PubKey, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("hscrypto: empty input")
	}

	n := int(b[0])
	if len(b) < 1+n {
		return nil, fmt.Errorf("hscrypto: truncated type name")
	}

	typeName := string(b[1 : 1+n])
	decode, ok := r.byTypeName[typeName]
	if !ok {
		return nil, fmt.Errorf("hscrypto: no registered public key type for prefix %q", typeName)
	}

	return decode(b[1+n:])
}

func typeOf(k PubKey) string {
	return fmt.Sprintf("%T", k)
}
