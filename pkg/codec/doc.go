// Package codec implements the binary key and value formats of the
// on-disk store.
//
// Keys are fixed prefixes plus length-tagged variable segments so that
// prefix iteration yields exactly the intended set. Values carry a
// leading version byte followed by a deterministic MessagePack payload:
// fields are written in a fixed order, field maps sorted by field id,
// floats bit-exact, so encoding the same record twice produces identical
// bytes.
package codec
