package uuid47

import (
	"errors"
	"fmt"

	"github.com/paraglidehq/uuid47/siphash"
)

// DefaultObfuscator, when set, masks all external text representations
// (String, MarshalText, JSON) and unmasks parsed input, while keeping
// internal and stored values in the sortable form. Set this once at
// startup before generating or parsing IDs.
var DefaultObfuscator *Obfuscator

// Obfuscator moves IDs between the sortable (v7) and facade (v4) forms
// by XORing the 48-bit timestamp field with a keyed SipHash mask. Both
// directions are pure functions; an Obfuscator is safe for unbounded
// concurrent use.
type Obfuscator struct {
	key Key
}

// NewObfuscator creates an obfuscator with the given key.
func NewObfuscator(key Key) *Obfuscator {
	return &Obfuscator{key: key}
}

// SetObfuscator sets the DefaultObfuscator with the given key.
// Call once at startup to enable facade output.
func SetObfuscator(key Key) {
	DefaultObfuscator = NewObfuscator(key)
}

// ErrUnexpectedVersion is returned by the strict transforms when the
// input's version nibble is not the one the direction expects.
var ErrUnexpectedVersion = errors.New("uuid47: unexpected UUID version")

const ts48Mask = 0x0000FFFFFFFFFFFF

// mask48 derives the 48-bit timestamp mask from the ID's 74 random
// bits. Those bits are identical in the sortable and facade forms, so
// both directions recompute the same mask.
func (o *Obfuscator) mask48(id ID) uint64 {
	msg := id.sipMessage()
	return siphash.Sum64(msg[:], o.key.K0, o.key.K1) & ts48Mask
}

// Encode masks the timestamp of a sortable ID, yielding the v4 facade.
// rand_a and rand_b are copied unchanged and the variant bits are
// forced to 10. Total over any 16-byte input; see EncodeStrict for
// version validation.
func (o *Obfuscator) Encode(id ID) ID {
	out := id.withTimestamp(id.TimestampMillis() ^ o.mask48(id))
	return out.withVersion(Version4).withRFCVariant()
}

// Decode unmasks a facade ID back to the sortable form. With the key
// used by Encode this is its exact inverse; with any other key the
// recovered timestamp is wrong with overwhelming probability.
func (o *Obfuscator) Decode(id ID) ID {
	out := id.withTimestamp(id.TimestampMillis() ^ o.mask48(id))
	return out.withVersion(Version7).withRFCVariant()
}

// EncodeStrict is Encode with version validation: the input must be a
// sortable (v7) ID.
func (o *Obfuscator) EncodeStrict(id ID) (ID, error) {
	if v := id.Version(); v != Version7 {
		return Nil, fmt.Errorf("%w: got %d, want %d", ErrUnexpectedVersion, v, Version7)
	}
	return o.Encode(id), nil
}

// DecodeStrict is Decode with version validation: the input must be a
// facade (v4) ID.
func (o *Obfuscator) DecodeStrict(id ID) (ID, error) {
	if v := id.Version(); v != Version4 {
		return Nil, fmt.Errorf("%w: got %d, want %d", ErrUnexpectedVersion, v, Version4)
	}
	return o.Decode(id), nil
}

// obfuscate applies DefaultObfuscator to sortable IDs headed for an
// external representation. Non-v7 values pass through.
func obfuscate(id ID) ID {
	if DefaultObfuscator != nil && id.Version() == Version7 {
		return DefaultObfuscator.Encode(id)
	}
	return id
}

// deobfuscate reverses obfuscation on parsed facade input. v7 text
// passes through, so both forms are accepted at the boundary.
func deobfuscate(id ID) ID {
	if DefaultObfuscator != nil && id.Version() == Version4 {
		return DefaultObfuscator.Decode(id)
	}
	return id
}
