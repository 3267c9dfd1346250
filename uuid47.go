// Package uuid47 stores time-ordered UUIDv7 values internally while
// presenting a keyed, UUIDv4-looking facade externally. The facade XORs
// the 48-bit v7 timestamp with a SipHash-2-4 mask derived from the
// UUID's own random bits, so the transform is exactly invertible with
// the key and the result is indistinguishable from a random v4 without
// it. Databases keep the sortable v7 form for index locality; clients
// only ever see the facade.
package uuid47

import (
	"database/sql"
	"database/sql/driver"
	"encoding"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Compile-time interface checks for ID
var (
	_ fmt.Stringer               = ID{}
	_ driver.Valuer              = ID{}
	_ sql.Scanner                = (*ID)(nil)
	_ encoding.TextMarshaler     = ID{}
	_ encoding.TextUnmarshaler   = (*ID)(nil)
	_ encoding.BinaryMarshaler   = ID{}
	_ encoding.BinaryUnmarshaler = (*ID)(nil)
	_ json.Marshaler             = ID{}
	_ json.Unmarshaler           = (*ID)(nil)
	_ gob.GobEncoder             = ID{}
	_ gob.GobDecoder             = (*ID)(nil)
)

// ID is a 128-bit identifier in the RFC 4122 byte layout:
//
//	bytes 0-5   48-bit big-endian unix-ms timestamp
//	byte  6     version nibble | high 4 bits of rand_a
//	byte  7     low 8 bits of rand_a
//	byte  8     variant bits (10) | high 6 bits of rand_b
//	bytes 9-15  remaining 56 bits of rand_b
//
// rand_a (12 bits) and rand_b (62 bits) are never touched by the facade
// transform; only the timestamp field and the version nibble change
// between the two forms.
type ID [16]byte

// Nil is the zero ID.
var Nil ID

// Versions an ID moves between.
const (
	Version7 = 7 // sortable: real timestamp
	Version4 = 4 // facade: timestamp XORed with the keyed mask
)

// ErrInvalidFormat is returned when parsing text that is not the
// canonical xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx form.
var ErrInvalidFormat = errors.New("uuid47: invalid UUID format")

const textLen = 36

func (id ID) IsNil() bool {
	return id == Nil
}

// Version returns the version nibble (7 sortable, 4 facade).
func (id ID) Version() int {
	return int(id[6] >> 4)
}

// Variant returns the top two bits of byte 8; 0b10 for RFC 4122.
func (id ID) Variant() byte {
	return id[8] >> 6
}

// TimestampMillis returns the raw 48-bit timestamp field. For a facade
// ID this is the masked value; Decode it first for wall-clock time.
func (id ID) TimestampMillis() uint64 {
	return rd48be(id[0:6])
}

// Time returns the embedded timestamp. Only meaningful for the sortable
// form.
func (id ID) Time() time.Time {
	return time.UnixMilli(int64(id.TimestampMillis()))
}

// Compare orders IDs byte-wise, which for sortable IDs is creation
// order. Returns -1, 0 or 1.
func (id ID) Compare(other ID) int {
	for i := 0; i < 16; i++ {
		switch {
		case id[i] < other[i]:
			return -1
		case id[i] > other[i]:
			return 1
		}
	}
	return 0
}

// Bytes returns the ID as a 16-byte slice.
func (id ID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}

// UUID converts to a github.com/google/uuid value (same byte layout).
func (id ID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

// FromUUID converts from a github.com/google/uuid value.
func FromUUID(u uuid.UUID) ID {
	return ID(u)
}

// String returns the canonical lowercase text form. If a
// DefaultObfuscator is set, the facade form is emitted for sortable IDs.
func (id ID) String() string {
	return obfuscate(id).encodeCanonical()
}

// Raw field plumbing. These are the single definition of the bit layout;
// the transform, generator and codec all go through them.

func rd48be(src []byte) uint64 {
	return uint64(src[0])<<40 | uint64(src[1])<<32 | uint64(src[2])<<24 |
		uint64(src[3])<<16 | uint64(src[4])<<8 | uint64(src[5])
}

func wr48be(dst []byte, v uint64) {
	dst[0] = byte(v >> 40)
	dst[1] = byte(v >> 32)
	dst[2] = byte(v >> 24)
	dst[3] = byte(v >> 16)
	dst[4] = byte(v >> 8)
	dst[5] = byte(v)
}

func (id ID) withTimestamp(ms uint64) ID {
	out := id
	wr48be(out[0:6], ms)
	return out
}

func (id ID) withVersion(ver int) ID {
	out := id
	out[6] = out[6]&0x0F | byte(ver)<<4
	return out
}

func (id ID) withRFCVariant() ID {
	out := id
	out[8] = out[8]&0x3F | 0x80
	return out
}

// sipMessage extracts the 10 bytes of rand_a and rand_b fed to the PRF.
// The same bytes come out of the sortable and facade forms of one ID,
// which is what makes Decode the exact inverse of Encode.
func (id ID) sipMessage() [10]byte {
	var m [10]byte
	m[0] = id[6] & 0x0F
	m[1] = id[7]
	m[2] = id[8] & 0x3F
	copy(m[3:], id[9:16])
	return m
}

// buildSortable assembles a v7 ID from a millisecond timestamp and a
// 10-byte suffix holding the 74 random bits in field order.
func buildSortable(ms uint64, suffix [10]byte) ID {
	var id ID
	wr48be(id[0:6], ms)
	id[6] = Version7<<4 | suffix[0]&0x0F
	id[7] = suffix[1]
	id[8] = 0x80 | suffix[2]&0x3F
	copy(id[9:], suffix[3:])
	return id
}

const hexDigits = "0123456789abcdef"

func (id ID) encodeCanonical() string {
	var buf [textLen]byte
	j := 0
	for i, b := range id {
		if i == 4 || i == 6 || i == 8 || i == 10 {
			buf[j] = '-'
			j++
		}
		buf[j] = hexDigits[b>>4]
		buf[j+1] = hexDigits[b&0x0F]
		j += 2
	}
	return string(buf[:])
}

func hexVal(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// decodeCanonical parses the canonical 36-character grouping. Anything
// else - wrong length, misplaced hyphens, non-hex characters - fails.
func decodeCanonical(s string) (ID, error) {
	var id ID
	if len(s) != textLen {
		return Nil, fmt.Errorf("%w: length %d, want %d", ErrInvalidFormat, len(s), textLen)
	}
	if s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return Nil, fmt.Errorf("%w: misplaced hyphen", ErrInvalidFormat)
	}
	j := 0
	for i := 0; i < textLen; {
		if i == 8 || i == 13 || i == 18 || i == 23 {
			i++
			continue
		}
		h := hexVal(s[i])
		l := hexVal(s[i+1])
		if h < 0 || l < 0 {
			return Nil, fmt.Errorf("%w: non-hex character at %d", ErrInvalidFormat, i)
		}
		id[j] = byte(h<<4 | l)
		j++
		i += 2
	}
	return id, nil
}

// Parse parses the canonical text form. If a DefaultObfuscator is set,
// facade (v4) input is decoded back to the sortable form; v7 input
// passes through unchanged.
func Parse(s string) (ID, error) {
	id, err := decodeCanonical(s)
	if err != nil {
		return Nil, err
	}
	return deobfuscate(id), nil
}

// Parse parses a string into the ID receiver.
func (id *ID) Parse(s string) error {
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// FromString returns an ID parsed from the input string.
// Alias for Parse.
func FromString(s string) (ID, error) {
	return Parse(s)
}

// FromStringOrNil returns an ID parsed from the input string.
// Returns Nil on error.
func FromStringOrNil(s string) ID {
	id, err := Parse(s)
	if err != nil {
		return Nil
	}
	return id
}

// FromBytes returns an ID from a 16-byte slice.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != 16 {
		return Nil, fmt.Errorf("uuid47: ID must be exactly 16 bytes, got %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// FromBytesOrNil returns an ID from a 16-byte slice.
// Returns Nil on error.
func FromBytesOrNil(b []byte) ID {
	id, err := FromBytes(b)
	if err != nil {
		return Nil
	}
	return id
}

// Must panics if err is not nil
func Must(id ID, err error) ID {
	if err != nil {
		panic(err)
	}
	return id
}

// MarshalText implements encoding.TextMarshaler
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *ID) UnmarshalText(b []byte) error {
	return id.Parse(string(b))
}

// MarshalJSON implements json.Marshaler
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = Nil
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return errors.New("uuid47: invalid JSON string")
	}
	return id.UnmarshalText(b[1 : len(b)-1])
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (id ID) MarshalBinary() ([]byte, error) {
	return id.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (id *ID) UnmarshalBinary(data []byte) error {
	parsed, err := FromBytes(data)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// GobEncode implements gob.GobEncoder.
func (id ID) GobEncode() ([]byte, error) {
	return id.MarshalBinary()
}

// GobDecode implements gob.GobDecoder.
func (id *ID) GobDecode(data []byte) error {
	return id.UnmarshalBinary(data)
}

// Value implements driver.Valuer. The stored value is always the raw
// (sortable) form; the database never sees a facade, obfuscator or not.
func (id ID) Value() (driver.Value, error) {
	return id.encodeCanonical(), nil
}

// Scan implements sql.Scanner. Input is taken as-is: the storage layer
// holds the sortable form, so no obfuscator is applied.
func (id *ID) Scan(src interface{}) error {
	if src == nil {
		*id = Nil
		return nil
	}
	switch v := src.(type) {
	case ID:
		*id = v
		return nil
	case [16]byte:
		*id = ID(v)
		return nil
	case []byte:
		if len(v) == 16 {
			copy(id[:], v)
			return nil
		}
		parsed, err := decodeCanonical(string(v))
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	case string:
		parsed, err := decodeCanonical(v)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	default:
		return fmt.Errorf("uuid47: cannot scan %T", src)
	}
}
