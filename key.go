package uuid47

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Key is the 128-bit SipHash key as two 64-bit halves. It is an opaque
// secret: no ID output embeds it or lets it be recovered without the
// key itself.
type Key struct {
	K0, K1 uint64
}

// ErrKeyFormat is returned for malformed key encodings: wrong length,
// non-hex characters, bad separators.
var ErrKeyFormat = errors.New("uuid47: invalid key encoding")

// KeyFromBytes interprets 16 raw bytes as k0||k1, each half read
// little-endian.
func KeyFromBytes(b []byte) (Key, error) {
	if len(b) != 16 {
		return Key{}, fmt.Errorf("%w: key must be 16 bytes, got %d", ErrKeyFormat, len(b))
	}
	return Key{
		K0: binary.LittleEndian.Uint64(b[0:8]),
		K1: binary.LittleEndian.Uint64(b[8:16]),
	}, nil
}

// ParseKey accepts "k0:k1" with 16 hex digits per half, or a single
// 32-hex-digit string split into two halves. Each half is decoded to 8
// bytes and read little-endian. Whitespace is ignored and each half may
// carry an optional 0x prefix.
func ParseKey(s string) (Key, error) {
	compact := strings.Join(strings.Fields(s), "")
	if lhs, rhs, ok := strings.Cut(compact, ":"); ok {
		k0, err := parseKeyHalf(lhs)
		if err != nil {
			return Key{}, err
		}
		k1, err := parseKeyHalf(rhs)
		if err != nil {
			return Key{}, err
		}
		return Key{K0: k0, K1: k1}, nil
	}
	compact = trimHexPrefix(compact)
	if len(compact) != 32 {
		return Key{}, fmt.Errorf("%w: want 32 hex digits, got %d", ErrKeyFormat, len(compact))
	}
	k0, err := parseKeyHalf(compact[:16])
	if err != nil {
		return Key{}, err
	}
	k1, err := parseKeyHalf(compact[16:])
	if err != nil {
		return Key{}, err
	}
	return Key{K0: k0, K1: k1}, nil
}

// MustParseKey panics on a malformed key encoding.
func MustParseKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func parseKeyHalf(s string) (uint64, error) {
	s = trimHexPrefix(s)
	if len(s) != 16 {
		return 0, fmt.Errorf("%w: want 16 hex digits per half, got %d", ErrKeyFormat, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: non-hex character", ErrKeyFormat)
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Fingerprint returns a short stable digest of the key ("v1-xxxxxxxx"),
// safe to log or persist for rotation bookkeeping. It is not
// reversible.
func (k Key) Fingerprint() string {
	h := uint32(2166136261)
	for _, w := range [4]uint32{
		uint32(k.K0), uint32(k.K0 >> 32),
		uint32(k.K1), uint32(k.K1 >> 32),
	} {
		h ^= w
		h *= 16777619
	}
	return fmt.Sprintf("v1-%08x", h)
}
