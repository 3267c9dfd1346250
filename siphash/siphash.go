// Package siphash implements SipHash-2-4, the keyed 64-bit pseudorandom
// function by Aumasson and Bernstein. Output matches the reference
// implementation's published test vectors bit-for-bit.
package siphash

import (
	"encoding/binary"
	"math/bits"
)

// Initialization constants ("somepseudorandomlygeneratedbytes").
const (
	c0 = 0x736f6d6570736575
	c1 = 0x646f72616e646f6d
	c2 = 0x6c7967656e657261
	c3 = 0x7465646279746573
)

// Sum64 returns the SipHash-2-4 digest of msg under the 128-bit key
// (k0, k1). It is pure and total: any message length is accepted.
func Sum64(msg []byte, k0, k1 uint64) uint64 {
	v0 := c0 ^ k0
	v1 := c1 ^ k1
	v2 := c2 ^ k0
	v3 := c3 ^ k1

	// The final block carries the message length mod 256 in its top byte.
	b := uint64(len(msg)) << 56

	for ; len(msg) >= 8; msg = msg[8:] {
		m := binary.LittleEndian.Uint64(msg)
		v3 ^= m
		v0, v1, v2, v3 = round(v0, v1, v2, v3)
		v0, v1, v2, v3 = round(v0, v1, v2, v3)
		v0 ^= m
	}

	// Trailing 0-7 bytes, little-endian in the low bytes of b.
	for i, c := range msg {
		b |= uint64(c) << (8 * uint(i))
	}

	v3 ^= b
	v0, v1, v2, v3 = round(v0, v1, v2, v3)
	v0, v1, v2, v3 = round(v0, v1, v2, v3)
	v0 ^= b

	v2 ^= 0xff
	v0, v1, v2, v3 = round(v0, v1, v2, v3)
	v0, v1, v2, v3 = round(v0, v1, v2, v3)
	v0, v1, v2, v3 = round(v0, v1, v2, v3)
	v0, v1, v2, v3 = round(v0, v1, v2, v3)

	return v0 ^ v1 ^ v2 ^ v3
}

// round is one SipRound of the add-rotate-xor network.
func round(v0, v1, v2, v3 uint64) (uint64, uint64, uint64, uint64) {
	v0 += v1
	v1 = bits.RotateLeft64(v1, 13)
	v1 ^= v0
	v0 = bits.RotateLeft64(v0, 32)
	v2 += v3
	v3 = bits.RotateLeft64(v3, 16)
	v3 ^= v2
	v0 += v3
	v3 = bits.RotateLeft64(v3, 21)
	v3 ^= v0
	v2 += v1
	v1 = bits.RotateLeft64(v1, 17)
	v1 ^= v2
	v2 = bits.RotateLeft64(v2, 32)
	return v0, v1, v2, v3
}
