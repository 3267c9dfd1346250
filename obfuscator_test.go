package uuid47

import (
	"encoding/json"
	"errors"
	"testing"
)

var (
	obfTestKey      = Key{K0: 0x0123456789abcdef, K1: 0xfedcba9876543210}
	obfTestWrongKey = Key{K0: 0x0123456789abcdef ^ 0xdeadbeef, K1: 0xfedcba9876543210 ^ 0x1337}
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	o := NewObfuscator(obfTestKey)
	wrong := NewObfuscator(obfTestWrongKey)

	for i := 0; i < 16; i++ {
		ts := uint64(0x100000)*uint64(i) + 123
		ra := uint16(0x0AAA^(i*7)) & 0x0FFF
		rb := (0x0123456789ABCDEF ^ (0x1111111111111111 * uint64(i))) & (1<<62 - 1)
		v7 := craftSortable(ts, ra, rb)

		facade := o.Encode(v7)
		if facade.Version() != Version4 {
			t.Fatalf("Encode version = %d, want 4", facade.Version())
		}
		if facade.Variant() != 0b10 {
			t.Fatalf("Encode variant = %b, want 10", facade.Variant())
		}

		back := o.Decode(facade)
		if back != v7 {
			t.Fatalf("Decode(Encode(v)) != v: got %v, want %v", back, v7)
		}
		if back.Version() != Version7 || back.Variant() != 0b10 {
			t.Fatalf("Decode shape: version %d variant %b", back.Version(), back.Variant())
		}

		if bad := wrong.Decode(facade); bad == v7 {
			t.Fatalf("Decode with wrong key recovered the original (i=%d)", i)
		}
	}
}

func TestRandomFieldsUntouched(t *testing.T) {
	o := NewObfuscator(obfTestKey)
	v7 := craftSortable(0x0192B1C2D3E4, 0x0123, 0x2FFFEEDDCCBBAA99&(1<<62-1))
	facade := o.Encode(v7)

	if facade[6]&0x0F != v7[6]&0x0F || facade[7] != v7[7] {
		t.Error("rand_a changed across Encode")
	}
	if facade[8]&0x3F != v7[8]&0x3F {
		t.Error("rand_b high bits changed across Encode")
	}
	for i := 9; i < 16; i++ {
		if facade[i] != v7[i] {
			t.Fatalf("rand_b byte %d changed across Encode", i)
		}
	}
	if facade.TimestampMillis() == v7.TimestampMillis() {
		t.Error("timestamp field not masked")
	}
}

func TestSipMessageStability(t *testing.T) {
	o := NewObfuscator(obfTestKey)
	v7 := craftSortable(0x123456789ABC, 0x0ABC, 0x0123456789ABCDEF&(1<<62-1))
	facade := o.Encode(v7)

	m1 := v7.sipMessage()
	m2 := facade.sipMessage()
	if m1 != m2 {
		t.Errorf("sip message differs across the transform: %x vs %x", m1, m2)
	}
}

func TestStrictTransforms(t *testing.T) {
	o := NewObfuscator(obfTestKey)
	v7 := craftSortable(1000, 1, 1)
	facade := o.Encode(v7)

	if _, err := o.EncodeStrict(v7); err != nil {
		t.Errorf("EncodeStrict(v7): %v", err)
	}
	if _, err := o.DecodeStrict(facade); err != nil {
		t.Errorf("DecodeStrict(facade): %v", err)
	}
	if _, err := o.EncodeStrict(facade); !errors.Is(err, ErrUnexpectedVersion) {
		t.Errorf("EncodeStrict(facade): want ErrUnexpectedVersion, got %v", err)
	}
	if _, err := o.DecodeStrict(v7); !errors.Is(err, ErrUnexpectedVersion) {
		t.Errorf("DecodeStrict(v7): want ErrUnexpectedVersion, got %v", err)
	}

	got, err := o.DecodeStrict(facade)
	if err != nil {
		t.Fatal(err)
	}
	if got != v7 {
		t.Error("DecodeStrict result differs from Decode")
	}
}

func TestEndToEndExample(t *testing.T) {
	const s = "00000000-0000-7000-8000-000000000000"
	id, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}

	o := NewObfuscator(obfTestKey)
	facade := o.Encode(id)
	back := o.Decode(facade)
	if back.String() != s {
		t.Errorf("roundtrip: got %q, want %q", back.String(), s)
	}

	wrong := NewObfuscator(obfTestWrongKey)
	if bad := wrong.Decode(facade); bad == id {
		t.Error("wrong-key decode yielded the original")
	}
}

func TestDefaultObfuscator(t *testing.T) {
	SetObfuscator(obfTestKey)
	defer func() { DefaultObfuscator = nil }()

	id := New()

	// External text is the facade; parsing it recovers the sortable form.
	s := id.String()
	external := Must(decodeCanonical(s))
	if external.Version() != Version4 {
		t.Errorf("external version = %d, want 4", external.Version())
	}
	parsed, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	if parsed != id {
		t.Errorf("roundtrip through facade failed: got %v, want %v", parsed, id)
	}

	// Without the obfuscator the same text parses to a different value.
	DefaultObfuscator = nil
	raw, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	if raw == id {
		t.Error("raw parse should differ from the sortable form")
	}
	SetObfuscator(obfTestKey)

	// Sortable text is accepted unchanged at the boundary too.
	direct, err := Parse(id.encodeCanonical())
	if err != nil {
		t.Fatal(err)
	}
	if direct != id {
		t.Error("v7 text did not pass through")
	}
}

func TestDefaultObfuscatorJSON(t *testing.T) {
	SetObfuscator(Key{K0: 0x1EADBEEFCAFEBABE, K1: 0x7EDCBA9876543210})
	defer func() { DefaultObfuscator = nil }()

	id := New()
	data, err := json.Marshal(id)
	if err != nil {
		t.Fatal(err)
	}
	var got ID
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Errorf("JSON roundtrip: got %v, want %v", got, id)
	}
}

func TestDefaultObfuscatorStorageRaw(t *testing.T) {
	SetObfuscator(obfTestKey)
	defer func() { DefaultObfuscator = nil }()

	id := New()
	v, err := id.Value()
	if err != nil {
		t.Fatal(err)
	}
	s, ok := v.(string)
	if !ok {
		t.Fatalf("Value() returned %T, want string", v)
	}
	// The stored value is the raw sortable form, never the facade.
	stored, err := decodeCanonical(s)
	if err != nil {
		t.Fatal(err)
	}
	if stored != id {
		t.Error("Value() does not store the sortable form")
	}
	if stored.Version() != Version7 {
		t.Errorf("stored version = %d, want 7", stored.Version())
	}

	var scanned ID
	if err := scanned.Scan(s); err != nil {
		t.Fatal(err)
	}
	if scanned != id {
		t.Error("Scan() applied the obfuscator to stored data")
	}
}

func TestKeySensitivitySample(t *testing.T) {
	o := NewObfuscator(obfTestKey)
	for i := 0; i < 64; i++ {
		v7 := craftSortable(uint64(i)*7919+1, uint16(i*31)&0x0FFF, uint64(i)*0x9E3779B97F4A7C15&(1<<62-1))
		facade := o.Encode(v7)
		other := NewObfuscator(Key{K0: obfTestKey.K0 + uint64(i) + 1, K1: obfTestKey.K1})
		if other.Decode(facade) == v7 {
			t.Fatalf("key %d recovered the original", i)
		}
	}
}

func BenchmarkEncode(b *testing.B) {
	o := NewObfuscator(obfTestKey)
	id := craftSortable(0x018f2d9f9a2a, 0x0def, 42)
	for i := 0; i < b.N; i++ {
		o.Encode(id)
	}
}

func BenchmarkDecode(b *testing.B) {
	o := NewObfuscator(obfTestKey)
	facade := o.Encode(craftSortable(0x018f2d9f9a2a, 0x0def, 42))
	for i := 0; i < b.N; i++ {
		o.Decode(facade)
	}
}
