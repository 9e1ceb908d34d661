package encryption

import (
	"bytes"
	"crypto/rand"
	"crypto/sha512"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, KeySize)
	if _, err := rand.Read(k); err != nil {
		t.Fatal(err)
	}
	return k
}

func encryptBytes(t *testing.T, s *Streamer, plain []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := s.EncryptTo(&buf, bytes.NewReader(plain))
	if err != nil {
		t.Fatalf("EncryptTo: %v", err)
	}
	if n != int64(len(plain)) {
		t.Fatalf("EncryptTo returned %d plaintext bytes, want %d", n, len(plain))
	}
	return buf.Bytes()
}

// Law 1: decrypt(encrypt(P)) == P, for a handful of representative
// lengths (empty, sub-chunk, exact chunk, multi-chunk, multi-chunk+remainder).
func TestRoundTripLaw(t *testing.T) {
	key := testKey(t)
	s, err := New(key)
	if err != nil {
		t.Fatal(err)
	}

	sizes := []int{0, 1, PlainChunk - 1, PlainChunk, PlainChunk + 1, 2*PlainChunk + 500}
	for _, size := range sizes {
		plain := make([]byte, size)
		if _, err := rand.Read(plain); err != nil {
			t.Fatal(err)
		}

		ct := encryptBytes(t, s, plain)

		var out bytes.Buffer
		if err := s.DecryptTo(&out, bytes.NewReader(ct)); err != nil {
			t.Fatalf("size %d: DecryptTo: %v", size, err)
		}
		if !bytes.Equal(out.Bytes(), plain) {
			t.Fatalf("size %d: round trip mismatch", size)
		}

		// Ciphertext must differ byte-wise from the input for any
		// non-empty plaintext (S3's "the on-disk file differs
		// byte-wise from the input").
		if size > 0 && bytes.Equal(ct[NonceSize:], plain) {
			t.Fatalf("size %d: ciphertext body equals plaintext", size)
		}
	}
}

// Law 2: range_decrypt(encrypt(P), start, len) == P[start:start+len].
func TestRangeDecryptLaw(t *testing.T) {
	key := testKey(t)
	s, err := New(key)
	if err != nil {
		t.Fatal(err)
	}

	plain := make([]byte, 3*PlainChunk+234)
	if _, err := rand.Read(plain); err != nil {
		t.Fatal(err)
	}
	ct := encryptBytes(t, s, plain)

	cases := []struct{ start, length int64 }{
		{0, 10},
		{20000, 51}, // mirrors S4's bytes=20000-20050 (51 bytes inclusive)
		{PlainChunk - 5, 10},
		{PlainChunk, 100},
		{int64(len(plain)) - 1, 1},
		{0, int64(len(plain))},
	}

	for _, c := range cases {
		var out bytes.Buffer
		err := s.RangeDecrypt(&out, bytes.NewReader(ct), c.start, c.length)
		if err != nil {
			t.Fatalf("start=%d len=%d: RangeDecrypt: %v", c.start, c.length, err)
		}
		want := plain[c.start : c.start+c.length]
		if !bytes.Equal(out.Bytes(), want) {
			t.Fatalf("start=%d len=%d: got %d bytes, want %d bytes mismatch", c.start, c.length, out.Len(), len(want))
		}
	}
}

// Law 3: plaintext_size(ciphertext_size(L)) == L, and
// ciphertext_offset(0) == NONCE + TAG.
func TestSizeMathLaw(t *testing.T) {
	if got := CiphertextOffset(0); got != NonceSize+Tag {
		t.Fatalf("CiphertextOffset(0) = %d, want %d", got, NonceSize+Tag)
	}

	for _, l := range []int64{0, 1, PlainChunk - 1, PlainChunk, PlainChunk + 1, 10*PlainChunk + 7} {
		cs := CiphertextSize(l)
		ps := PlaintextSize(cs)
		if ps != l {
			t.Fatalf("L=%d: PlaintextSize(CiphertextSize(L))=%d, want %d", l, ps, l)
		}
	}
}

// S3 — full PUT/GET round trip with a SHA-512 comparison, at a scale
// small enough for a unit test but exercising many chunks.
func TestEncryptedRoundTripChecksum(t *testing.T) {
	key := testKey(t)
	s, err := New(key)
	if err != nil {
		t.Fatal(err)
	}

	plain := make([]byte, 5*PlainChunk+17)
	if _, err := rand.Read(plain); err != nil {
		t.Fatal(err)
	}
	want := sha512.Sum512(plain)

	ct := encryptBytes(t, s, plain)

	var out bytes.Buffer
	if err := s.DecryptTo(&out, bytes.NewReader(ct)); err != nil {
		t.Fatal(err)
	}
	got := sha512.Sum512(out.Bytes())
	if got != want {
		t.Fatal("sha-512 mismatch after encrypt/decrypt round trip")
	}
}

func TestDecryptTamperedChunkFails(t *testing.T) {
	key := testKey(t)
	s, err := New(key)
	if err != nil {
		t.Fatal(err)
	}
	plain := bytes.Repeat([]byte("x"), PlainChunk+10)
	ct := encryptBytes(t, s, plain)
	ct[NonceSize] ^= 0xFF // flip every bit of the first ciphertext byte

	var out bytes.Buffer
	err = s.DecryptTo(&out, bytes.NewReader(ct))
	if err == nil {
		t.Fatal("expected decryption failure on tampered ciphertext")
	}
}

func TestNewRejectsBadKeySize(t *testing.T) {
	if _, err := New(make([]byte, 16)); err == nil {
		t.Fatal("expected error for undersized key")
	}
}
