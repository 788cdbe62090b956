package credential

import (
	"bytes"
	"context"
	"testing"
)

// Heavy iteration counts belong in deployments, not in the test loop.
var testParams = Params{Iterations: 32, KeyLength: 64}

func TestHashAndVerify(t *testing.T) {
	ctx := context.Background()
	salt, key, err := testParams.Hash(ctx, "S3cureP@ss")
	if err != nil {
		t.Fatal(err)
	}
	if len(salt) != SaltLength {
		t.Fatalf("expected %v byte salt, got %v", SaltLength, len(salt))
	}
	if len(key) != testParams.KeyLength {
		t.Fatalf("expected %v byte key, got %v", testParams.KeyLength, len(key))
	}
	if bytes.Contains(key, []byte("S3cureP@ss")) {
		t.Fatal("derived key must not contain the plaintext password")
	}

	rec := Record{Username: "alice", Salt: salt, Iterations: testParams.Iterations, Key: key}
	ok, err := testParams.Verify(ctx, "S3cureP@ss", rec)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("the original password must verify")
	}

	ok, err = testParams.Verify(ctx, "S3cureP@sz", rec)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("a different password must not verify")
	}
}

func TestVerifyRejectsBitFlippedKey(t *testing.T) {
	ctx := context.Background()
	salt, key, err := testParams.Hash(ctx, "S3cureP@ss")
	if err != nil {
		t.Fatal(err)
	}
	for i := range key {
		flipped := make([]byte, len(key))
		copy(flipped, key)
		flipped[i] ^= 1
		rec := Record{Username: "alice", Salt: salt, Iterations: testParams.Iterations, Key: flipped}
		ok, err := testParams.Verify(ctx, "S3cureP@ss", rec)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatalf("key with bit %v flipped must not verify", i*8)
		}
	}
}

func TestSaltsNeverRepeat(t *testing.T) {
	ctx := context.Background()
	saltA, keyA, err := testParams.Hash(ctx, "S3cureP@ss")
	if err != nil {
		t.Fatal(err)
	}
	saltB, keyB, err := testParams.Hash(ctx, "S3cureP@ss")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(saltA, saltB) {
		t.Fatal("two hashes of the same password must use distinct salts")
	}
	if bytes.Equal(keyA, keyB) {
		t.Fatal("distinct salts must yield distinct keys")
	}
}
