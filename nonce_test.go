package cbjwt

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

func TestRandomNonce(t *testing.T) {
	source := RandomNonce()
	first, err := source.Nonce()
	if err != nil {
		t.Fatalf("Nonce: %v", err)
	}
	second, err := source.Nonce()
	if err != nil {
		t.Fatalf("Nonce: %v", err)
	}
	if len(first) != 64 || len(second) != 64 {
		t.Fatalf("expected 64 hex chars, got %d and %d", len(first), len(second))
	}
	if first == second {
		t.Fatal("expected distinct nonces")
	}
}

func TestRandomNonce_DeterministicReader(t *testing.T) {
	source := randomNonce{reader: bytes.NewReader(bytes.Repeat([]byte{0xab}, nonceBytes))}
	nonce, err := source.Nonce()
	if err != nil {
		t.Fatalf("Nonce: %v", err)
	}
	if nonce != string(bytes.Repeat([]byte("ab"), nonceBytes)) {
		t.Fatalf("unexpected nonce: %s", nonce)
	}
}

func TestRandomNonce_ReaderFailure(t *testing.T) {
	_, err := randomNonce{reader: failingReader{}}.Nonce()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected reader error, got %v", err)
	}
}

func TestStaticNonce(t *testing.T) {
	nonce, err := StaticNonce("fixed").Nonce()
	if err != nil || nonce != "fixed" {
		t.Fatalf("unexpected nonce %q, err %v", nonce, err)
	}
	if _, err := StaticNonce("").Nonce(); err == nil {
		t.Fatal("expected error for empty static nonce")
	}
}
