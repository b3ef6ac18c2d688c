package pskengine

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestCipherStateEncryptDecryptRoundTrip(t *testing.T) {
	write := &cipherState{macKey: bytes.Repeat([]byte{0x01}, 32), key: bytes.Repeat([]byte{0x02}, 16), macHash: sha256.New}
	read := &cipherState{macKey: bytes.Repeat([]byte{0x01}, 32), key: bytes.Repeat([]byte{0x02}, 16), macHash: sha256.New}

	plaintext := []byte("hello secure ads")
	record, err := write.encrypt(contentApplicationData, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	got, err := read.decrypt(contentApplicationData, record)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("decrypt = %q, want %q", got, plaintext)
	}
}

func TestCipherStateSequenceNumberAdvances(t *testing.T) {
	c := &cipherState{macKey: bytes.Repeat([]byte{0x01}, 32), key: bytes.Repeat([]byte{0x02}, 16), macHash: sha256.New}
	if _, err := c.encrypt(contentApplicationData, []byte("a")); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if c.seq != 1 {
		t.Fatalf("seq = %d, want 1", c.seq)
	}
	if _, err := c.encrypt(contentApplicationData, []byte("b")); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if c.seq != 2 {
		t.Fatalf("seq = %d, want 2", c.seq)
	}
}

func TestCipherStateDecryptRejectsTamperedRecord(t *testing.T) {
	write := &cipherState{macKey: bytes.Repeat([]byte{0x01}, 32), key: bytes.Repeat([]byte{0x02}, 16), macHash: sha256.New}
	read := &cipherState{macKey: bytes.Repeat([]byte{0x01}, 32), key: bytes.Repeat([]byte{0x02}, 16), macHash: sha256.New}

	record, err := write.encrypt(contentApplicationData, []byte("authentic payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	tampered := append([]byte{}, record...)
	tampered[len(tampered)-1] ^= 0xFF

	if _, err := read.decrypt(contentApplicationData, tampered); err == nil {
		t.Fatalf("expected decrypt to reject a tampered record")
	}
}

func TestRecordHeaderEncodeDecodeRoundTrip(t *testing.T) {
	hdr := encodeRecordHeader(contentHandshake, 1234)
	if len(hdr) != recordHeaderSize {
		t.Fatalf("len(hdr) = %d, want %d", len(hdr), recordHeaderSize)
	}
	decoded := decodeRecordHeader(hdr)
	if decoded.contentType != contentHandshake || decoded.version != tlsVersion12 || decoded.length != 1234 {
		t.Fatalf("decoded header mismatch: %+v", decoded)
	}
}
