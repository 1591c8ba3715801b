package security

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	key := DeriveKeyFromClusterID("test-cluster-roundtrip")
	if err := SetClusterEncryptionKey(key); err != nil {
		t.Fatalf("SetClusterEncryptionKey() error = %v", err)
	}

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{name: "simple string", plaintext: []byte("hello world")},
		{name: "json data", plaintext: []byte(`{"username":"admin","password":"secret123"}`)},
		{name: "binary data", plaintext: []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0xFD}},
		{name: "large data", plaintext: bytes.Repeat([]byte("test"), 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if bytes.Equal(ciphertext, tt.plaintext) {
				t.Error("ciphertext should not equal plaintext")
			}

			decrypted, err := Decrypt(ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(decrypted, tt.plaintext) {
				t.Errorf("decrypted data does not match original.\nGot:  %v\nWant: %v", decrypted, tt.plaintext)
			}
		})
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	key1 := DeriveKeyFromClusterID("cluster-one")
	if err := SetClusterEncryptionKey(key1); err != nil {
		t.Fatalf("SetClusterEncryptionKey() error = %v", err)
	}
	ciphertext, err := Encrypt([]byte("secret data"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	key2 := DeriveKeyFromClusterID("cluster-two")
	if err := SetClusterEncryptionKey(key2); err != nil {
		t.Fatalf("SetClusterEncryptionKey() error = %v", err)
	}
	if _, err := Decrypt(ciphertext); err == nil {
		t.Error("Decrypt() should fail with wrong key")
	}
}

func TestDeriveKeyFromClusterID(t *testing.T) {
	tests := []struct {
		name      string
		clusterID string
	}{
		{name: "simple ID", clusterID: "cluster-123"},
		{name: "UUID", clusterID: "550e8400-e29b-41d4-a716-446655440000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := DeriveKeyFromClusterID(tt.clusterID)
			if len(key) != 32 {
				t.Errorf("DeriveKeyFromClusterID() returned key of length %d, want 32", len(key))
			}

			key2 := DeriveKeyFromClusterID(tt.clusterID)
			if !bytes.Equal(key, key2) {
				t.Error("DeriveKeyFromClusterID() should be deterministic")
			}

			differentKey := DeriveKeyFromClusterID(tt.clusterID + "-different")
			if bytes.Equal(key, differentKey) {
				t.Error("different cluster IDs should produce different keys")
			}
		})
	}
}
