package auth_test

import (
	"crypto/subtle"
	"encoding/hex"
	"testing"

	"github.com/rezkam/torque/internal/infrastructure/keygen"
	"golang.org/x/crypto/blake2b"
)

// hashSecret computes BLAKE2b-256 hash of the secret (matches auth package implementation)
func hashSecret(secret string) string {
	hash := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}

// BenchmarkKeyGeneration benchmarks API key generation speed.
func BenchmarkKeyGeneration(b *testing.B) {
	for b.Loop() {
		_, err := keygen.GenerateAPIKey("sk", "torque", "v1")
		if err != nil {
			b.Fatalf("Failed to generate key: %v", err)
		}
	}
}

// BenchmarkKeyParsing benchmarks API key parsing performance.
func BenchmarkKeyParsing(b *testing.B) {
	key := "sk-torque-v1-a7f3d8e2-8h3k2jf9s7d6f5g4h3j2k1m0n9p8q7r6s5t4u3v2w1x"

	for b.Loop() {
		_, err := keygen.ParseAPIKey(key)
		if err != nil {
			b.Fatalf("Failed to parse key: %v", err)
		}
	}
}

// BenchmarkBLAKE2bHash benchmarks BLAKE2b-256 hashing performance.
// This shows BLAKE2b is faster than SHA-256 for high-entropy API keys.
func BenchmarkBLAKE2bHash(b *testing.B) {
	secret := "8h3k2jf9s7d6f5g4h3j2k1m0n9p8q7r6s5t4u3v2w1x"

	b.Run("Hash", func(b *testing.B) {
		for b.Loop() {
			_ = hashSecret(secret)
		}
	})

	b.Run("HashAndCompare", func(b *testing.B) {
		storedHash := hashSecret(secret)

		for b.Loop() {
			providedHash := hashSecret(secret)
			_ = subtle.ConstantTimeCompare([]byte(storedHash), []byte(providedHash))
		}
	})
}
