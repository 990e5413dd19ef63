// Package crypto implements the authenticated envelope protecting the
// storage file: scrypt derives a ChaCha20-Poly1305 key from the configured
// secret, and the salt, KDF parameters and nonce travel with the ciphertext
// in a versioned JSON blob.
package crypto
