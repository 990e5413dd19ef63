package crypto

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"guildvault/internal/domain"
)

// The current supported version of the encrypted blob format stored on disk.
const blobFormatVersion = 1

const saltBytes = 16

// Tunables for scrypt key derivation.
func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }

// blob is the on-disk JSON structure holding the ciphertext and KDF parameters.
type blob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

// derivation is one cached scrypt result: the key together with the salt and
// params that produced it. Seal stamps exactly these params into the header,
// so the written blob always matches the key that sealed it.
type derivation struct {
	salt    []byte
	key     []byte
	n, r, p int
}

// Codec seals and opens the storage payload with a key derived from the
// configured secret. The key is derived once per salt and cached for the
// process lifetime; because the key is reused across seals, every seal uses
// a fresh random nonce. The secret is never logged or serialized.
type Codec struct {
	secret string

	mu     sync.Mutex
	cached *derivation
}

// NewCodec returns a codec for the given secret.
func NewCodec(secret string) *Codec { return &Codec{secret: secret} }

// Seal encrypts plaintext into a self-describing JSON blob.
func (c *Codec) Seal(plaintext []byte) ([]byte, error) {
	d, err := c.currentDerivation()
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(d.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, d.salt)
	return json.Marshal(blob{
		V:      blobFormatVersion,
		Salt:   d.salt,
		N:      d.n,
		R:      d.r,
		P:      d.p,
		Nonce:  nonce,
		Cipher: ct,
	})
}

// Open decrypts a blob produced by Seal. A wrong secret, truncated
// ciphertext, or any tampering fails with domain.ErrDecryption.
func (c *Codec) Open(raw []byte) ([]byte, error) {
	var bl blob
	if err := json.Unmarshal(raw, &bl); err != nil {
		return nil, fmt.Errorf("%w: malformed blob", domain.ErrDecryption)
	}
	if bl.V > blobFormatVersion {
		return nil, fmt.Errorf("unsupported storage format version %d", bl.V)
	}
	if len(bl.Salt) != saltBytes || len(bl.Nonce) != chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("%w: malformed blob", domain.ErrDecryption)
	}

	key, err := scrypt.Key([]byte(c.secret), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, bl.Nonce, bl.Cipher, bl.Salt)
	if err != nil {
		return nil, domain.ErrDecryption
	}

	// Cache the full derivation so subsequent seals reuse this salt, key and
	// params together.
	c.mu.Lock()
	c.cached = &derivation{
		salt: append([]byte(nil), bl.Salt...),
		key:  key,
		n:    bl.N, r: bl.R, p: bl.P,
	}
	c.mu.Unlock()

	return pt, nil
}

// currentDerivation returns the cached derivation, deriving a fresh one with
// a random salt and default params when none exists yet.
func (c *Codec) currentDerivation() (*derivation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil {
		return c.cached, nil
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	N, r, p := scryptParamsDefault()
	key, err := scrypt.Key([]byte(c.secret), salt, N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	c.cached = &derivation{salt: salt, key: key, n: N, r: r, p: p}
	return c.cached, nil
}
