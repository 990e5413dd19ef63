package crypto_test

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"guildvault/internal/crypto"
	"guildvault/internal/domain"
)

func TestCodec_RoundTrip(t *testing.T) {
	c := crypto.NewCodec("a strong secret")
	plaintext := []byte(`{"applications":{}}`)

	sealed, err := c.Seal(plaintext)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "applications")

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestCodec_SealTwiceDiffers(t *testing.T) {
	c := crypto.NewCodec("a strong secret")

	first, err := c.Seal([]byte("payload"))
	require.NoError(t, err)
	second, err := c.Seal([]byte("payload"))
	require.NoError(t, err)

	// Fresh nonce per seal: identical plaintext must not produce identical blobs.
	require.NotEqual(t, first, second)
}

func TestCodec_WrongSecret(t *testing.T) {
	sealed, err := crypto.NewCodec("correct").Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = crypto.NewCodec("wrong").Open(sealed)
	require.ErrorIs(t, err, domain.ErrDecryption)
}

func TestCodec_TamperedCiphertext(t *testing.T) {
	c := crypto.NewCodec("a strong secret")
	sealed, err := c.Seal([]byte("payload"))
	require.NoError(t, err)

	var bl map[string]any
	require.NoError(t, json.Unmarshal(sealed, &bl))
	bl["cipher"] = "dGFtcGVyZWQ="
	tampered, err := json.Marshal(bl)
	require.NoError(t, err)

	_, err = c.Open(tampered)
	require.ErrorIs(t, err, domain.ErrDecryption)
}

func TestCodec_MalformedBlob(t *testing.T) {
	c := crypto.NewCodec("a strong secret")

	_, err := c.Open([]byte("not json at all"))
	require.ErrorIs(t, err, domain.ErrDecryption)

	_, err = c.Open([]byte(`{"v":1,"salt":"AA==","nonce":"AA==","cipher":"AA=="}`))
	require.ErrorIs(t, err, domain.ErrDecryption)
}

func TestCodec_SealAfterOpenKeepsBlobParams(t *testing.T) {
	const secret = "a strong secret"

	// A valid v1 blob sealed with lighter-than-default scrypt params, as an
	// older deployment could have written it.
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)
	key, err := scrypt.Key([]byte(secret), salt, 1<<14, 8, 1, chacha20poly1305.KeySize)
	require.NoError(t, err)
	aead, err := chacha20poly1305.New(key)
	require.NoError(t, err)
	nonce := make([]byte, aead.NonceSize())
	_, err = rand.Read(nonce)
	require.NoError(t, err)
	sealed, err := json.Marshal(map[string]any{
		"v":        1,
		"salt":     salt,
		"scrypt_N": 1 << 14,
		"scrypt_r": 8,
		"scrypt_p": 1,
		"nonce":    nonce,
		"cipher":   aead.Seal(nil, nonce, []byte("payload"), salt),
	})
	require.NoError(t, err)

	c := crypto.NewCodec(secret)
	opened, err := c.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), opened)

	resealed, err := c.Seal([]byte("payload v2"))
	require.NoError(t, err)

	// The rewritten blob's header must match the key that sealed it: a later
	// process with the same secret has only the header to go on.
	reopened, err := crypto.NewCodec(secret).Open(resealed)
	require.NoError(t, err)
	require.Equal(t, []byte("payload v2"), reopened)
}

func TestCodec_UnsupportedVersion(t *testing.T) {
	c := crypto.NewCodec("a strong secret")
	sealed, err := c.Seal([]byte("payload"))
	require.NoError(t, err)

	var bl map[string]any
	require.NoError(t, json.Unmarshal(sealed, &bl))
	bl["v"] = 99
	future, err := json.Marshal(bl)
	require.NoError(t, err)

	_, err = c.Open(future)
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrDecryption))
}
