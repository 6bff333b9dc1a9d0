package util

import (
	"crypto/ed25519"
	"testing"

	"github.com/tj/assert"
)

func TestScryptEmail(t *testing.T) {
	digest, err := ScryptEmail("someone@example.com")
	assert.NoError(t, err)
	assert.NotEmpty(t, digest)

	again, err := ScryptEmail("someone@example.com")
	assert.NoError(t, err)
	assert.Equal(t, digest, again)

	other, err := ScryptEmail("someoneelse@example.com")
	assert.NoError(t, err)
	assert.NotEqual(t, digest, other)
}

func TestGenerateWalletKeypair(t *testing.T) {
	pub, sec := GenerateWalletKeypair()
	assert.Equal(t, ed25519.PublicKeySize, len(pub))
	assert.Equal(t, ed25519.PrivateKeySize, len(sec))
	// the secret embeds the public key in its trailing 32 bytes
	assert.Equal(t, pub, sec[32:])

	msg := []byte("proof of possession")
	sig := ed25519.Sign(ed25519.PrivateKey(sec), msg)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(pub), msg, sig))
}

func TestEncodeDecodeKey(t *testing.T) {
	pub, _ := GenerateWalletKeypair()
	encoded := EncodeKey(pub)
	assert.NotEmpty(t, encoded)

	decoded, err := DecodeKey(encoded)
	assert.NoError(t, err)
	assert.Equal(t, pub, decoded)

	assert.True(t, IsWalletPublicKey(encoded))
	assert.False(t, IsWalletPublicKey("0OIl not base58"))
	assert.False(t, IsWalletPublicKey("abc"))

	// leading zero bytes must survive the round trip
	leading := append([]byte{0, 0, 0}, pub...)
	decoded, err = DecodeKey(EncodeKey(leading))
	assert.NoError(t, err)
	assert.Equal(t, leading, decoded)
}

func TestKeyByteArray(t *testing.T) {
	assert.Equal(t, "[0,7,255]", KeyByteArray([]byte{0, 7, 255}))
	assert.Equal(t, "[]", KeyByteArray(nil))
}

func TestGenerateHandleSuffix(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		s := GenerateHandleSuffix(2)
		assert.Equal(t, 2, len(s))
		for _, r := range s {
			valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
			assert.True(t, valid)
		}
		seen[s] = true
	}
	assert.True(t, len(seen) > 1)
}
