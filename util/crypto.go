package util

import (
	"crypto/ed25519"
	"encoding/base64"
	src "math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/scrypt"
)

var (
	scryptN   = 32768 // N = CPU/memory cost parameter (suitable as of 2017)
	scryptR   = 8     // r and p must satisfy r * p < 2^30
	scryptP   = 1
	scryptLen = 32 // 32 bytes long
)

// ScryptEmail derives a deterministic digest of an email address, used as the
// document ID for wallet and verification records.
func ScryptEmail(email string) (string, error) {
	dk, err := scrypt.Key([]byte(email), []byte(email), scryptN, scryptR, scryptP, scryptLen)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(dk), nil
}

// GenerateWalletKeypair generates an ed25519 signing keypair. The secret is the
// conventional 64 byte wallet import layout: seed (32 bytes) followed by the
// public key (32 bytes), which is exactly Go's ed25519.PrivateKey.
//
// An entropy source failure is fatal; the process cannot safely continue
// minting credentials without secure randomness.
func GenerateWalletKeypair() (publicKey []byte, secretKey []byte) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic("entropy source failure: " + err.Error())
	}
	return pub, priv
}

// EncodeKey encodes raw key bytes to base58 (bitcoin alphabet, no checksum).
func EncodeKey(raw []byte) string {
	return base58.Encode(raw)
}

// DecodeKey decodes a base58 string back to raw key bytes.
func DecodeKey(encoded string) ([]byte, error) {
	return base58.Decode(encoded)
}

// KeyByteArray renders key material as a comma joined decimal byte array,
// e.g. [12,0,255,...]. Wallet applications accept this form for raw key
// import, so the disclosure email carries it next to the base58 encoding.
func KeyByteArray(raw []byte) string {
	parts := make([]string, len(raw))
	for i, b := range raw {
		parts[i] = strconv.Itoa(int(b))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// IsWalletPublicKey checks a base58 string decodes to an ed25519 public key.
func IsWalletPublicKey(b58Key string) bool {
	decoded, err := base58.Decode(b58Key)
	if err != nil {
		return false
	}
	return len(decoded) == ed25519.PublicKeySize
}

const handleSuffixBytes = "abcdefghijklmnopqrstuvwxyz0123456789"
const (
	suffixIdxBits = 6                    // 6 bits to represent a letter index
	suffixIdxMask = 1<<suffixIdxBits - 1 // All 1-bits, as many as suffixIdxBits
	suffixIdxMax  = 63 / suffixIdxBits   // # of letter indices fitting in 63 bits
)

var suffixRand = src.New(src.NewSource(time.Now().UnixNano()))

// GenerateHandleSuffix returns a random lowercase alphanumeric string of
// length n, used to perturb colliding alias handles. Not security sensitive.
// method based on https://stackoverflow.com/questions/22892120/how-to-generate-a-random-string-of-a-fixed-length-in-go
func GenerateHandleSuffix(n int) string {
	b := make([]byte, n)
	for i, cache, remain := n-1, suffixRand.Int63(), suffixIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = suffixRand.Int63(), suffixIdxMax
		}
		if idx := int(cache & suffixIdxMask); idx < len(handleSuffixBytes) {
			b[i] = handleSuffixBytes[idx]
			i--
		}
		cache >>= suffixIdxBits
		remain--
	}
	return string(b)
}

// GetTimestamp returns the current time in epoch milliseconds
func GetTimestamp() int64 {
	return time.Now().UTC().UnixMilli()
}
