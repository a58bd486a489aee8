package security

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
)

var (
	_ core.SignatureVerifier = (*RSAVerifier)(nil)
	_ core.SignatureVerifier = LenientVerifier{}
)

// NewVerifier loads the RSA key at keyFile, or returns the lenient verifier when
// keyFile is empty.
func NewVerifier(keyFile string) (core.SignatureVerifier, error) {
	if keyFile == "" {
		return LenientVerifier{}, nil
	}
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return ParseRSAVerifier(raw)
}

// LenientVerifier accepts any non-empty signature. It is used when no public
// key is configured.
type LenientVerifier struct{}

func (LenientVerifier) Verify(binaryRef, signature string) bool {
	return binaryRef != "" && strings.TrimSpace(signature) != ""
}

// RSAVerifier checks RSA PKCS#1 v1.5 signatures over the SHA-256 digest of the
// firmware reference.
type RSAVerifier struct {
	key *rsa.PublicKey
}

// ParseRSAVerifier accepts a PEM encoded PKIX or PKCS#1 public key.
func ParseRSAVerifier(pemBytes []byte) (*RSAVerifier, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("public key is not PEM encoded")
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS#1 public key: %w", err)
		}
		return &RSAVerifier{key: key}, nil
	default:
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is %T, not RSA", parsed)
		}
		return &RSAVerifier{key: key}, nil
	}
}

// Verify accepts a base64 or hex encoded signature.
func (v *RSAVerifier) Verify(binaryRef, signature string) bool {
	sig, ok := decodeSignature(signature)
	if !ok || binaryRef == "" {
		return false
	}
	digest := sha256.Sum256([]byte(binaryRef))
	return rsa.VerifyPKCS1v15(v.key, crypto.SHA256, digest[:], sig) == nil
}

func decodeSignature(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if b, err := hex.DecodeString(s); err == nil {
		return b, true
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, true
	}
	return nil, false
}
