package token

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/egoauth/ego/pkg/config"
	"github.com/egoauth/ego/pkg/errx"
)

// Signer holds the process-wide asymmetric signing key pair. The private
// key never leaves the provider; it is loaded once and read-only afterward.
type Signer interface {
	Key() (*rsa.PrivateKey, error)
	PublicKeyPEM() (string, error)
}

// KeyStore is the file/env backed Signer. Loading happens at construction;
// every later access is served from the cached key.
type KeyStore struct {
	key *rsa.PrivateKey
}

// NewKeyStore wraps an already-parsed private key.
func NewKeyStore(key *rsa.PrivateKey) *KeyStore {
	return &KeyStore{key: key}
}

// NewKeyStoreFromConfig loads the RSA private key from the configured PEM
// string or file path, preferring the inline material.
func NewKeyStoreFromConfig(cfg *config.JWTConfig) (*KeyStore, error) {
	pemData := []byte(cfg.PrivateKeyPEM)

	if len(pemData) == 0 {
		if cfg.PrivateKeyFile == "" {
			return nil, errx.New("no signing key configured", errx.TypeInternal)
		}
		data, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, errx.Wrap(err, "failed to read signing key file", errx.TypeInternal)
		}
		pemData = data
	}

	key, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, err
	}
	return &KeyStore{key: key}, nil
}

// Key returns the cached private key.
func (k *KeyStore) Key() (*rsa.PrivateKey, error) {
	if k.key == nil {
		return nil, errx.New("signing key unavailable", errx.TypeInternal)
	}
	return k.key, nil
}

// PublicKeyPEM exports the verification key for third parties.
func (k *KeyStore) PublicKeyPEM() (string, error) {
	key, err := k.Key()
	if err != nil {
		return "", err
	}

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", errx.Wrap(err, "failed to marshal public key", errx.TypeInternal)
	}

	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

func parsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errx.New("signing key is not valid PEM", errx.TypeInternal)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errx.Wrap(err, "failed to parse signing key", errx.TypeInternal)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errx.New("signing key is not an RSA key", errx.TypeInternal)
	}
	return key, nil
}
