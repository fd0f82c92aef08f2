package token

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Codec encodes and decodes signed session tokens. It is a pure function
// of (claims, key): no state beyond the signer.
type Codec struct {
	signer Signer
}

// NewCodec creates a codec over the given signer.
func NewCodec(signer Signer) *Codec {
	return &Codec{signer: signer}
}

// Encode signs the claims with RS256 and returns the compact token string.
func (c *Codec) Encode(claims *Claims) (string, error) {
	key, err := c.signer.Key()
	if err != nil {
		return "", ErrRegistry.NewWithCause(CodeGenerationFailed, err)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", ErrRegistry.NewWithCause(CodeGenerationFailed, err)
	}
	return signed, nil
}

// Decode verifies signature, format and expiry and returns the claims.
// There is no partial-validity state: a token is either fully valid or
// rejected with a malformed or expired kind.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	key, err := c.signer.Key()
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeGenerationFailed, err)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return &key.PublicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrRegistry.NewWithCause(CodeExpired, err).WithDetail("token_md5", Digest(tokenString))
		}
		return nil, ErrRegistry.NewWithCause(CodeMalformed, err).WithDetail("token_md5", Digest(tokenString))
	}

	if !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrRegistry.New(CodeMalformed).WithDetail("token_md5", Digest(tokenString))
	}
	return claims, nil
}

// Digest returns the md5 hex of a token string. Logs and error details
// carry this digest, never the raw token.
func Digest(tokenString string) string {
	sum := md5.Sum([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}
