package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/waste3d/coursemarket-api/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// SessionVerifier проверяет JWT сессии, выданный провайдером идентификации,
// и возвращает id юзера из sub. Поддерживает HS256 (общий секрет) и RS256 (публичный ключ).
type SessionVerifier struct {
	secret    []byte
	publicKey *rsa.PublicKey
}

func NewSessionVerifier(secret, publicKeyPEM string) (*SessionVerifier, error) {
	v := &SessionVerifier{}
	if publicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("session public key: %w", err)
		}
		v.publicKey = key
	}
	if secret != "" {
		v.secret = []byte(secret)
	}
	if v.publicKey == nil && v.secret == nil {
		return nil, errors.New("session verifier needs a secret or a public key")
	}
	return v, nil
}

func (v *SessionVerifier) Verify(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA:
			if v.publicKey != nil {
				return v.publicKey, nil
			}
		case *jwt.SigningMethodHMAC:
			if v.secret != nil {
				return v.secret, nil
			}
		}
		return nil, errors.New("unexpected signing method")
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrAuthentication)
	}
	return sub, nil
}
