package push

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	MessagingScope    = "https://www.googleapis.com/auth/firebase.messaging"
	AssertionLifetime = 3600 * time.Second
)

// SignAssertion builds the RS256 JWT a service account presents to the token
// endpoint. It has no side effects; now fixes iat and exp.
func SignAssertion(sa *ServiceAccount, now time.Time) (string, error) {
	key, err := sa.signingKey()
	if err != nil {
		return "", err
	}

	issuedAt := now.Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   sa.ClientEmail,
		"scope": MessagingScope,
		"aud":   sa.TokenURI,
		"iat":   issuedAt,
		"exp":   issuedAt + int64(AssertionLifetime.Seconds()),
	})
	if sa.PrivateKeyID != "" {
		token.Header["kid"] = sa.PrivateKeyID
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}
