package service

import (
	"fmt"

	"github.com/click2call/relay-server-go/internal/util"
)

// TokenCipher seals push tokens at rest. With a nil sealer tokens are stored
// as given. Open passes unsealed values through so rows written before a key
// was configured keep working.
type TokenCipher struct {
	sealer *util.Sealer
}

func NewTokenCipher(sealer *util.Sealer) *TokenCipher {
	return &TokenCipher{sealer: sealer}
}

func (c *TokenCipher) Enabled() bool {
	return c != nil && c.sealer != nil
}

func (c *TokenCipher) Seal(token string) (string, error) {
	if !c.Enabled() {
		return token, nil
	}
	sealed, err := c.sealer.Seal(token)
	if err != nil {
		return "", fmt.Errorf("seal push token: %w", err)
	}
	return sealed, nil
}

func (c *TokenCipher) Open(stored string) (string, error) {
	if !util.IsSealed(stored) {
		return stored, nil
	}
	if !c.Enabled() {
		return "", fmt.Errorf("push token is sealed but no encryption key is configured")
	}
	token, err := c.sealer.Open(stored)
	if err != nil {
		return "", fmt.Errorf("open push token: %w", err)
	}
	return token, nil
}
