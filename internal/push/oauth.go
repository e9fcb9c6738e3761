package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// AuthError means no access token could be obtained for the push transport.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenExchanger trades a signed assertion for a short-lived bearer token.
// Tokens are not cached.
type TokenExchanger struct {
	client   *http.Client
	tokenURI string
}

func NewTokenExchanger(client *http.Client, tokenURI string) *TokenExchanger {
	if tokenURI == "" {
		tokenURI = DefaultTokenURI
	}
	return &TokenExchanger{client: client, tokenURI: tokenURI}
}

func (x *TokenExchanger) Exchange(ctx context.Context, assertion string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", jwtBearerGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.tokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("create token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := x.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("oauth token request error")
		return "", &AuthError{Err: fmt.Errorf("token request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("read token response: %w", err)}
	}

	var parsed tokenResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode != http.StatusOK || parsed.AccessToken == "" {
		reason := parsed.ErrorDescription
		if reason == "" {
			reason = parsed.Error
		}
		if reason == "" {
			reason = "Unknown error"
		}
		log.Error().
			Int("status", resp.StatusCode).
			Str("reason", reason).
			Dur("elapsed", elapsed).
			Msg("oauth token exchange failed")
		return "", &AuthError{Err: fmt.Errorf("failed to get access token: %s", reason)}
	}

	log.Debug().
		Int("expiresIn", parsed.ExpiresIn).
		Dur("elapsed", elapsed).
		Msg("oauth access token obtained")

	return parsed.AccessToken, nil
}
