package push

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenURI = "https://oauth2.googleapis.com/token"

// ServiceAccount is the subset of a Google service-account key file needed to
// mint FCM access tokens.
type ServiceAccount struct {
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`

	key *rsa.PrivateKey
}

// ParseServiceAccount decodes a service-account JSON document and its RSA key.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("invalid service account JSON: %w", err)
	}

	var missing []string
	if sa.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if sa.PrivateKey == "" {
		missing = append(missing, "private_key")
	}
	if sa.ClientEmail == "" {
		missing = append(missing, "client_email")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("invalid service account JSON: missing %s", strings.Join(missing, ", "))
	}

	if sa.TokenURI == "" {
		sa.TokenURI = DefaultTokenURI
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account private key: %w", err)
	}
	sa.key = key

	return &sa, nil
}

func (sa *ServiceAccount) signingKey() (*rsa.PrivateKey, error) {
	if sa == nil || sa.key == nil {
		return nil, errors.New("service account has no private key")
	}
	return sa.key, nil
}
