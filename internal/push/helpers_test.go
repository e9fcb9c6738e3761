package push

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	testKeyErr  error
)

func testPrivateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		testKey, testKeyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, testKeyErr)
	return testKey
}

func testServiceAccountJSON(t *testing.T, tokenURI string) []byte {
	t.Helper()

	der, err := x509.MarshalPKCS8PrivateKey(testPrivateKey(t))
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	data, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "c2c-test",
		"private_key_id": "key-1",
		"private_key":    string(keyPEM),
		"client_email":   "relay@c2c-test.iam.gserviceaccount.com",
		"token_uri":      tokenURI,
	})
	require.NoError(t, err)
	return data
}

func testServiceAccount(t *testing.T, tokenURI string) *ServiceAccount {
	t.Helper()
	sa, err := ParseServiceAccount(testServiceAccountJSON(t, tokenURI))
	require.NoError(t, err)
	return sa
}
