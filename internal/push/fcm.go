package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultFCMBaseURL = "https://fcm.googleapis.com"
	PriorityHigh      = "high"
	maxErrorBodyBytes = 64 << 10
)

// Message is an FCM HTTP v1 message. It has no notification block, so every
// message is data-only and always reaches the app's message handler.
type Message struct {
	Token   string            `json:"token"`
	Data    map[string]string `json:"data"`
	Android *AndroidConfig    `json:"android,omitempty"`
}

type AndroidConfig struct {
	Priority string `json:"priority"`
}

type sendRequest struct {
	Message Message `json:"message"`
}

type sendResponse struct {
	Name string `json:"name"`
}

type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// DeliveryError is a rejection by the push transport. Message is the
// transport's own explanation.
type DeliveryError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("fcm send failed with status %d: %s", e.StatusCode, e.Message)
}

// Client sends messages through FCM HTTP v1. Each Send signs a fresh
// assertion and exchanges it for an access token.
type Client struct {
	account *ServiceAccount
	tokens  *TokenExchanger
	http    *http.Client
	baseURL string
	now     func() time.Time
}

func NewClient(account *ServiceAccount, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultFCMBaseURL
	}
	httpClient := &http.Client{Timeout: timeout}
	return &Client{
		account: account,
		tokens:  NewTokenExchanger(httpClient, account.TokenURI),
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (c *Client) sendURL() string {
	return fmt.Sprintf("%s/v1/projects/%s/messages:send", c.baseURL, c.account.ProjectID)
}

// Send makes exactly one dispatch attempt.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	assertion, err := SignAssertion(c.account, c.now())
	if err != nil {
		return "", &AuthError{Err: err}
	}

	accessToken, err := c.tokens.Exchange(ctx, assertion)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(sendRequest{Message: msg})
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	log.Debug().Str("url", c.sendURL()).Msg("sending fcm message")

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("fcm send error")
		return "", fmt.Errorf("fcm request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read fcm response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		deliveryErr := parseDeliveryError(resp.StatusCode, respBody)
		log.Error().
			Int("status", resp.StatusCode).
			Str("fcmStatus", deliveryErr.Status).
			Str("reason", deliveryErr.Message).
			Dur("elapsed", elapsed).
			Msg("fcm send rejected")
		return "", deliveryErr
	}

	var parsed sendResponse
	_ = json.Unmarshal(respBody, &parsed)

	log.Info().
		Str("messageName", parsed.Name).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("fcm message accepted")

	return parsed.Name, nil
}

func parseDeliveryError(statusCode int, body []byte) *DeliveryError {
	deliveryErr := &DeliveryError{StatusCode: statusCode}

	var parsed fcmErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		deliveryErr.Message = parsed.Error.Message
		deliveryErr.Status = parsed.Error.Status
		return deliveryErr
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		deliveryErr.Message = text
	} else {
		deliveryErr.Message = http.StatusText(statusCode)
	}
	return deliveryErr
}
