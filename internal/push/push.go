// Package push delivers command payloads to device endpoints through
// FCM's HTTP v1 API. Authentication is the service-account credential
// exchange: a signed RS256 assertion traded at the OAuth2 token endpoint
// for a bearer token valid for one hour. Tokens are re-acquired per send
// rather than cached; a stale-credential bug costs more than the round
// trip.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnregistered reports that the provider considers the endpoint token
// permanently invalid. Callers evict the token; all other send failures
// are transient.
var ErrUnregistered = errors.New("push: endpoint no longer registered")

const (
	oauthTokenURL = "https://oauth2.googleapis.com/token"
	fcmScope      = "https://www.googleapis.com/auth/firebase.messaging"
	assertionTTL  = time.Hour
)

// Sender sends one payload to one endpoint token.
type Sender interface {
	Send(ctx context.Context, token string, payload map[string]string) error
}

// Credentials is the service-account identity used to sign assertions.
type Credentials struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"` // PEM, PKCS#8
	ProjectID   string `json:"project_id"`
}

// LoadCredentials reads a service-account JSON file.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials: %w", err)
	}
	if c.ClientEmail == "" || c.PrivateKey == "" || c.ProjectID == "" {
		return Credentials{}, fmt.Errorf("credentials missing client_email, private_key or project_id")
	}
	return c, nil
}

// Client is the FCM HTTP v1 sender.
type Client struct {
	creds Credentials
	http  *http.Client

	// Overridable in tests.
	tokenURL string
	sendURL  string
}

func NewClient(creds Credentials) *Client {
	return &Client{
		creds:    creds,
		http:     &http.Client{Timeout: 30 * time.Second},
		tokenURL: oauthTokenURL,
		sendURL:  fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", creds.ProjectID),
	}
}

// assertion builds the signed JWT presented at the token endpoint.
func (c *Client) assertion(now time.Time) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(c.creds.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	claims := jwt.MapClaims{
		"iss":   c.creds.ClientEmail,
		"scope": fcmScope,
		"aud":   c.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}

// AccessToken exchanges a signed assertion for a bearer token.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	assertion, err := c.assertion(time.Now())
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange: status %d: %s", resp.StatusCode, body)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("token exchange: parse response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token exchange: empty access_token")
	}
	return out.AccessToken, nil
}

// fcmError mirrors the relevant slice of an FCM v1 error response.
type fcmError struct {
	Error struct {
		Status  string `json:"status"`
		Details []struct {
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// Send delivers one data message to one endpoint token.
func (c *Client) Send(ctx context.Context, token string, payload map[string]string) error {
	accessToken, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	msg := map[string]any{
		"message": map[string]any{
			"token":   token,
			"data":    payload,
			"android": map[string]any{"priority": "HIGH"},
		},
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var fe fcmError
	if json.Unmarshal(respBody, &fe) == nil {
		for _, d := range fe.Error.Details {
			if d.ErrorCode == "UNREGISTERED" {
				return ErrUnregistered
			}
		}
	}
	return fmt.Errorf("fcm send: status %d: %s", resp.StatusCode, respBody)
}
