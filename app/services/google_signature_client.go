package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/clearsign-io/clearsign/models"
)

// SignatureDeployer pushes rendered signatures to the mail provider and reads
// back what is currently deployed
type SignatureDeployer interface {
	SetSignature(ctx context.Context, org *models.Organization, userEmail, signatureHTML string) error
	FetchSignature(ctx context.Context, org *models.Organization, userEmail string) (string, error)
}

// TokenSource supplies a bearer token impersonating the given mailbox.
// Implementations own credential storage and refresh; callers treat tokens
// as opaque and short-lived.
type TokenSource interface {
	Token(ctx context.Context, org *models.Organization, userEmail string) (string, error)
}

const defaultGmailBaseURL = "https://gmail.googleapis.com"

// GoogleSignatureClient deploys signatures through the Gmail sendAs settings
// endpoint
type GoogleSignatureClient struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
}

// NewGoogleSignatureClient creates a Gmail-backed signature deployer
func NewGoogleSignatureClient(tokens TokenSource) *GoogleSignatureClient {
	return &GoogleSignatureClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		baseURL:    defaultGmailBaseURL,
	}
}

// NewGoogleSignatureClientWithBaseURL creates a deployer against a custom
// endpoint, used by integration tests
func NewGoogleSignatureClientWithBaseURL(tokens TokenSource, baseURL string) *GoogleSignatureClient {
	c := NewGoogleSignatureClient(tokens)
	c.baseURL = baseURL
	return c
}

type sendAsSettings struct {
	Signature string `json:"signature"`
}

// SetSignature deploys the rendered HTML as the user's default send-as signature
func (c *GoogleSignatureClient) SetSignature(ctx context.Context, org *models.Organization, userEmail, signatureHTML string) error {
	token, err := c.tokens.Token(ctx, org, userEmail)
	if err != nil {
		return fmt.Errorf("acquire token for %s: %w", userEmail, err)
	}

	body, err := json.Marshal(sendAsSettings{Signature: signatureHTML})
	if err != nil {
		return fmt.Errorf("encode sendAs settings: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.sendAsURL(userEmail), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sendAs request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deploy signature for %s: %w", userEmail, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deploy signature for %s: %s", userEmail, responseError(resp))
	}
	return nil
}

// FetchSignature reads the signature currently deployed on the user's default
// send-as address
func (c *GoogleSignatureClient) FetchSignature(ctx context.Context, org *models.Organization, userEmail string) (string, error) {
	token, err := c.tokens.Token(ctx, org, userEmail)
	if err != nil {
		return "", fmt.Errorf("acquire token for %s: %w", userEmail, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sendAsURL(userEmail), nil)
	if err != nil {
		return "", fmt.Errorf("build sendAs request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch signature for %s: %w", userEmail, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch signature for %s: %s", userEmail, responseError(resp))
	}

	var settings sendAsSettings
	if err := json.NewDecoder(resp.Body).Decode(&settings); err != nil {
		return "", fmt.Errorf("decode sendAs settings for %s: %w", userEmail, err)
	}
	return settings.Signature, nil
}

func (c *GoogleSignatureClient) sendAsURL(userEmail string) string {
	escaped := url.PathEscape(userEmail)
	return fmt.Sprintf("%s/gmail/v1/users/%s/settings/sendAs/%s", c.baseURL, escaped, escaped)
}

// responseError summarizes a non-2xx response without dumping whole payloads
// into sync_error columns
func responseError(resp *http.Response) string {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(snippet) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, string(snippet))
}
