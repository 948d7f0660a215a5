package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/clearsign-io/clearsign/models"
)

// StaticTokenSource returns a fixed bearer token for every mailbox. Used in
// development and tests; production deployments wire a real OAuth source.
type StaticTokenSource struct {
	AccessToken string
}

// Token returns the configured token
func (s StaticTokenSource) Token(_ context.Context, _ *models.Organization, _ string) (string, error) {
	if s.AccessToken == "" {
		return "", fmt.Errorf("no access token configured")
	}
	return s.AccessToken, nil
}

type credentialsFile struct {
	AccessToken string `json:"access_token"`
}

// NewTokenSourceFromFile loads a static token from a JSON credentials file
func NewTokenSourceFromFile(path string) (TokenSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	var creds credentialsFile
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("credentials file has no access_token")
	}
	return StaticTokenSource{AccessToken: creds.AccessToken}, nil
}
