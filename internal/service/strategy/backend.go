package strategy

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Backend resolves the chat-completion endpoint and the auth headers for one
// remote inference provider. Headers is called per attempt so short-lived
// credentials are refreshed on retry.
type Backend interface {
	Endpoint() string
	Headers(ctx context.Context) (map[string]string, error)
}

// BearerBackend authenticates with a static API key against an
// OpenAI-compatible provider.
type BearerBackend struct {
	BaseURL string
	APIKey  string
}

func (b *BearerBackend) Endpoint() string {
	return b.BaseURL + "/v1/chat/completions"
}

func (b *BearerBackend) Headers(context.Context) (map[string]string, error) {
	if b.APIKey == "" {
		return nil, fmt.Errorf("bearer backend: api key is empty")
	}
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + b.APIKey,
	}, nil
}

// GoogleBackend authenticates with a short-lived access token from
// application default credentials and targets Vertex AI's OpenAI-compatible
// MaaS endpoint. Regional models use a region-prefixed domain with the region
// in the path; global models use the bare domain with location "global".
type GoogleBackend struct {
	projectID string
	location  string
	domain    string
	tokens    oauth2.TokenSource
}

func NewGoogleBackend(ctx context.Context, projectID, location, domain string) (*GoogleBackend, error) {
	if projectID == "" {
		return nil, fmt.Errorf("google backend: project id is required")
	}
	ts, err := google.DefaultTokenSource(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("google backend: default credentials: %w", err)
	}
	return &GoogleBackend{projectID: projectID, location: location, domain: domain, tokens: ts}, nil
}

func (g *GoogleBackend) Endpoint() string {
	return fmt.Sprintf("https://%s/v1/projects/%s/locations/%s/endpoints/openapi/chat/completions",
		g.domain, g.projectID, g.location)
}

func (g *GoogleBackend) Headers(context.Context) (map[string]string, error) {
	tok, err := g.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("google backend: access token: %w", err)
	}
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + tok.AccessToken,
	}, nil
}
