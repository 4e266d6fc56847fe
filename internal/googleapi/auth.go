// Package googleapi provides the Gmail and Calendar clients the onboarding
// pipeline uses, backed by a user OAuth token cached on disk. The token is
// created once via the browserless auth flow and refreshed automatically
// afterwards.
package googleapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes cover sending mail and managing calendar events. Changing them
// invalidates a cached token.json.
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/calendar",
}

// Authenticator loads OAuth client credentials and caches the user token.
type Authenticator struct {
	CredentialsPath string
	TokenPath       string
}

// NewAuthenticator builds an Authenticator over the given credential files.
func NewAuthenticator(credentialsPath, tokenPath string) *Authenticator {
	return &Authenticator{CredentialsPath: credentialsPath, TokenPath: tokenPath}
}

func (a *Authenticator) oauthConfig() (*oauth2.Config, error) {
	raw, err := os.ReadFile(a.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("googleapi: read credentials %s: %w", a.CredentialsPath, err)
	}
	cfg, err := google.ConfigFromJSON(raw, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("googleapi: parse credentials: %w", err)
	}
	return cfg, nil
}

// HasToken reports whether a cached token file exists.
func (a *Authenticator) HasToken() bool {
	_, err := os.Stat(a.TokenPath)
	return err == nil
}

// Client returns an HTTP client that attaches and refreshes the cached
// token. It fails when no token has been authorized yet.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	cfg, err := a.oauthConfig()
	if err != nil {
		return nil, err
	}
	tok, err := a.readToken()
	if err != nil {
		return nil, fmt.Errorf("googleapi: no cached token, run `onboardia auth` first: %w", err)
	}
	return cfg.Client(ctx, tok), nil
}

// AuthURL returns the consent URL for the one-time authorization flow.
func (a *Authenticator) AuthURL() (string, error) {
	cfg, err := a.oauthConfig()
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline), nil
}

// Exchange trades the pasted authorization code for a token and caches it.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	cfg, err := a.oauthConfig()
	if err != nil {
		return err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("googleapi: exchange auth code: %w", err)
	}
	return a.writeToken(tok)
}

func (a *Authenticator) readToken() (*oauth2.Token, error) {
	f, err := os.Open(a.TokenPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("googleapi: parse token %s: %w", a.TokenPath, err)
	}
	return tok, nil
}

func (a *Authenticator) writeToken(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(a.TokenPath), 0o755); err != nil {
		return fmt.Errorf("googleapi: ensure token dir: %w", err)
	}
	f, err := os.OpenFile(a.TokenPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("googleapi: write token %s: %w", a.TokenPath, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
