package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	forms "google.golang.org/api/forms/v1"
)

// TokenStore abstracts how OAuth tokens are persisted between runs. The
// serialization format stays behind this interface.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Persist(*oauth2.Token) error
}

// FileTokenStore keeps the token as JSON on disk.
type FileTokenStore struct {
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &tok, nil
}

func (s *FileTokenStore) Persist(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// GoogleAuth builds authenticated HTTP clients from a stored OAuth token,
// refreshing and re-persisting it when expired. Obtaining the initial token
// (the consent flow) is outside this service's scope.
type GoogleAuth struct {
	config *oauth2.Config
	store  TokenStore
}

func NewGoogleAuth(clientSecretPath string, store TokenStore) (*GoogleAuth, error) {
	secret, err := os.ReadFile(clientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("read client secret: %w", err)
	}
	cfg, err := google.ConfigFromJSON(secret,
		forms.FormsBodyScope,
		forms.FormsResponsesReadonlyScope,
		drive.DriveScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}
	return &GoogleAuth{config: cfg, store: store}, nil
}

// Client returns an HTTP client carrying valid credentials. An expired token
// is refreshed through the config's token source and the refreshed token is
// persisted before use.
func (a *GoogleAuth) Client(ctx context.Context) (*http.Client, error) {
	tok, err := a.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load credentials (run the authorization flow first): %w", err)
	}

	source := a.config.TokenSource(ctx, tok)
	if !tok.Valid() {
		fresh, err := source.Token()
		if err != nil {
			return nil, fmt.Errorf("refresh credentials: %w", err)
		}
		if err := a.store.Persist(fresh); err != nil {
			return nil, fmt.Errorf("persist refreshed credentials: %w", err)
		}
	}

	return oauth2.NewClient(ctx, source), nil
}
