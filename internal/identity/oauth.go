package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// Provider is an OAuth2 login provider
type Provider struct {
	Name        string
	Label       string
	Config      *oauth2.Config
	UserInfoURL string
	AuthParams  map[string]string
	fetch       func(ctx context.Context, client *http.Client, p *Provider) (Identity, error)
}

// Configured reports whether the provider has client credentials
func (p *Provider) Configured() bool {
	return p != nil && p.Config != nil && p.Config.ClientID != "" && p.Config.ClientSecret != ""
}

// FetchIdentity exchanges nothing; it calls the userinfo endpoint with an
// already obtained token and returns the provider-scoped identity.
func (p *Provider) FetchIdentity(ctx context.Context, token *oauth2.Token) (Identity, error) {
	client := p.Config.Client(ctx, token)
	id, err := p.fetch(ctx, client, p)
	if err != nil {
		return Identity{}, err
	}
	if id.Subject == "" {
		return Identity{}, fmt.Errorf("%s did not return a subject", p.Label)
	}
	id.Subject = p.Name + "|" + id.Subject
	return id, nil
}

// NewGoogleProvider configures Google sign-in
func NewGoogleProvider(clientID, clientSecret string) *Provider {
	return &Provider{
		Name:  "google",
		Label: "Google",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		AuthParams:  map[string]string{"prompt": "select_account"},
		fetch:       fetchGoogle,
	}
}

// NewGitHubProvider configures GitHub sign-in
func NewGitHubProvider(clientID, clientSecret string) *Provider {
	return &Provider{
		Name:  "github",
		Label: "GitHub",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		UserInfoURL: "https://api.github.com/user",
		fetch:       fetchGitHub,
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func fetchGoogle(ctx context.Context, client *http.Client, p *Provider) (Identity, error) {
	var payload struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, client, p.UserInfoURL, &payload); err != nil {
		return Identity{}, fmt.Errorf("failed to fetch Google user info: %w", err)
	}
	return Identity{Subject: payload.ID, Email: payload.Email, Name: payload.Name, AvatarURL: payload.Picture}, nil
}

func fetchGitHub(ctx context.Context, client *http.Client, p *Provider) (Identity, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, p.UserInfoURL, &payload); err != nil {
		return Identity{}, fmt.Errorf("failed to fetch GitHub user info: %w", err)
	}
	if payload.ID == 0 {
		return Identity{}, errors.New("GitHub user info missing id")
	}

	email := payload.Email
	if email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, p.UserInfoURL+"/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}
	}

	name := payload.Name
	if name == "" {
		name = payload.Login
	}
	return Identity{
		Subject:   strconv.FormatInt(payload.ID, 10),
		Email:     email,
		Name:      name,
		AvatarURL: payload.AvatarURL,
	}, nil
}
