package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"photohunter/models"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// OAuthProvider runs the authorization code flow against an identity
// provider.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (models.GoogleProfile, models.GoogleTokens, error)
}

type GoogleOAuth struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades code for tokens and fetches the profile they grant
// access to.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (models.GoogleProfile, models.GoogleTokens, error) {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return models.GoogleProfile{}, models.GoogleTokens{}, fmt.Errorf("while exchanging authorization code: %w", err)
	}
	tokens := models.GoogleTokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return models.GoogleProfile{}, tokens, err
	}
	resp, err := g.config.Client(ctx, tok).Do(req)
	if err != nil {
		return models.GoogleProfile{}, tokens, fmt.Errorf("while fetching userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.GoogleProfile{}, tokens, fmt.Errorf("userinfo answered %s", resp.Status)
	}

	var profile models.GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return models.GoogleProfile{}, tokens, fmt.Errorf("while decoding userinfo: %w", err)
	}
	if profile.Email == "" {
		return models.GoogleProfile{}, tokens, fmt.Errorf("userinfo carries no email")
	}
	return profile, tokens, nil
}
