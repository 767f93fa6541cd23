package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/danielolaszy/prism/internal/config"
)

// Atlassian cloud endpoints. Variables so tests can point them at a fake.
var (
	authURL                = "https://auth.atlassian.com/authorize"
	tokenURL               = "https://auth.atlassian.com/oauth/token"
	accessibleResourcesURL = "https://api.atlassian.com/oauth/token/accessible-resources"
	cloudAPIBase           = "https://api.atlassian.com/ex/jira/"
)

// Site is a Jira cloud site the token grants access to.
type Site struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	URL       string   `json:"url"`
	Scopes    []string `json:"scopes"`
	AvatarURL string   `json:"avatarUrl"`
}

// OAuthConfig returns the oauth2 configuration for the Atlassian endpoints.
func OAuthConfig(cfg config.OAuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL returns the consent-screen URL for state.
func AuthCodeURL(oc *oauth2.Config, state string) string {
	return oc.AuthCodeURL(state,
		oauth2.SetAuthURLParam("audience", "api.atlassian.com"),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// AccessibleResources lists the cloud sites token can reach.
func AccessibleResources(ctx context.Context, token *oauth2.Token) ([]Site, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, accessibleResourcesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build accessible-resources request: %w", err)
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &Error{Op: "accessible_resources", kind: ErrTransient, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
		return nil, statusError("accessible_resources", resp.StatusCode, string(detail))
	}

	var sites []Site
	if err := json.NewDecoder(resp.Body).Decode(&sites); err != nil {
		return nil, fmt.Errorf("failed to decode accessible resources: %w", err)
	}
	return sites, nil
}
