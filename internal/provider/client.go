package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"codeberg.org/cklabs/authserver/internal/config"
	"golang.org/x/oauth2"
)

// typed exchange failures; handlers map these onto HTTP statuses
var (
	// neither code nor access_token was supplied; checked before any
	// network call is made
	ErrMissingToken = errors.New("missing code or access token")

	// the provider rejected the authorization code
	ErrBadToken = errors.New("token exchange failed")

	// the user-info endpoint returned a non-success status
	ErrProfileFetchFailed = errors.New("profile fetch failed")
)

const userInfoTimeout = 10 * time.Second

// Client performs the OAuth2 code exchange and user-info fetch for one
// provider. At most two outbound calls per authentication attempt, and
// none when the caller already holds an access token.
type Client struct {
	provider    Provider
	conf        *oauth2.Config
	userInfoURL string
	mapping     UserInfoMapping
	httpClient  *http.Client
}

// NewClient builds a client from the provider's built-in endpoint table
// and the deployment credentials block.
func NewClient(p Provider, creds config.ProviderCredentials) (*Client, error) {
	endpoints, err := DefaultEndpoints(p)
	if err != nil {
		return nil, err
	}

	return NewClientWithEndpoints(p, creds, endpoints), nil
}

// NewClientWithEndpoints builds a client against explicit endpoints,
// used by tests to substitute local servers for the real provider.
func NewClientWithEndpoints(p Provider, creds config.ProviderCredentials, endpoints Endpoints) *Client {
	return &Client{
		provider: p,
		conf: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Endpoint:     endpoints.oauth2Endpoint(),
			Scopes:       endpoints.Scopes,
		},
		userInfoURL: endpoints.UserInfoURL,
		mapping:     defaultMappings[p].merge(creds.UserInfoMapping),
		httpClient:  &http.Client{Timeout: userInfoTimeout},
	}
}

// Provider returns which provider this client talks to.
func (c *Client) Provider() Provider {
	return c.provider
}

// AuthCodeURL returns the provider consent-screen URL for a redirect.
func (c *Client) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// ExchangeCode swaps an authorization code for an access token. The
// provider's structured error body, when present, is surfaced in the
// returned error detail.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.conf.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", fmt.Errorf("%w: %s: %s",
				ErrBadToken, retrieveErr.Response.Status, string(retrieveErr.Body))
		}

		return "", fmt.Errorf("%w: %v", ErrBadToken, err)
	}

	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: provider returned no access token", ErrBadToken)
	}

	return token.AccessToken, nil
}

// FetchProfile queries the user-info endpoint with a bearer header and
// normalizes the payload through the provider's field mapping.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body close

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: %s", ErrProfileFetchFailed, resp.Status, string(body))
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed user info payload: %v", ErrProfileFetchFailed, err)
	}

	profile := c.mapping.apply(raw)

	if profile.ExternalID == "" {
		return nil, fmt.Errorf("%w: user info payload has no external id", ErrProfileFetchFailed)
	}

	return profile, nil
}

// Resolve obtains a normalized profile from either a raw access token
// or an authorization code. Absence of both fails before any network
// call; a supplied access token skips the exchange entirely.
func (c *Client) Resolve(ctx context.Context, accessToken, code string) (*Profile, error) {
	if accessToken == "" && code == "" {
		return nil, ErrMissingToken
	}

	if accessToken == "" {
		exchanged, err := c.ExchangeCode(ctx, code)
		if err != nil {
			return nil, err
		}
		accessToken = exchanged
	}

	return c.FetchProfile(ctx, accessToken)
}
