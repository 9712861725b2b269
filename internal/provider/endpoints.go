package provider

import (
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
)

// Endpoints describes where to reach a provider. Exported so tests can
// point a client at local stand-in servers.
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	Scopes      []string
}

// static per-provider endpoint and mapping tables. Provider differences
// live here, not in per-provider types.
var defaultEndpoints = map[Provider]Endpoints{
	Google: {
		AuthURL:     google.Endpoint.AuthURL,
		TokenURL:    google.Endpoint.TokenURL,
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		Scopes:      []string{"openid", "email", "profile"},
	},
	Facebook: {
		AuthURL:     facebook.Endpoint.AuthURL,
		TokenURL:    facebook.Endpoint.TokenURL,
		UserInfoURL: "https://graph.facebook.com/me?fields=id,email,first_name,last_name,name,picture",
		Scopes:      []string{"email", "public_profile"},
	},
}

var defaultMappings = map[Provider]UserInfoMapping{
	Google: {
		"external_id": "id",
		"email":       "email",
		"first_name":  "given_name",
		"last_name":   "family_name",
		"name":        "name",
		"avatar_url":  "picture",
	},
	Facebook: {
		"external_id": "id",
		"email":       "email",
		"first_name":  "first_name",
		"last_name":   "last_name",
		"name":        "@full_name",
		"avatar_url":  "picture.data.url",
	},
}

// DefaultEndpoints returns the built-in endpoint set for a provider.
func DefaultEndpoints(p Provider) (Endpoints, error) {
	endpoints, ok := defaultEndpoints[p]
	if !ok {
		return Endpoints{}, fmt.Errorf("no endpoints for provider %q", p)
	}

	return endpoints, nil
}

func (e Endpoints) oauth2Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  e.AuthURL,
		TokenURL: e.TokenURL,
	}
}
