package social

import "codeberg.org/cklabs/authserver/accounts/users"

// SocialAuthRequest carries the provider handshake result: either an
// authorization code to exchange or an access token obtained by the
// client directly.
type SocialAuthRequest struct {
	Code        string `json:"code"`
	AccessToken string `json:"access_token"`
	State       string `json:"state"`
}

// AuthResponse returned after successful social sign-in
type AuthResponse struct {
	User  *users.User `json:"user"`
	Token string      `json:"token"`
}
