package social

import (
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"net/http"

	"codeberg.org/cklabs/authserver/accounts/tokens"
	"codeberg.org/cklabs/authserver/internal/errors"
	"codeberg.org/cklabs/authserver/internal/logger"
	"codeberg.org/cklabs/authserver/internal/provider"
	"codeberg.org/cklabs/authserver/internal/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const stateSessionName = "oauth_state"

// BeginAuthHandler godoc
// @Summary Start social authentication
// @Description Redirect to the provider's consent screen with a CSRF state nonce
// @Tags social
// @Param provider path string true "OAuth provider" Enums(google, facebook)
// @Success 302 {string} string "Redirect to provider"
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/auth/social/{provider} [get]
func BeginAuthHandler(clients map[provider.Provider]*provider.Client, stateStore *sessions.CookieStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, ok := lookupClient(c, clients)
		if !ok {
			return
		}

		state := randomState()

		session, _ := stateStore.Get(c.Request, stateSessionName) //nolint:errcheck // a stale cookie yields a fresh session
		session.Values["state"] = state

		if err := session.Save(c.Request, c.Writer); err != nil {
			errors.InternalError(c, "failed to persist state", err)
			return
		}

		c.Redirect(http.StatusFound, client.AuthCodeURL(state))
	}
}

// CallbackHandler godoc
// @Summary Complete social authentication
// @Description Exchange a code or access token for a provider identity, reconcile it onto a local user and return a session token. 201 when a user was created, 200 otherwise.
// @Tags social
// @Accept json
// @Produce json
// @Param provider path string true "OAuth provider" Enums(google, facebook)
// @Param request body SocialAuthRequest true "Handshake payload"
// @Success 200 {object} AuthResponse
// @Success 201 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/auth/social/{provider} [post]
func CallbackHandler(
	clients map[provider.Provider]*provider.Client,
	reconciler *reconcile.Reconciler,
	tokenStore tokens.Store,
	stateStore *sessions.CookieStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, ok := lookupClient(c, clients)
		if !ok {
			return
		}

		var req SocialAuthRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.BadRequest(c, "invalid request payload", err)
			return
		}

		if !stateMatches(c, stateStore, req.State) {
			errors.BadRequest(c, "state mismatch", nil)
			return
		}

		profile, err := client.Resolve(c.Request.Context(), req.AccessToken, req.Code)
		if err != nil {
			respondExchangeError(c, err)
			return
		}

		user, created, err := reconciler.Reconcile(c.Request.Context(), client.Provider(), profile)
		if err != nil {
			respondReconcileError(c, err)
			return
		}

		token, err := tokenStore.IssueToken(c.Request.Context(), user.ID)
		if err != nil {
			errors.InternalError(c, "failed to issue token", err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
			logger.Info("user created via social sign-in",
				"provider", client.Provider().String(),
				"user_id", user.ID,
			)
		}

		c.JSON(status, AuthResponse{User: user, Token: token.Key})
	}
}

func lookupClient(c *gin.Context, clients map[provider.Provider]*provider.Client) (*provider.Client, bool) {
	p, err := provider.Parse(c.Param("provider"))
	if err != nil {
		errors.BadRequest(c, "invalid provider", nil)
		return nil, false
	}

	client, ok := clients[p]
	if !ok {
		errors.BadRequest(c, "provider not configured", nil)
		return nil, false
	}

	return client, true
}

// a state echo is only verified when the client sends one; direct
// access-token sign-ins never went through the redirect
func stateMatches(c *gin.Context, stateStore *sessions.CookieStore, state string) bool {
	if state == "" {
		return true
	}

	session, err := stateStore.Get(c.Request, stateSessionName)
	if err != nil {
		return false
	}

	expected, _ := session.Values["state"].(string)

	return expected != "" && expected == state
}

func respondExchangeError(c *gin.Context, err error) {
	switch {
	case stderrors.Is(err, provider.ErrMissingToken):
		errors.BadRequestCode(c, errors.CodeMissingToken, "provide either code or access_token", nil)
	case stderrors.Is(err, provider.ErrBadToken):
		errors.BadRequestCode(c, errors.CodeBadToken, "provider rejected the authorization code", err)
	case stderrors.Is(err, provider.ErrProfileFetchFailed):
		errors.BadRequestCode(c, errors.CodeProfileFetch, "failed to fetch user profile", err)
	default:
		errors.InternalError(c, "authentication failed", err)
	}
}

func respondReconcileError(c *gin.Context, err error) {
	switch {
	case stderrors.Is(err, reconcile.ErrAlreadyRegistered):
		errors.BadRequestCode(c, errors.CodeAlreadyLinked, "User is already registered with this e-mail.", nil)
	case stderrors.Is(err, reconcile.ErrNoEmail):
		errors.BadRequestCode(c, errors.CodeProfileFetch, "provider profile has no email", nil)
	default:
		errors.InternalError(c, "failed to reconcile user", err)
	}
}

func randomState() string {
	buf := make([]byte, 16)
	rand.Read(buf) //nolint:errcheck // crypto/rand.Read never fails

	return hex.EncodeToString(buf)
}
