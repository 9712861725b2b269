package auth

import (
	stderrors "errors"
	"net/http"
	"slices"
	"strings"

	"codeberg.org/cklabs/authserver/accounts/passwordreset"
	"codeberg.org/cklabs/authserver/accounts/tokens"
	"codeberg.org/cklabs/authserver/accounts/users"
	"codeberg.org/cklabs/authserver/internal/config"
	"codeberg.org/cklabs/authserver/internal/credentials"
	"codeberg.org/cklabs/authserver/internal/errors"
	"codeberg.org/cklabs/authserver/internal/middleware"
	"codeberg.org/cklabs/authserver/internal/reconcile"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	msgFieldRequired  = "This field is required."
	msgUsernameInUse  = "This username is already in use."
	msgEmailInUse     = "This email is already in use."
	msgEmailInvalid   = "Enter a valid email address."
	msgInvalidPayload = "invalid request payload"
)

var validate = validator.New()

// RegisterHandler godoc
// @Summary Register a new account
// @Description Create a user from the configured register fields and return a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration payload"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} errors.FieldErrors
// @Router /api/v1/auth/register [post]
func RegisterHandler(cfg *config.Config, userStore users.Store, tokenStore tokens.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest

		if err := c.ShouldBindJSON(&req); err != nil {
			errors.BadRequest(c, msgInvalidPayload, err)
			return
		}

		fieldErrs := validateRegister(c, cfg, userStore, &req)
		if fieldErrs.HasErrors() {
			errors.Fields(c, fieldErrs)
			return
		}

		hash, err := credentials.HashPassword(req.Password, cfg.BcryptCost)
		if err != nil {
			errors.InternalError(c, "failed to hash password", err)
			return
		}

		user, err := createUser(c, cfg, userStore, &req, hash)
		if err != nil {
			// a conflict here means the pre-checks raced another
			// registration; answer as if the pre-check had caught it
			var conflict *users.ConflictError
			if stderrors.As(err, &conflict) {
				fieldErrs := errors.FieldErrors{}
				if conflict.Field == "email" {
					fieldErrs.Add("email", msgEmailInUse)
				} else {
					fieldErrs.Add("username", msgUsernameInUse)
				}
				errors.Fields(c, fieldErrs)
				return
			}

			errors.InternalError(c, "failed to create user", err)
			return
		}

		token, err := tokenStore.IssueToken(c.Request.Context(), user.ID)
		if err != nil {
			errors.InternalError(c, "failed to issue token", err)
			return
		}

		c.JSON(http.StatusCreated, AuthResponse{User: user, Token: token.Key})
	}
}

// LoginHandler godoc
// @Summary Log in with credentials
// @Description Validate the configured login field + password pair and return the session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.FieldErrors
// @Failure 401 {object} map[string][]string
// @Router /api/v1/auth/login [post]
func LoginHandler(cfg *config.Config, userStore users.Store, tokenStore tokens.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest

		if err := c.ShouldBindJSON(&req); err != nil {
			errors.BadRequest(c, msgInvalidPayload, err)
			return
		}

		identifier := req.Email
		if cfg.LoginField == config.LoginFieldUsername {
			identifier = req.Username
		}

		fieldErrs := errors.FieldErrors{}
		if identifier == "" {
			fieldErrs.Add(cfg.LoginField, msgFieldRequired)
		}
		if req.Password == "" {
			fieldErrs.Add("password", msgFieldRequired)
		}
		if fieldErrs.HasErrors() {
			errors.Fields(c, fieldErrs)
			return
		}

		user, err := findByLoginField(c, cfg, userStore, identifier)
		if err != nil {
			if stderrors.Is(err, users.ErrNotFound) {
				// same response as a wrong password: the body must not
				// reveal whether the identifier exists
				errors.WrongCredentials(c)
				return
			}
			errors.InternalError(c, "failed to look up user", err)
			return
		}

		if !credentials.VerifyPassword(user.PasswordHash, req.Password) {
			errors.WrongCredentials(c)
			return
		}

		token, err := tokenStore.IssueToken(c.Request.Context(), user.ID)
		if err != nil {
			errors.InternalError(c, "failed to issue token", err)
			return
		}

		c.JSON(http.StatusOK, AuthResponse{User: user, Token: token.Key})
	}
}

// PasswordResetHandler godoc
// @Summary Request a password reset
// @Description Always answers 200; sends a reset link only when the email belongs to an account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body PasswordResetRequest true "Reset payload"
// @Success 200 {object} map[string]any
// @Failure 400 {object} errors.FieldErrors
// @Router /api/v1/auth/password-reset [post]
func PasswordResetHandler(resetService *passwordreset.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PasswordResetRequest

		if err := c.ShouldBindJSON(&req); err != nil {
			errors.BadRequest(c, msgInvalidPayload, err)
			return
		}

		fieldErrs := errors.FieldErrors{}
		if req.Email == "" {
			fieldErrs.Add("email", msgFieldRequired)
		} else if validate.Var(req.Email, "email") != nil {
			fieldErrs.Add("email", msgEmailInvalid)
		}
		if fieldErrs.HasErrors() {
			errors.Fields(c, fieldErrs)
			return
		}

		if err := resetService.Request(c.Request.Context(), req.Email); err != nil {
			errors.InternalError(c, "failed to process password reset", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{})
	}
}

// PasswordResetConfirmHandler godoc
// @Summary Confirm a password reset
// @Description Exchange a valid reset token for a new password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body PasswordResetConfirmRequest true "Confirm payload"
// @Success 200 {object} map[string]any
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/auth/password-reset/confirm [post]
func PasswordResetConfirmHandler(cfg *config.Config, resetService *passwordreset.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PasswordResetConfirmRequest

		if err := c.ShouldBindJSON(&req); err != nil {
			errors.BadRequest(c, msgInvalidPayload, err)
			return
		}

		fieldErrs := errors.FieldErrors{}
		if req.Token == "" {
			fieldErrs.Add("token", msgFieldRequired)
		}
		if req.Password == "" {
			fieldErrs.Add("password", msgFieldRequired)
		}
		if fieldErrs.HasErrors() {
			errors.Fields(c, fieldErrs)
			return
		}

		hash, err := credentials.HashPassword(req.Password, cfg.BcryptCost)
		if err != nil {
			errors.InternalError(c, "failed to hash password", err)
			return
		}

		if err := resetService.Confirm(c.Request.Context(), req.Token, hash); err != nil {
			if stderrors.Is(err, passwordreset.ErrInvalidToken) {
				errors.BadRequest(c, "invalid or expired reset token", nil)
				return
			}
			errors.InternalError(c, "failed to confirm password reset", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{})
	}
}

// GetCurrentUserHandler godoc
// @Summary Get current user
// @Description Get the authenticated user's profile
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/v1/auth/me [get]
// @Security BearerAuth
func GetCurrentUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUser(c)
		if !ok {
			errors.Unauthorized(c, "")
			return
		}

		c.JSON(http.StatusOK, UserResponse{User: user})
	}
}

// LogoutHandler godoc
// @Summary Logout
// @Description Revoke the presented session token
// @Tags auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/v1/auth/logout [post]
// @Security BearerAuth
func LogoutHandler(tokenStore tokens.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.GetUserID(c)
		if !ok {
			errors.Unauthorized(c, "")
			return
		}

		if err := tokenStore.RevokeToken(c.Request.Context(), userID); err != nil {
			errors.InternalError(c, "failed to revoke token", err)
			return
		}

		c.JSON(http.StatusOK, MessageResponse{Message: "logged out successfully"})
	}
}

// bounded retries for derived usernames racing another registration
const maxCreateAttempts = 3

// createUser inserts the new user. Deployments that don't collect a
// username derive one from the email local part through the same
// allocator social sign-up uses; a derived username losing an insert
// race is re-allocated, never surfaced as a field error.
func createUser(c *gin.Context, cfg *config.Config, userStore users.Store, req *RegisterRequest, hash string) (*users.User, error) {
	ctx := c.Request.Context()
	collectUsername := slices.Contains(cfg.RegisterFields, "username")

	var lastErr error

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		username := req.Username
		if !collectUsername {
			derived, err := reconcile.AllocateUsername(ctx, userStore, cfg.UsernameStrategy, emailLocalPart(req.Email), "")
			if err != nil {
				return nil, err
			}
			username = derived
		}

		user, err := userStore.CreateUser(ctx, users.CreateUserParams{
			Username:     username,
			Email:        req.Email,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			PasswordHash: hash,
		})
		if err == nil {
			return user, nil
		}

		var conflict *users.ConflictError
		if !collectUsername && stderrors.As(err, &conflict) && conflict.Field == "username" {
			lastErr = err
			continue
		}

		return nil, err
	}

	return nil, lastErr
}

func emailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

func validateRegister(c *gin.Context, cfg *config.Config, userStore users.Store, req *RegisterRequest) errors.FieldErrors {
	fieldErrs := errors.FieldErrors{}

	requireUsername := slices.Contains(cfg.RegisterFields, "username")
	requireEmail := slices.Contains(cfg.RegisterFields, "email")

	if requireUsername && req.Username == "" {
		fieldErrs.Add("username", msgFieldRequired)
	}

	if requireEmail {
		if req.Email == "" {
			fieldErrs.Add("email", msgFieldRequired)
		} else if validate.Var(req.Email, "email") != nil {
			fieldErrs.Add("email", msgEmailInvalid)
		}
	}

	if req.Password == "" {
		fieldErrs.Add("password", msgFieldRequired)
	}

	if fieldErrs.HasErrors() {
		return fieldErrs
	}

	ctx := c.Request.Context()

	if requireUsername {
		if _, err := userStore.FindByUsername(ctx, req.Username); err == nil {
			fieldErrs.Add("username", msgUsernameInUse)
		}
	}

	if requireEmail {
		if _, err := userStore.FindByEmail(ctx, req.Email); err == nil {
			fieldErrs.Add("email", msgEmailInUse)
		}
	}

	return fieldErrs
}

func findByLoginField(c *gin.Context, cfg *config.Config, userStore users.Store, identifier string) (*users.User, error) {
	if cfg.LoginField == config.LoginFieldUsername {
		return userStore.FindByUsername(c.Request.Context(), identifier)
	}

	return userStore.FindByEmail(c.Request.Context(), identifier)
}
