package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"codeberg.org/cklabs/authserver/accounts/passwordreset"
	"codeberg.org/cklabs/authserver/accounts/tokens"
	"codeberg.org/cklabs/authserver/accounts/users"
	"codeberg.org/cklabs/authserver/internal/config"
	"codeberg.org/cklabs/authserver/internal/credentials"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// countingMailer records sends instead of delivering.
type countingMailer struct {
	sent atomic.Int32
}

func (m *countingMailer) SendPasswordReset(_ context.Context, _, _ string) error {
	m.sent.Add(1)
	return nil
}

type testEnv struct {
	router    *gin.Engine
	cfg       *config.Config
	userStore *users.MemoryStore
	tokens    tokens.Store
	mail      *countingMailer
	resets    *passwordreset.MemoryStore
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Environment:      "test",
		LoginField:       config.LoginFieldEmail,
		RegisterFields:   []string{"username", "email"},
		UsernameStrategy: "counter",
		BcryptCost:       4,
	}
	if mutate != nil {
		mutate(cfg)
	}

	userStore := users.NewMemoryStore()
	tokenStore := tokens.NewMemoryStore()
	resetStore := passwordreset.NewMemoryStore()
	mail := &countingMailer{}
	resetService := passwordreset.NewService(userStore, resetStore, mail, nil, "http://localhost/reset")

	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), cfg, userStore, tokenStore, resetService, nil)

	return &testEnv{
		router:    router,
		cfg:       cfg,
		userStore: userStore,
		tokens:    tokenStore,
		mail:      mail,
		resets:    resetStore,
	}
}

func (e *testEnv) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	return rec
}

func (e *testEnv) register(t *testing.T, body string) *httptest.ResponseRecorder {
	return e.post(t, "/register", body)
}

func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string][]string {
	t.Helper()

	var fields map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))

	return fields
}

func TestRegisterCreatesUserAndToken(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.User)

	assert.Equal(t, "kim", resp.User.Username)
	assert.Equal(t, "kim@example.com", resp.User.Email)
	assert.Len(t, resp.Token, 40)

	stored, err := env.tokens.FindByKey(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, stored.UserID)
}

func TestRegisterNeverEchoesPasswordHash(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegisterMissingFields(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.register(t, `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	fields := fieldErrors(t, rec)
	assert.Equal(t, []string{"This field is required."}, fields["username"])
	assert.Equal(t, []string{"This field is required."}, fields["email"])
	assert.Equal(t, []string{"This field is required."}, fields["password"])
}

func TestRegisterInvalidEmail(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.register(t, `{"username":"kim","email":"not-an-email","password":"hunter22"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	fields := fieldErrors(t, rec)
	assert.Equal(t, []string{"Enter a valid email address."}, fields["email"])
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t, nil)

	first := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.register(t, `{"username":"kim","email":"other@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusBadRequest, second.Code)

	fields := fieldErrors(t, second)
	assert.Equal(t, []string{"This username is already in use."}, fields["username"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil)

	first := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.register(t, `{"username":"other","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusBadRequest, second.Code)

	fields := fieldErrors(t, second)
	assert.Equal(t, []string{"This email is already in use."}, fields["email"])
}

func TestRegisterEmailOnlyDeployment(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RegisterFields = []string{"email"}
	})

	rec := env.register(t, `{"email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// no username collected, so one is derived from the email local part
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "kim", resp.User.Username)
}

func TestRegisterEmailOnlySecondRegistration(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RegisterFields = []string{"email"}
	})

	first := env.register(t, `{"email":"a@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.register(t, `{"email":"b@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, second.Code)

	var firstResp, secondResp AuthResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))

	assert.Equal(t, "a", firstResp.User.Username)
	assert.Equal(t, "b", secondResp.User.Username)
}

func TestRegisterEmailOnlyLocalPartCollision(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RegisterFields = []string{"email"}
	})

	first := env.register(t, `{"email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	// same local part at another domain falls through to the allocator's
	// collision suffix
	second := env.register(t, `{"email":"kim@example.org","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, second.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "kim-2", resp.User.Username)
}

func TestRegisterUsernameOnlyDeployment(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.LoginField = config.LoginFieldUsername
		cfg.RegisterFields = []string{"username"}
	})

	first := env.register(t, `{"username":"kim","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	// empty uncollected emails must not collide with each other
	second := env.register(t, `{"username":"lee","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, second.Code)

	login := env.post(t, "/login", `{"username":"lee","password":"hunter22"}`)
	assert.Equal(t, http.StatusOK, login.Code)
}

func TestLoginWithEmail(t *testing.T) {
	env := newTestEnv(t, nil)

	created := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, created.Code)

	rec := env.post(t, "/login", `{"email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "kim", resp.User.Username)
	assert.Len(t, resp.Token, 40)
}

func TestLoginWithUsernameWhenConfigured(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.LoginField = config.LoginFieldUsername
	})

	created := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, created.Code)

	rec := env.post(t, "/login", `{"username":"kim","password":"hunter22"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t, nil)

	created := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, created.Code)

	rec := env.post(t, "/login", `{"email":"kim@example.com","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong credentials.")
}

func TestLoginUnknownIdentifierMatchesWrongPasswordBody(t *testing.T) {
	env := newTestEnv(t, nil)

	created := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, created.Code)

	wrongPassword := env.post(t, "/login", `{"email":"kim@example.com","password":"wrong"}`)
	unknownEmail := env.post(t, "/login", `{"email":"nobody@example.com","password":"hunter22"}`)

	assert.Equal(t, wrongPassword.Code, unknownEmail.Code)
	assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestLoginSocialOnlyAccountHasNoPassword(t *testing.T) {
	env := newTestEnv(t, nil)

	// created through social sign-in: no password hash at all
	_, err := env.userStore.CreateUser(context.Background(), users.CreateUserParams{
		Username: "kim",
		Email:    "kim@example.com",
	})
	require.NoError(t, err)

	rec := env.post(t, "/login", `{"email":"kim@example.com","password":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.post(t, "/login", `{"email":"kim@example.com","password":"anything"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordResetSendsForKnownEmail(t *testing.T) {
	env := newTestEnv(t, nil)

	created := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, created.Code)

	rec := env.post(t, "/password-reset", `{"email":"kim@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), env.mail.sent.Load())
}

func TestPasswordResetSilentForUnknownEmail(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.post(t, "/password-reset", `{"email":"nobody@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(0), env.mail.sent.Load())
}

func TestPasswordResetConfirmRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)

	created := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, created.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	reset, err := env.resets.Create(context.Background(), resp.User.ID)
	require.NoError(t, err)

	rec := env.post(t, "/password-reset/confirm", `{"token":"`+reset.Token+`","password":"newpass99"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	old := env.post(t, "/login", `{"email":"kim@example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusUnauthorized, old.Code)

	fresh := env.post(t, "/login", `{"email":"kim@example.com","password":"newpass99"}`)
	assert.Equal(t, http.StatusOK, fresh.Code)

	updated, err := env.userStore.FindByEmail(context.Background(), "kim@example.com")
	require.NoError(t, err)
	assert.True(t, credentials.VerifyPassword(updated.PasswordHash, "newpass99"))
}

func TestPasswordResetConfirmRejectsBogusToken(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.post(t, "/password-reset/confirm", `{"token":"bogus","password":"newpass99"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeReturnsAuthenticatedUser(t *testing.T) {
	env := newTestEnv(t, nil)

	created := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, created.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kim@example.com")
}

func TestMeAcceptsQueryParamToken(t *testing.T) {
	env := newTestEnv(t, nil)

	created := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, created.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me?auth_token="+resp.Token, nil)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMeRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t, nil)

	created := env.register(t, `{"username":"kim","email":"kim@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, created.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
