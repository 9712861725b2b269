package reconcile

import (
	"context"
	"sync"
	"testing"

	"codeberg.org/cklabs/authserver/accounts/users"
	"codeberg.org/cklabs/authserver/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() *provider.Profile {
	return &provider.Profile{
		ExternalID: "114530204813906326950",
		Email:      "user@email.com",
		FirstName:  "test",
		LastName:   "tester",
		AvatarURL:  "https://example.com/picture.jpg",
	}
}

func TestReconcile_CreatesUserAndLink(t *testing.T) {
	store := users.NewMemoryStore()
	reconciler := New(store, Options{AutoLink: true})
	ctx := context.Background()

	user, created, err := reconciler.Reconcile(ctx, provider.Google, testProfile())

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "user@email.com", user.Email)
	assert.Equal(t, "test-tester", user.Username)
	assert.Equal(t, "https://example.com/picture.jpg", user.AvatarURL)

	linked, err := store.FindBySocialID(ctx, provider.Google, "114530204813906326950")
	require.NoError(t, err)
	assert.Equal(t, user.ID, linked.ID)
}

func TestReconcile_Idempotent(t *testing.T) {
	store := users.NewMemoryStore()
	reconciler := New(store, Options{AutoLink: true})
	ctx := context.Background()

	first, created, err := reconciler.Reconcile(ctx, provider.Google, testProfile())
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := reconciler.Reconcile(ctx, provider.Google, testProfile())
	require.NoError(t, err)

	assert.False(t, created, "second reconciliation must not create")
	assert.Equal(t, first.ID, second.ID)
}

func TestReconcile_AlreadyLinkedReturnsUserUnchanged(t *testing.T) {
	store := users.NewMemoryStore()
	ctx := context.Background()

	existing, err := store.CreateUserWithSocial(ctx, users.CreateUserParams{
		Username: "test_test2",
		Email:    "user@email.com",
	}, provider.Google, "114530204813906326950")
	require.NoError(t, err)

	reconciler := New(store, Options{AutoLink: false})

	user, created, err := reconciler.Reconcile(ctx, provider.Google, testProfile())

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, user.ID)
}

func TestReconcile_AutoLinksPasswordUser(t *testing.T) {
	store := users.NewMemoryStore()
	ctx := context.Background()

	existing, err := store.CreateUser(ctx, users.CreateUserParams{
		Username:     "username",
		Email:        "user@email.com",
		PasswordHash: "$2a$12$fakehash",
	})
	require.NoError(t, err)

	reconciler := New(store, Options{AutoLink: true})

	user, created, err := reconciler.Reconcile(ctx, provider.Google, testProfile())

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, user.ID)

	linked, err := store.FindBySocialID(ctx, provider.Google, "114530204813906326950")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, linked.ID)
}

func TestReconcile_RejectsWhenAutoLinkDisabled(t *testing.T) {
	store := users.NewMemoryStore()
	ctx := context.Background()

	_, err := store.CreateUser(ctx, users.CreateUserParams{
		Username:     "username",
		Email:        "user@email.com",
		PasswordHash: "$2a$12$fakehash",
	})
	require.NoError(t, err)

	reconciler := New(store, Options{AutoLink: false})

	_, _, err = reconciler.Reconcile(ctx, provider.Google, testProfile())

	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	// the sign-in was rejected, nothing may have been linked
	_, err = store.FindBySocialID(ctx, provider.Google, "114530204813906326950")
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestReconcile_SlotBoundToDifferentExternalID(t *testing.T) {
	store := users.NewMemoryStore()
	ctx := context.Background()

	// the user's google slot already holds another external id; a
	// (provider, external id) pair is never reassigned
	_, err := store.CreateUserWithSocial(ctx, users.CreateUserParams{
		Username: "username",
		Email:    "user@email.com",
	}, provider.Google, "999999999999999999999")
	require.NoError(t, err)

	reconciler := New(store, Options{AutoLink: true})

	_, _, err = reconciler.Reconcile(ctx, provider.Google, testProfile())

	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestReconcile_SecondProviderLinksSameUser(t *testing.T) {
	store := users.NewMemoryStore()
	reconciler := New(store, Options{AutoLink: true})
	ctx := context.Background()

	googleUser, created, err := reconciler.Reconcile(ctx, provider.Google, testProfile())
	require.NoError(t, err)
	require.True(t, created)

	facebookProfile := testProfile()
	facebookProfile.ExternalID = "10210296"

	facebookUser, created, err := reconciler.Reconcile(ctx, provider.Facebook, facebookProfile)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, googleUser.ID, facebookUser.ID, "same email converges on one user across providers")
}

func TestReconcile_NoEmail(t *testing.T) {
	store := users.NewMemoryStore()
	reconciler := New(store, Options{AutoLink: true})

	profile := testProfile()
	profile.Email = ""

	_, _, err := reconciler.Reconcile(context.Background(), provider.Google, profile)

	assert.ErrorIs(t, err, ErrNoEmail)
}

func TestReconcile_UsernameCollisionGetsSuffix(t *testing.T) {
	store := users.NewMemoryStore()
	ctx := context.Background()

	_, err := store.CreateUser(ctx, users.CreateUserParams{
		Username: "test-tester",
		Email:    "other@email.com",
	})
	require.NoError(t, err)

	reconciler := New(store, Options{AutoLink: true, UsernameStrategy: "counter"})

	user, created, err := reconciler.Reconcile(ctx, provider.Google, testProfile())

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "test-tester-2", user.Username)
}

func TestReconcile_ConcurrentFirstLoginCreatesOneUser(t *testing.T) {
	store := users.NewMemoryStore()
	reconciler := New(store, Options{AutoLink: true})
	ctx := context.Background()

	const workers = 16

	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup

	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, _, err := reconciler.Reconcile(ctx, provider.Google, testProfile())
			errs[i] = err
			if user != nil {
				ids[i] = user.ID
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	for _, id := range ids {
		assert.Equal(t, ids[0], id, "concurrent first logins must converge on one user")
	}
}
