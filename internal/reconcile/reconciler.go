package reconcile

import (
	"context"
	"errors"
	"fmt"

	"codeberg.org/cklabs/authserver/accounts/users"
	"codeberg.org/cklabs/authserver/internal/logger"
	"codeberg.org/cklabs/authserver/internal/provider"
)

// the email already belongs to a password-registered user and the
// deployment forbids silent linking
var ErrAlreadyRegistered = errors.New("user is already registered with this e-mail")

// the provider profile carries no email, so there is nothing to
// reconcile against
var ErrNoEmail = errors.New("provider profile has no email")

// bounded retries for storage conflicts caused by concurrent
// reconciliation of the same identity
const maxReconcileAttempts = 3

// Options selects the deployment policies the reconciler follows.
type Options struct {
	// link a provider identity to an existing same-email user instead
	// of rejecting the sign-in
	AutoLink bool

	// username allocation strategy key for newly created users
	UsernameStrategy string
}

// Reconciler decides how a provider identity maps onto a local user:
// return the already-linked user, link an existing same-email user, or
// create a fresh user with its social link.
type Reconciler struct {
	store users.Store
	opts  Options
}

func New(store users.Store, opts Options) *Reconciler {
	if opts.UsernameStrategy == "" {
		opts.UsernameStrategy = "counter"
	}

	return &Reconciler{store: store, opts: opts}
}

// Reconcile resolves a provider profile to a local user. created
// reports whether a new user was made (drives 201 vs 200 upstream).
//
// Storage uniqueness conflicts mean another request won the race for
// the same identity; the state is re-read and the decision table
// re-entered instead of surfacing an error.
func (r *Reconciler) Reconcile(ctx context.Context, p provider.Provider, profile *provider.Profile) (*users.User, bool, error) {
	if profile.Email == "" {
		return nil, false, ErrNoEmail
	}

	var lastConflict *users.ConflictError

	for attempt := 0; attempt < maxReconcileAttempts; attempt++ {
		user, created, err := r.reconcileOnce(ctx, p, profile)

		if errors.As(err, &lastConflict) {
			logger.Debug("reconcile conflict, re-reading state",
				"provider", p.String(),
				"field", lastConflict.Field,
				"attempt", attempt,
			)
			continue
		}

		return user, created, err
	}

	// a conflict that survives re-reads is not a race: the user's
	// provider slot is already bound to a different external id
	if lastConflict.Field == "social" {
		return nil, false, ErrAlreadyRegistered
	}

	return nil, false, fmt.Errorf("reconciliation kept conflicting: %w", lastConflict)
}

func (r *Reconciler) reconcileOnce(ctx context.Context, p provider.Provider, profile *provider.Profile) (*users.User, bool, error) {
	// already linked: the external id points at a user, return it unchanged
	user, err := r.store.FindBySocialID(ctx, p, profile.ExternalID)
	if err == nil {
		return user, false, nil
	}

	if !errors.Is(err, users.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up social link: %w", err)
	}

	// unlinked but the email is known: the user registered by password
	// and now signs in socially
	user, err = r.store.FindByEmail(ctx, profile.Email)
	if err == nil {
		if !r.opts.AutoLink {
			return nil, false, ErrAlreadyRegistered
		}

		if err := r.store.LinkSocialAccount(ctx, user.ID, p, profile.ExternalID); err != nil {
			return nil, false, err
		}

		return user, false, nil
	}

	if !errors.Is(err, users.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up email: %w", err)
	}

	// no match anywhere: create user and social link together
	username, err := AllocateUsername(ctx, r.store, r.opts.UsernameStrategy, profile.FirstName, profile.LastName)
	if err != nil {
		return nil, false, err
	}

	user, err = r.store.CreateUserWithSocial(ctx, users.CreateUserParams{
		Username:  username,
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		AvatarURL: profile.AvatarURL,
	}, p, profile.ExternalID)

	if err != nil {
		return nil, false, err
	}

	return user, true, nil
}
