package reconcile

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// hard cap on collision retries; hitting it signals a capacity bug,
// not a user error
const maxAllocationAttempts = 1000

// returned when no free username was found within the retry cap
var ErrAllocationExhausted = errors.New("username allocation exhausted")

// UsernameStrategy produces the next candidate after a collision.
// attempt starts at 1 for the first fallback.
type UsernameStrategy func(base string, attempt int) string

// registered strategies, selected by the AUTH_FIELD_GENERATOR config
// key. Statically registered rather than looked up by class path.
var usernameStrategies = map[string]UsernameStrategy{
	"counter": func(base string, attempt int) string {
		return fmt.Sprintf("%s-%d", base, attempt+1)
	},
	"random": func(base string, _ int) string {
		return base + "-" + randomSuffix()
	},
}

// RegisterUsernameStrategy installs a named allocation strategy.
func RegisterUsernameStrategy(name string, strategy UsernameStrategy) {
	usernameStrategies[name] = strategy
}

// UsernameChecker is the store subset the allocator needs.
type UsernameChecker interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// AllocateUsername derives a collision-free login identifier from name
// parts: lower-cased, spaces replaced with underscores, joined by "-".
// Collisions retry through the selected strategy in a bounded loop.
func AllocateUsername(ctx context.Context, checker UsernameChecker, strategyName, firstName, lastName string) (string, error) {
	strategy, ok := usernameStrategies[strategyName]
	if !ok {
		return "", fmt.Errorf("unknown username strategy %q", strategyName)
	}

	base := usernameBase(firstName, lastName)

	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = strategy(base, attempt)
		}

		taken, err := checker.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check username %q: %w", candidate, err)
		}

		if !taken {
			return candidate, nil
		}
	}

	return "", ErrAllocationExhausted
}

func usernameBase(firstName, lastName string) string {
	parts := []string{}

	for _, part := range []string{firstName, lastName} {
		part = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(part)), " ", "_")
		if part != "" {
			parts = append(parts, part)
		}
	}

	if len(parts) == 0 {
		return "user"
	}

	return strings.Join(parts, "-")
}

func randomSuffix() string {
	buf := make([]byte, 3)
	rand.Read(buf) //nolint:errcheck // crypto/rand.Read never fails

	return hex.EncodeToString(buf)
}
