package provider

import (
	"strconv"
	"strings"
)

// Profile is the normalized user-info payload fetched from a provider.
// Transient: built per authentication attempt, never persisted.
type Profile struct {
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	Name       string
	AvatarURL  string
	Raw        map[string]any
}

// UserInfoMapping maps local profile fields to provider payload keys.
// A value is either a payload key (dotted paths descend into nested
// objects, e.g. "picture.data.url") or "@name" selecting a registered
// derivation strategy.
type UserInfoMapping map[string]string

// DeriveFunc computes a local field value from the raw provider
// payload when no single payload key carries it.
type DeriveFunc func(raw map[string]any) string

var derivations = map[string]DeriveFunc{
	"full_name": func(raw map[string]any) string {
		parts := []string{}
		for _, key := range []string{"first_name", "given_name", "last_name", "family_name"} {
			if v := stringValue(raw, key); v != "" {
				parts = append(parts, v)
			}
		}
		return strings.Join(parts, " ")
	},
	"email_local_part": func(raw map[string]any) string {
		email := stringValue(raw, "email")
		local, _, _ := strings.Cut(email, "@")
		return local
	},
}

// RegisterDerivation installs a named derivation strategy. Mapping
// values reference it as "@name". Statically-registered strategies
// replace runtime class-path lookups.
func RegisterDerivation(name string, fn DeriveFunc) {
	derivations[name] = fn
}

// merges deployment overrides on top of the provider's built-in mapping
func (m UserInfoMapping) merge(overrides map[string]string) UserInfoMapping {
	if len(overrides) == 0 {
		return m
	}

	merged := make(UserInfoMapping, len(m)+len(overrides))
	for field, source := range m {
		merged[field] = source
	}
	for field, source := range overrides {
		merged[field] = source
	}

	return merged
}

// applies the mapping to a decoded user-info payload
func (m UserInfoMapping) apply(raw map[string]any) *Profile {
	profile := &Profile{Raw: raw}

	for field, source := range m {
		value := resolve(raw, source)

		switch field {
		case "external_id":
			profile.ExternalID = value
		case "email":
			profile.Email = value
		case "first_name":
			profile.FirstName = value
		case "last_name":
			profile.LastName = value
		case "name":
			profile.Name = value
		case "avatar_url":
			profile.AvatarURL = value
		}
	}

	return profile
}

func resolve(raw map[string]any, source string) string {
	if strategy, ok := strings.CutPrefix(source, "@"); ok {
		derive, registered := derivations[strategy]
		if !registered {
			return ""
		}
		return derive(raw)
	}

	return stringValue(raw, source)
}

// looks up a possibly-dotted path in the payload, tolerating numeric
// values (Facebook returns ids as JSON numbers in some API versions)
func stringValue(raw map[string]any, path string) string {
	current := any(raw)

	for _, segment := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = object[segment]
		if !ok {
			return ""
		}
	}

	switch v := current.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
