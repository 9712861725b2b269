package provider

import "fmt"

// Provider identifies an external OAuth2 identity source. Behavior
// differences between providers are table-driven (endpoints, scopes,
// field mappings) rather than implemented as separate types.
type Provider string

const (
	Google   Provider = "google"
	Facebook Provider = "facebook"
)

// all providers the service knows how to talk to
var All = []Provider{Google, Facebook}

// Parse validates a provider name from a request path.
func Parse(name string) (Provider, error) {
	for _, p := range All {
		if string(p) == name {
			return p, nil
		}
	}

	return "", fmt.Errorf("unknown provider: %s", name)
}

func (p Provider) String() string {
	return string(p)
}
