// Package identity resolves a login to a verified email address. The
// resolution strategy is picked at process start: the Auth0 resolver
// for real deployments, or the fake resolver, which short-circuits the
// provider entirely for local development.
package identity

import "context"

// Resolver exchanges an identity-provider callback code for the
// account's verified email.
type Resolver interface {
	// LoginURL returns where to send an unauthenticated visitor, with
	// the given state value woven in.
	LoginURL(state string) string

	// ResolveEmail exchanges the callback code for the account email.
	// It either produces an email or fails; no partial result exists.
	ResolveEmail(ctx context.Context, code string) (string, error)
}
