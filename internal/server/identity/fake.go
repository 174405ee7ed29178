package identity

import (
	"context"
	"net/url"
)

// FakeResolver always resolves to a fixed configured email. It exists
// so local development can run without Auth0 (and thus without https).
type FakeResolver struct {
	Email string
}

func (r *FakeResolver) LoginURL(state string) string {
	return "/auth/callback?code=fake&state=" + url.QueryEscape(state)
}

func (r *FakeResolver) ResolveEmail(ctx context.Context, code string) (string, error) {
	return r.Email, nil
}
