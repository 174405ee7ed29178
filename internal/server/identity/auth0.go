package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/pulseops/pulseguardian/internal/logging"
)

// Auth0Resolver performs the authorization-code exchange against the
// configured Auth0 domain and reads the email from the userinfo
// endpoint.
type Auth0Resolver struct {
	base   string // "https://{domain}", overridable in tests
	conf   *oauth2.Config
	hc     *http.Client
	logger logging.Logger
}

func NewAuth0Resolver(domain, clientID, clientSecret, callbackURL string, logger logging.Logger) *Auth0Resolver {
	base := "https://" + domain
	return &Auth0Resolver{
		base: base,
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/authorize",
				TokenURL: base + "/oauth/token",
			},
		},
		hc:     &http.Client{},
		logger: logger.With("module", "auth0"),
	}
}

func (r *Auth0Resolver) LoginURL(state string) string {
	return r.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("scope", "openid email"))
}

// ResolveEmail exchanges code for an access token, then fetches the
// profile. Any provider failure is logged with the response detail and
// returned as an error; the caller must not establish a session from
// a partial exchange.
func (r *Auth0Resolver) ResolveEmail(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.hc)

	token, err := r.conf.Exchange(ctx, code)
	if err != nil {
		r.logger.Error(ctx, "token exchange failed", "error", err.Error())
		return "", fmt.Errorf("token exchange: %w", err)
	}

	infoURL := r.base + "/userinfo?access_token=" + url.QueryEscape(token.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.hc.Do(req)
	if err != nil {
		r.logger.Error(ctx, "userinfo request failed", "error", err.Error())
		return "", fmt.Errorf("userinfo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("userinfo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.Error(ctx, "userinfo request rejected", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("userinfo: unexpected status %d", resp.StatusCode)
	}

	var profile struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		r.logger.Error(ctx, "userinfo response unparsable", "body", string(body))
		return "", fmt.Errorf("userinfo: %w", err)
	}
	if profile.Email == "" {
		return "", fmt.Errorf("userinfo: profile carries no email")
	}
	return profile.Email, nil
}
