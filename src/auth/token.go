package auth

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"iot-observer/src/helpers"
	"iot-observer/src/interfaces"
	"iot-observer/src/logger"
	"iot-observer/src/models"

	"github.com/golang-jwt/jwt/v5"
)

// -----------------------------------------------------------------------------
// TokenProvider
// -----------------------------------------------------------------------------

// expirySkew is subtracted from the token's exp claim so a token is refetched
// slightly before the server rejects it.
const expirySkew = 30 * time.Second

// fallbackTTL is used when the token is opaque (not a parseable JWT).
const fallbackTTL = 5 * time.Minute

type TokenProvider struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// -----------------------------------------------------------------------------

func NewTokenProvider(cfg *models.MConfig, netMgr interfaces.INetworkManager) *TokenProvider {
	return &TokenProvider{
		Config:  cfg,
		Network: netMgr,
		Logger:  logger.NewLogger(cfg.LogLevel, "TokenProvider"),
	}
}

// -----------------------------------------------------------------------------

type tokenResponse struct {
	Token string `json:"token"`
}

// -----------------------------------------------------------------------------

// Token returns a valid connection token, hitting the auth endpoint only when
// the cached one has expired. Failures come back as *helpers.AuthError so the
// caller can surface "could not establish connection" instead of retrying
// silently.
func (p *TokenProvider) Token() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expiresAt) {
		return p.token, nil
	}

	body, err := p.Network.PostJSON(p.Config.Auth.TokenURL, map[string]string{
		"username": p.Config.Auth.Username,
		"password": p.Config.Auth.Password,
	})
	if err != nil {
		return "", helpers.NewAuthError("token request failed", err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", helpers.NewAuthError("token response is not valid JSON", err)
	}
	if resp.Token == "" {
		return "", helpers.NewAuthError("auth endpoint returned an empty token", nil)
	}

	p.token = resp.Token
	p.expiresAt = p.deadlineFor(resp.Token)
	p.Logger.Debug("Fetched connection token, valid until %s", p.expiresAt.Format(time.RFC3339))

	return p.token, nil
}

// -----------------------------------------------------------------------------

// deadlineFor inspects the JWT exp claim without verifying the signature.
// The client is not the verifier; it only needs to know when to refetch.
func (p *TokenProvider) deadlineFor(token string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}

	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		p.Logger.Debug("Token is not a JWT (%v), caching for %s", err, fallbackTTL)
		return time.Now().Add(fallbackTTL)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Now().Add(fallbackTTL)
	}
	return exp.Time.Add(-expirySkew)
}

// -----------------------------------------------------------------------------

// Invalidate discards the cached token so the next Token call refetches.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()
}

// -----------------------------------------------------------------------------

// ConnectionURL appends the token as a query parameter to the realtime
// server URL.
func ConnectionURL(serverURL, token string) string {
	u, err := url.Parse(serverURL)
	if err != nil {
		// Validated at config load; fall back to naive concatenation.
		return serverURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
