// Package auth implements the Asana OAuth authorization-code flow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"asanapdf/internal/logger"
	"asanapdf/internal/tokenstore"
)

// State is the authentication state of a Flow.
type State int

const (
	Unauthenticated State = iota
	PendingRedirect
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case PendingRedirect:
		return "pending_redirect"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TokenStore persists the bearer token between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
	Clear() error
}

// Flow drives one authentication session. It is not safe for concurrent use.
type Flow struct {
	settings  Settings
	exchanger Exchanger
	store     TokenStore
	log       *slog.Logger
	now       func() time.Time

	state    State
	token    *oauth2.Token
	expected string // state parameter of the pending redirect
	verifier string // PKCE verifier of the pending redirect
}

// NewFlow creates an unauthenticated flow.
func NewFlow(settings Settings, exchanger Exchanger, store TokenStore, log *slog.Logger) *Flow {
	return &Flow{
		settings:  settings,
		exchanger: exchanger,
		store:     store,
		log:       logger.OrDefault(log),
		now:       time.Now,
	}
}

// State returns the current state.
func (f *Flow) State() State {
	return f.state
}

// Token returns the bearer token, or "" unless authenticated.
func (f *Flow) Token() string {
	if f.state != Authenticated || f.token == nil {
		return ""
	}
	return f.token.AccessToken
}

// Restore adopts a previously stored token. The token is not validated
// remotely; an expired one surfaces as a 401 on first use.
func (f *Flow) Restore() bool {
	tok, err := f.store.Load()
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			f.log.Warn("stored token unreadable", "error", err)
		}
		return false
	}
	if tok.AccessToken == "" {
		return false
	}
	f.token = tok
	f.state = Authenticated
	return true
}

// Initiate prepares a new authorization request and returns the URL the
// user must open.
func (f *Flow) Initiate() (string, error) {
	if strings.TrimSpace(f.settings.ClientID) == "" {
		return "", &ConfigurationError{Setting: "client_id"}
	}

	state := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()

	authURL, err := f.settings.AuthCodeURL(state, verifier)
	if err != nil {
		return "", err
	}

	f.expected = state
	f.verifier = verifier
	f.state = PendingRedirect
	f.log.Debug("authorization initiated", "redirect_url", f.settings.RedirectURL)
	return authURL, nil
}

// CompleteFromRedirect consumes the query parameters of the provider
// redirect. On any failure the flow ends Unauthenticated.
func (f *Flow) CompleteFromRedirect(ctx context.Context, query url.Values) error {
	expected, verifier := f.expected, f.verifier
	f.expected, f.verifier = "", ""
	f.state = Unauthenticated
	f.token = nil

	if code := query.Get("error"); code != "" {
		return &AuthError{Code: code, Description: query.Get("error_description")}
	}

	code := query.Get("code")
	if code == "" {
		return &AuthError{Code: "no_code"}
	}

	if expected != "" && query.Get("state") != expected {
		return &AuthError{Code: "state_mismatch"}
	}

	resp, err := f.exchanger.Exchange(ctx, code, verifier)
	if err != nil {
		var exchangeErr *TokenExchangeError
		if errors.As(err, &exchangeErr) {
			return err
		}
		return &TokenExchangeError{Err: err}
	}
	if resp == nil || resp.AccessToken == "" {
		return &TokenExchangeError{Reason: "no access token in response"}
	}

	tok := resp.OAuth2Token(f.now())
	if err := f.store.Save(tok); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	f.token = tok
	f.state = Authenticated
	f.log.Info("authenticated")
	return nil
}

// Logout forgets the token locally and in the store.
func (f *Flow) Logout() error {
	f.token = nil
	f.expected, f.verifier = "", ""
	f.state = Unauthenticated
	if err := f.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
