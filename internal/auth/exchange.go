package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Scope is the fixed OAuth scope requested from Asana.
const Scope = "default"

// exchangeTimeout bounds one code exchange.
const exchangeTimeout = 30 * time.Second

// Settings describes the OAuth application.
type Settings struct {
	ClientID    string
	RedirectURL string
	AuthURL     string
	TokenURL    string
}

// OAuth2Config builds the oauth2 configuration. clientSecret may be empty
// when only authorization URLs are needed.
func (s Settings) OAuth2Config(clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  s.RedirectURL,
		Scopes:       []string{Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   s.AuthURL,
			TokenURL:  s.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL returns the provider authorization URL for state. A non-empty
// verifier adds a PKCE S256 challenge.
func (s Settings) AuthCodeURL(state, verifier string) (string, error) {
	if strings.TrimSpace(s.ClientID) == "" {
		return "", &ConfigurationError{Setting: "client_id"}
	}
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return s.OAuth2Config("").AuthCodeURL(state, opts...), nil
}

// ExchangeRequest is the body accepted by the token-exchange proxy.
type ExchangeRequest struct {
	Code         string `json:"code" validate:"required"`
	CodeVerifier string `json:"code_verifier,omitempty" validate:"omitempty,min=43,max=128"`
}

// TokenResponse is the provider token payload relayed by the proxy.
type TokenResponse struct {
	AccessToken  string         `json:"access_token"`
	TokenType    string         `json:"token_type,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresIn    int64          `json:"expires_in,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// OAuth2Token converts the payload into a token for storage.
func (t *TokenResponse) OAuth2Token(now time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok
}

// Exchanger turns an authorization code into a token.
type Exchanger interface {
	Exchange(ctx context.Context, code, verifier string) (*TokenResponse, error)
}

// OAuthExchanger exchanges codes directly with the provider. It holds the
// client secret and belongs on the server side.
type OAuthExchanger struct {
	config *oauth2.Config
	now    func() time.Time
}

var _ Exchanger = (*OAuthExchanger)(nil)

// NewOAuthExchanger requires both the client id and secret.
func NewOAuthExchanger(s Settings, clientSecret string) (*OAuthExchanger, error) {
	if strings.TrimSpace(s.ClientID) == "" {
		return nil, &ConfigurationError{Setting: "client_id"}
	}
	if strings.TrimSpace(clientSecret) == "" {
		return nil, &ConfigurationError{Setting: "client_secret"}
	}
	return &OAuthExchanger{config: s.OAuth2Config(clientSecret), now: time.Now}, nil
}

// Exchange implements Exchanger.
func (x *OAuthExchanger) Exchange(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	tok, err := x.config.Exchange(ctx, code, opts...)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			return nil, &TokenExchangeError{Status: status, Reason: retrieveErr.ErrorCode}
		}
		return nil, &TokenExchangeError{Err: err}
	}

	resp := &TokenResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		resp.ExpiresIn = int64(tok.Expiry.Sub(x.now()).Round(time.Second).Seconds())
	}
	if data, ok := tok.Extra("data").(map[string]any); ok {
		resp.Data = data
	}
	return resp, nil
}

// ProxyExchanger exchanges codes through the same-origin proxy endpoint,
// so the client never holds the secret.
type ProxyExchanger struct {
	URL    string
	Client *http.Client
}

var _ Exchanger = (*ProxyExchanger)(nil)

// NewProxyExchanger returns an exchanger posting to url.
func NewProxyExchanger(url string) *ProxyExchanger {
	return &ProxyExchanger{URL: url, Client: &http.Client{Timeout: exchangeTimeout}}
}

// Exchange implements Exchanger.
func (x *ProxyExchanger) Exchange(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	body, err := json.Marshal(ExchangeRequest{Code: code, CodeVerifier: verifier})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := x.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TokenExchangeError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TokenExchangeError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &payload)
		return nil, &TokenExchangeError{Status: resp.StatusCode, Reason: payload.Error}
	}

	var token TokenResponse
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, &TokenExchangeError{Status: resp.StatusCode, Reason: "invalid token payload", Err: err}
	}
	return &token, nil
}
