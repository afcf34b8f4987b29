package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"asanapdf/internal/auth"
)

// TokenStorageKey is the browser storage key holding the access token.
const TokenStorageKey = "asana_access_token"

// Redirect reasons reported to the front page as ?error=<reason>.
const (
	reasonNoCode         = "no_code"
	reasonInvalidState   = "invalid_state"
	reasonExchangeFailed = "exchange_failed"
	reasonNoToken        = "no_token"
)

const exchangeFailedMessage = "Failed to exchange code for token"

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Signing in</title></head>
<body>
<p>Signing in...</p>
<script>
localStorage.setItem({{.Key}}, {{.Token}});
window.location.replace("/");
</script>
</body>
</html>
`))

// handleLogin redirects to the provider with a signed state.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.signer == nil {
		RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "OAuth state signing is not configured", nil)
		return
	}
	state, err := s.signer.Issue()
	if err != nil {
		RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to start authorization", err)
		return
	}

	authURL, err := s.settings.AuthCodeURL(state, "")
	if err != nil {
		RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "OAuth client is not configured", err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback completes the browser flow. Failures go back to the front
// page with a reason; success hands the token to the page's storage.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if code := query.Get("error"); code != "" {
		s.log.Warn("authorization denied", "error", code, "description", query.Get("error_description"))
		redirectWithError(w, r, code)
		return
	}

	code := query.Get("code")
	if code == "" {
		redirectWithError(w, r, reasonNoCode)
		return
	}

	if s.signer == nil || s.signer.Verify(query.Get("state")) != nil {
		redirectWithError(w, r, reasonInvalidState)
		return
	}

	if s.exchanger == nil {
		s.log.Error("token exchange unavailable", "error", s.exchangeErr)
		redirectWithError(w, r, reasonExchangeFailed)
		return
	}
	resp, err := s.exchanger.Exchange(r.Context(), code, "")
	if err != nil {
		s.log.Warn("token exchange failed", "error", err)
		redirectWithError(w, r, reasonExchangeFailed)
		return
	}
	if resp == nil || resp.AccessToken == "" {
		redirectWithError(w, r, reasonNoToken)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err = callbackPage.Execute(w, struct{ Key, Token string }{TokenStorageKey, resp.AccessToken})
	if err != nil {
		s.log.Error("failed to render callback page", "error", err)
	}
}

// handleExchange is the same-origin token-exchange proxy. The client
// secret stays on the server.
func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req auth.ExchangeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request: code is required", err)
		return
	}

	if s.exchanger == nil {
		RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "OAuth client is not configured", s.exchangeErr)
		return
	}

	resp, err := s.exchanger.Exchange(r.Context(), req.Code, req.CodeVerifier)
	if err != nil {
		var exchangeErr *auth.TokenExchangeError
		if errors.As(err, &exchangeErr) && exchangeErr.Status != 0 {
			RespondWithErrorAndLog(w, r, http.StatusBadRequest, exchangeFailedMessage, err)
			return
		}
		RespondWithErrorAndLog(w, r, http.StatusInternalServerError, exchangeFailedMessage, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	RespondWithJSON(w, r, http.StatusOK, resp)
}

func redirectWithError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, "/?error="+url.QueryEscape(reason), http.StatusFound)
}
