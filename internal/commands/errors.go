package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"asanapdf/internal/auth"
	"asanapdf/internal/config"
	"asanapdf/internal/exitcode"
	"asanapdf/internal/render"
	"asanapdf/internal/service"
)

// loginHint is appended to errors that a fresh login fixes.
const loginHint = "(run: asanapdf login)"

// reportError prints err as a one-line "error: ..." message and returns the
// matching exit code. Errors that are not auth, upstream or render
// failures are the user's (not found, ambiguous, bad reference).
func reportError(errOut io.Writer, err error) int {
	var (
		upstream    *service.UpstreamError
		network     *service.NetworkError
		unavailable *render.RenderUnavailableError
		cfgErr      *auth.ConfigurationError
		authErr     *auth.AuthError
		exchangeErr *auth.TokenExchangeError
	)

	switch {
	case errors.As(err, &upstream) && upstream.Unauthorized():
		fmt.Fprintf(errOut, "error: token rejected by Asana %s\n", loginHint)
		return exitcode.AuthError
	case errors.As(err, &upstream), errors.As(err, &network):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	case errors.As(err, &unavailable):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.RenderError
	case errors.As(err, &cfgErr):
		fmt.Fprintf(errOut, "error: %v (set %s in %s.yaml or %s_%s)\n",
			err, cfgErr.Setting, config.SettingsFile, config.EnvPrefix, strings.ToUpper(cfgErr.Setting))
		return exitcode.AuthError
	case errors.As(err, &authErr), errors.As(err, &exchangeErr):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	default:
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
}

// authSettings extracts the OAuth application settings.
func authSettings(cfg *config.Config) auth.Settings {
	return auth.Settings{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURL,
		AuthURL:     cfg.AuthURL,
		TokenURL:    cfg.TokenURL,
	}
}

// splitList splits a comma separated flag value, dropping empty items.
func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
