package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"asanapdf/internal/auth"
	"asanapdf/internal/config"
	"asanapdf/internal/exitcode"
	"asanapdf/internal/service"
	"asanapdf/internal/tokenstore"
)

const (
	// OAuth callback timeout
	oauthCallbackTimeout = 5 * time.Minute

	// Callback server shutdown timeout
	callbackShutdownTimeout = 5 * time.Second
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	force bool

	// browse is called with the authorization URL after it was printed.
	browse func(authURL string)
}

// SetBrowser sets a function that opens the authorization URL (for testing).
func (c *LoginCmd) SetBrowser(fn func(authURL string)) {
	c.browse = fn
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Authenticate with Asana" }
func (c *LoginCmd) Usage() string     { return "asanapdf login [--force]" }
func (c *LoginCmd) NeedsAuth() bool   { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.force, "force", false, "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if !cfg.HasClientID() {
		printClientSetup(errOut, cfg)
		return exitcode.AuthError
	}

	store := tokenstore.New(cfg.TokenPath())
	if !c.force {
		if _, err := store.Load(); err == nil {
			if !cfg.Quiet {
				fmt.Fprintln(out, "already logged in")
			}
			return exitcode.Success
		}
	}

	settings := authSettings(cfg)
	exchanger, err := newExchanger(cfg, settings)
	if err != nil {
		return reportError(errOut, err)
	}

	redirect, err := url.Parse(cfg.RedirectURL)
	if err != nil || redirect.Host == "" {
		fmt.Fprintf(errOut, "error: invalid redirect_url: %s\n", cfg.RedirectURL)
		return exitcode.AuthError
	}
	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		fmt.Fprintf(errOut, "error: could not bind to %s for OAuth callback\n", redirect.Host)
		return exitcode.AuthError
	}
	defer listener.Close()

	log := slog.Default()
	flow := auth.NewFlow(settings, exchanger, store, log)
	authURL, err := flow.Initiate()
	if err != nil {
		return reportError(errOut, err)
	}

	fmt.Fprintln(errOut, "Open this URL in your browser:")
	fmt.Fprintln(errOut, authURL)

	queryCh := make(chan url.Values, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		w.Header().Set("Content-Type", "text/html")
		if query.Get("error") != "" || query.Get("code") == "" {
			fmt.Fprint(w, "<html><body><h1>Authentication failed</h1><p>Return to the terminal for details.</p></body></html>")
		} else {
			fmt.Fprint(w, "<html><body><h1>Authentication received</h1><p>You may close this window.</p></body></html>")
		}
		select {
		case queryCh <- query:
		default:
		}
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if c.browse != nil {
		c.browse(authURL)
	}

	var query url.Values
	select {
	case query = <-queryCh:
	case err := <-errCh:
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	case <-time.After(oauthCallbackTimeout):
		fmt.Fprintln(errOut, "error: oauth callback timed out")
		return exitcode.AuthError
	case <-ctx.Done():
		fmt.Fprintln(errOut, "error: cancelled")
		return exitcode.AuthError
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), callbackShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Debug("callback server shutdown", "error", err)
	}

	if err := flow.CompleteFromRedirect(ctx, query); err != nil {
		return reportError(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// newExchanger prefers the token-exchange proxy, so the CLI does not need
// the client secret; without a proxy it exchanges directly.
func newExchanger(cfg *config.Config, settings auth.Settings) (auth.Exchanger, error) {
	if cfg.ProxyURL != "" {
		return auth.NewProxyExchanger(cfg.ProxyURL), nil
	}
	return auth.NewOAuthExchanger(settings, cfg.ClientSecret)
}

func printClientSetup(errOut io.Writer, cfg *config.Config) {
	fmt.Fprintln(errOut, "error: client_id is not configured")
	fmt.Fprintln(errOut, "")
	fmt.Fprintln(errOut, "To authenticate with Asana you need an OAuth app:")
	fmt.Fprintln(errOut, "")
	fmt.Fprintln(errOut, "1. Go to https://app.asana.com/0/my-apps and create an app")
	fmt.Fprintf(errOut, "2. Add %s as a redirect URL\n", cfg.RedirectURL)
	fmt.Fprintln(errOut, "3. Put the client id in the settings file or environment:")
	fmt.Fprintf(errOut, "   %s/%s.yaml: client_id: <id>\n", cfg.Dir, config.SettingsFile)
	fmt.Fprintf(errOut, "   or %s_CLIENT_ID=<id>\n", config.EnvPrefix)
	fmt.Fprintln(errOut, "4. Either set proxy_url to a running 'asanapdf serve', or set client_secret")
	fmt.Fprintln(errOut, "")
	fmt.Fprintln(errOut, "Then run 'asanapdf login' again.")
}
