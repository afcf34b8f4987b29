package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"asanapdf/internal/api"
	"asanapdf/internal/auth"
	"asanapdf/internal/backend/asana"
	"asanapdf/internal/config"
	"asanapdf/internal/exitcode"
	"asanapdf/internal/logger"
	"asanapdf/internal/render"
	"asanapdf/internal/service"
)

const serverShutdownTimeout = 10 * time.Second

func init() {
	Register(&ServeCmd{})
}

// ServeCmd implements the serve command: the token-exchange proxy and the
// browser endpoints.
type ServeCmd struct {
	addr string

	services api.ServiceFactory
	ready    func(addr string)
}

// SetServiceFactory replaces the Asana client factory (for testing).
func (c *ServeCmd) SetServiceFactory(f api.ServiceFactory) {
	c.services = f
}

// SetReady registers a function called with the bound address once the
// server accepts connections (for testing).
func (c *ServeCmd) SetReady(fn func(addr string)) {
	c.ready = fn
}

func (c *ServeCmd) Name() string      { return "serve" }
func (c *ServeCmd) Aliases() []string { return nil }
func (c *ServeCmd) Synopsis() string  { return "Run the token-exchange proxy and web endpoints" }
func (c *ServeCmd) Usage() string     { return "asanapdf serve [--addr <host:port>]" }
func (c *ServeCmd) NeedsAuth() bool   { return false }

func (c *ServeCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.addr, "addr", "", "")
}

func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	log := logger.Setup(logger.Options{Level: serverLogLevel(cfg), Format: logger.JSON, Writer: errOut})

	secret := cfg.StateSecret
	if secret == "" {
		generated, err := auth.RandomSecret()
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.AuthError
		}
		secret = generated
		log.Info("no state_secret configured, using a per-process secret")
	}
	signer, err := auth.NewStateSigner(secret)
	if err != nil {
		return reportError(errOut, err)
	}

	services := c.services
	if services == nil {
		services = func(ctx context.Context, token string) (service.Service, error) {
			client, err := asana.New(ctx, cfg, token)
			if err != nil {
				return nil, err
			}
			return client.WithLogger(log), nil
		}
	}

	if !cfg.HasClientID() {
		log.Warn("client_id is not configured, OAuth endpoints will fail")
	}

	server := api.New(api.Options{
		Settings:     authSettings(cfg),
		ClientSecret: cfg.ClientSecret,
		Signer:       signer,
		Services:     services,
		Backend:      &render.PDFBackend{FontFile: cfg.FontFile, Title: cfg.BannerTitle},
		BannerTitle:  cfg.BannerTitle,
		Logger:       log,
	})

	addr := c.addr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(errOut, "error: could not listen on %s: %v\n", addr, err)
		return exitcode.UserError
	}

	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if !cfg.Quiet {
		fmt.Fprintf(out, "listening on http://%s\n", listener.Addr())
	}
	if c.ready != nil {
		c.ready(listener.Addr().String())
	}

	select {
	case err := <-serveErr:
		if err != nil {
			fmt.Fprintf(errOut, "error: server failed: %v\n", err)
			return exitcode.BackendError
		}
		return exitcode.Success
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(errOut, "error: server shutdown failed: %v\n", err)
		return exitcode.BackendError
	}
	log.Info("server shutdown completed")
	return exitcode.Success
}

// serverLogLevel keeps request logs visible unless a level was chosen.
func serverLogLevel(cfg *config.Config) string {
	if cfg.Debug {
		return "debug"
	}
	if cfg.LogLevel == "" || cfg.LogLevel == config.DefaultLogLevel {
		return "info"
	}
	return cfg.LogLevel
}
