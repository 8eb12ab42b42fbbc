package oauthlogin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const (
	callbackPath = "/callback"
	donePage     = `<!doctype html><html><body><p>Sign in complete. You can close this window.</p></body></html>`
	failedPage   = `<!doctype html><html><body><p>Sign in failed. Return to the terminal for details.</p></body></html>`
)

// CallbackServer receives the provider redirect on a loopback address.
type CallbackServer struct {
	listener net.Listener
	server   *http.Server
	results  chan Callback
	logger   zerolog.Logger
}

// NewCallbackServer listens on addr, for example "127.0.0.1:8765". Port 0
// picks a free port.
func NewCallbackServer(addr string, logger zerolog.Logger) (*CallbackServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("[NewCallbackServer] listen %s: %w", addr, err)
	}
	s := &CallbackServer{
		listener: listener,
		results:  make(chan Callback, 1),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(callbackPath, s.handleCallback)
	r.Post(callbackPath, s.handleCallback)

	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("oauth callback server stopped")
		}
	}()
	return s, nil
}

// RedirectURL is the URL to register with the provider.
func (s *CallbackServer) RedirectURL() string {
	return "http://" + s.listener.Addr().String() + callbackPath
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	cb := Callback{
		State:            r.FormValue("state"),
		Code:             r.FormValue("code"),
		Error:            r.FormValue("error"),
		ErrorDescription: r.FormValue("error_description"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if cb.Error != "" || cb.Code == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(failedPage))
	} else {
		_, _ = w.Write([]byte(donePage))
	}

	// first callback wins; browsers sometimes retry
	select {
	case s.results <- cb:
	default:
		s.logger.Debug().Msg("ignoring repeated oauth callback")
	}
}

// Wait blocks until the provider redirects back or ctx is done.
func (s *CallbackServer) Wait(ctx context.Context) (Callback, error) {
	select {
	case cb := <-s.results:
		return cb, nil
	case <-ctx.Done():
		return Callback{}, fmt.Errorf("[CallbackServer.Wait] %w", ctx.Err())
	}
}

func (s *CallbackServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Login runs a complete browser sign in: it starts a flow against server's
// redirect URL, hands the authorization URL to open, waits for the callback
// and completes the exchange.
func Login(ctx context.Context, p *Provider, server *CallbackServer, open func(url string) error) (*Result, error) {
	flow := p.Begin(server.RedirectURL())
	if err := open(flow.AuthCodeURL()); err != nil {
		return nil, fmt.Errorf("[oauthlogin.Login] open browser: %w", err)
	}
	cb, err := server.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return flow.Complete(ctx, cb)
}
