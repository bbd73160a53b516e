// Package oauth is the browser-based authorization-code flow shared by the
// platforms that sign users in through a local redirect: a loopback
// listener scoped to one flow, and a token client for code exchange and
// refresh.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
)

const (
	DefaultPortStart = 8919
	DefaultPortEnd   = 9000 // exclusive
	DefaultTimeout   = 300 * time.Second
	CallbackPath     = "/callback"

	shutdownTimeout = 2 * time.Second
)

var ErrNoFreePort = errors.New("no free callback port")

// CallbackOptions configures one callback wait. Zero values use the defaults.
type CallbackOptions struct {
	Host      string // listen address, defaults to 127.0.0.1
	PortStart int
	PortEnd   int
	Timeout   time.Duration
	// OpenBrowser sends the user to the authorization page.
	OpenBrowser func(ctx context.Context, url string) error
}

func (o CallbackOptions) withDefaults() CallbackOptions {
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.PortStart <= 0 {
		o.PortStart = DefaultPortStart
	}
	if o.PortEnd <= o.PortStart {
		o.PortEnd = max(DefaultPortEnd, o.PortStart+1)
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.OpenBrowser == nil {
		o.OpenBrowser = OpenBrowser
	}
	return o
}

type callbackResult struct {
	code string
	err  error
}

// WaitForCode binds the first free loopback port of the range, opens the
// authorization page built by authURL and waits for the redirect carrying
// the code. The listener is shut down on every return path.
//
// It returns the code and the redirect URI it was issued for, which the
// token exchange must repeat.
func WaitForCode(ctx context.Context, opts CallbackOptions, authURL func(redirectURI, state string) string, log logger.Logger) (string, string, error) {
	opts = opts.withDefaults()

	ln, port, err := listen(opts.Host, opts.PortStart, opts.PortEnd)
	if err != nil {
		return "", "", err
	}
	redirectURI := redirectURL(opts.Host, port)
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackRouter(state, results),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("oauth callback server failed", logger.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
		log.Debug("oauth callback listener released", logger.Int("port", port))
	}()

	log.Info("waiting for oauth callback",
		logger.Int("port", port),
		logger.Duration("timeout", opts.Timeout))

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := opts.OpenBrowser(waitCtx, authURL(redirectURI, state)); err != nil {
		return "", "", fmt.Errorf("failed to open browser: %w", err)
	}

	select {
	case res := <-results:
		return res.code, redirectURI, res.err
	case <-waitCtx.Done():
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", "", fmt.Errorf("%w: no callback within %v", domain.ErrAuthTimeout, opts.Timeout)
		}
		return "", "", waitCtx.Err()
	}
}

// redirectURL points at the listener itself, so the browser reaches the
// address family that was bound.
func redirectURL(host string, port int) string {
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, strconv.Itoa(port)), Path: CallbackPath}
	return u.String()
}

// callbackRouter answers the redirect. Requests with a foreign state are
// refused without ending the wait.
func callbackRouter(state string, results chan<- callbackResult) http.Handler {
	r := chi.NewRouter()
	r.Get(CallbackPath, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s %s", q.Get("error"), q.Get("error_description"))
		case q.Get("code") == "":
			res.err = errors.New("callback carried no authorization code")
		default:
			res.code = q.Get("code")
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(failurePage))
		} else {
			_, _ = w.Write([]byte(successPage))
		}

		select {
		case results <- res:
		default:
		}
	})
	return r
}

func listen(host string, start, end int) (net.Listener, int, error) {
	for port := start; port < end; port++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, fmt.Errorf("%w in [%d, %d)", ErrNoFreePort, start, end)
}

const successPage = `<html><body><h1>Authorization complete</h1>
<p>You can close this window and return to gamedeck.</p>
<script>window.close()</script></body></html>`

const failurePage = `<html><body><h1>Authorization failed</h1>
<p>Return to gamedeck and try again.</p></body></html>`
