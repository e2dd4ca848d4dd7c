// Package callback runs the one-shot local HTTP listener that catches the
// browser redirect completing an authorization attempt. The listener exists
// to observe exactly one meaningful request; everything after the first
// resolution is noise (browser retries, favicon fetches) and is not serviced.
package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const pathCallback = "/callback"

// ErrTimeout is returned by Wait when the browser redirect does not arrive
// within the configured bound.
var ErrTimeout = errors.New("timed out waiting for the authorization callback")

// ErrStateMismatch is returned when the redirect carries a state parameter
// different from the one sent in the authorization request.
var ErrStateMismatch = errors.New("state parameter in the callback does not match the authorization request")

// AuthError is a provider-reported authorization failure, delivered through
// the redirect's error query parameter.
type AuthError struct {
	Code string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authorization failed: %s", e.Code)
}

type result struct {
	code string
	err  error
}

// Listener is a one-shot callback listener. It binds its port at
// construction time, before the browser is launched: the redirect would hit
// a connection error otherwise.
type Listener struct {
	srv     *http.Server
	ln      net.Listener
	addr    string
	state   string
	skip    bool
	results chan result
	once    sync.Once
}

// Listen binds the callback endpoint on the given port. A bind failure is
// fatal to the flow; there is no automatic port probing.
func Listen(port int, expectedState string, skipStateCheck bool) (*Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind callback listener on port %d, free the port or change callback.port: %w", port, err)
	}

	l := &Listener{
		ln:      ln,
		addr:    ln.Addr().String(),
		state:   expectedState,
		skip:    skipStateCheck,
		results: make(chan result, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(pathCallback, l.handleCallback)
	l.srv = &http.Server{Handler: mux}

	go func() {
		err := l.srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			logrus.WithError(err).Error("callback listener terminated")
		}
	}()

	return l, nil
}

// Wait blocks until the browser redirect resolves the attempt. A zero
// timeout waits forever. On success it returns the authorization code; on a
// provider error redirect it returns an *AuthError; past the timeout it
// returns ErrTimeout.
func (l *Listener) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case res := <-l.results:
		return res.code, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", ctx.Err()
	}
}

// Close stops accepting connections and releases the port. The raw listener
// is closed directly: the serving goroutine may not have entered Serve yet,
// in which case the http.Server does not track the listener and closing only
// the server would leave the port bound.
func (l *Listener) Close() error {
	if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return l.srv.Close()
}

// Addr is the bound listen address.
func (l *Listener) Addr() string {
	return l.addr
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case q.Get("code") != "":
		if !l.skip && q.Get("state") != l.state {
			l.resolve(result{err: ErrStateMismatch})
			renderPage(w, "Authentication Failed", "The response could not be matched to this login attempt.")
			return
		}
		l.resolve(result{code: q.Get("code")})
		renderPage(w, "Authentication Successful!", "You can close this window and return to the terminal.")

	case q.Get("error") != "":
		// The page rendered to the user succeeded even though the
		// authorization failed, hence 200.
		l.resolve(result{err: &AuthError{Code: q.Get("error")}})
		renderPage(w, "Authentication Failed", fmt.Sprintf("Error: %s", q.Get("error")))

	default:
		http.Error(w, "missing code or error parameter", http.StatusBadRequest)
	}
}

// resolve delivers at most one result per attempt and stops accepting new
// connections the instant it is produced: the in-flight request still gets
// its page, anything arriving later is never serviced.
func (l *Listener) resolve(res result) {
	l.once.Do(func() {
		l.results <- res
		l.ln.Close()
	})
}

func renderPage(w http.ResponseWriter, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<html>
<head><title>%[1]s</title></head>
<body style="font-family: system-ui; padding: 40px; text-align: center;">
	<h1>%[1]s</h1>
	<p>%[2]s</p>
</body>
</html>
`, title, detail)
}
