package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

const authorizeTimeout = 5 * time.Minute

// OAuthConfig parses the OAuth client from inline JSON or a file.
func OAuthConfig(inline, file string) (*oauth2.Config, error) {
	b, err := readSecret(inline, file)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if b == nil {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	cfg, err := google.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// Authorize runs the installed-app consent flow. It prints the consent URL
// to out, waits on a local callback server for the redirect and exchanges
// the code for a token. The redirect URI http://localhost:<port>/callback
// must be registered on the OAuth client.
func Authorize(ctx context.Context, cfg *oauth2.Config, port string, out io.Writer) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "localhost:"+port)
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}
	cfg.RedirectURL = "http://localhost:" + port + "/callback"
	state := uuid.NewString()

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res result
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("oauth error: %s", q.Get("error"))
		case q.Get("state") != state:
			res.err = errors.New("oauth state mismatch")
		default:
			res.code = q.Get("code")
		}
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
		}
		select {
		case done <- res:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	fmt.Fprintf(out, "Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	ctx, cancel := context.WithTimeout(ctx, authorizeTimeout)
	defer cancel()
	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := cfg.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization: %w", ctx.Err())
	}
}

// SaveToken writes tok as JSON readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
