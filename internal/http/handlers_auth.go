package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"estatecrm/internal/auth"
	"estatecrm/internal/core"
	"estatecrm/internal/log"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      core.User `json:"user"`
}

type loginPage struct {
	Email string
	Next  string
	Error string
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, expires, u, err := s.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, auth.SessionCookie(token, expires, s.deps.SecureCookies))
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires, User: u})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login_page", loginPage{Next: safeNext(r.URL.Query().Get("next"))})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.render(w, r, http.StatusBadRequest, "login_page", loginPage{Error: "Malformed request"})
		return
	}
	email, next := p.Get("email"), safeNext(p.Get("next"))

	token, expires, _, err := s.deps.Auth.Login(r.Context(), email, p.Get("password"))
	if err != nil {
		status := statusFor(err)
		msg := "Invalid email or password"
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Login failed",
				log.FieldError, err.Error(),
				log.FieldOperation, log.OpLogin)
			msg = "Sign-in is unavailable, please retry"
		}
		s.render(w, r, status, "login_page", loginPage{Email: email, Next: next, Error: msg})
		return
	}

	http.SetCookie(w, auth.SessionCookie(token, expires, s.deps.SecureCookies))
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", next)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearCookie())
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
