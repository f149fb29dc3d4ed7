// Package auth handles password hashing, signed session tokens and the
// request context carrying the signed-in user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"estatecrm/internal/core"
	"estatecrm/internal/crm"
	"estatecrm/internal/log"
)

const (
	CookieName        = "crm_session"
	MinPasswordLength = 8
	issuer            = "estatecrm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// Claims is the payload of a session token. Subject is the user ID.
type Claims struct {
	Email string    `json:"email"`
	Role  core.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	users  crm.UserStore
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	logger *log.Logger
}

func NewService(users crm.UserStore, secret string, ttl time.Duration, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CreateUser hashes the password and stores a new user.
func (s *Service) CreateUser(ctx context.Context, email, name, password string, role core.Role) (core.User, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	u := core.User{Email: strings.TrimSpace(email), Name: name, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, &u); err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "User created", log.FieldUserID, u.ID, "role", role)
	return u, nil
}

// Bootstrap creates the admin account when it does not exist yet. It
// reports whether a user was created.
func (s *Service) Bootstrap(ctx context.Context, email, password string) (bool, error) {
	if email == "" {
		return false, nil
	}
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return false, fmt.Errorf("look up admin: %w", err)
	}
	if _, err := s.CreateUser(ctx, email, "Administrator", password, core.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

// Login checks the credentials and issues a token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, core.User, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.logger.WarnContext(ctx, "Login for unknown email")
			return "", time.Time{}, core.User{}, ErrInvalidCredentials
		}
		return "", time.Time{}, core.User{}, fmt.Errorf("look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Login with wrong password", log.FieldUserID, u.ID)
		return "", time.Time{}, core.User{}, ErrInvalidCredentials
	}

	token, expires, err := s.IssueToken(u)
	if err != nil {
		return "", time.Time{}, core.User{}, err
	}
	s.logger.InfoContext(ctx, "User logged in", log.FieldUserID, u.ID)
	return token, expires, u, nil
}

func (s *Service) IssueToken(u core.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

func (s *Service) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// Authenticate reads the session from the cookie or a Bearer header.
func (s *Service) Authenticate(r *http.Request) (*Claims, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, fmt.Errorf("%w: no credentials", ErrInvalidToken)
	}
	return s.ParseToken(token)
}

func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

func SessionCookie(token string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

type ctxKey struct{}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the claims of the signed-in user, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}
