package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"tag-designer/config"
	"tag-designer/core"

	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid token")
)

// AppClaims represents the custom claims for the JWT. The registered
// subject is the user's store ID, which scopes every template call.
type AppClaims struct {
	jwt.RegisteredClaims
	Login     string `json:"login"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl"`
	Name      string `json:"name"`
}

// UserID returns the store ID the token was issued for.
func (c *AppClaims) UserID() string {
	return c.Subject
}

// Service issues and checks tokens for local and external accounts.
type Service struct {
	users       core.UserStore
	secret      []byte
	ttl         time.Duration
	frontendURL string
	provider    provider
	cost        int
	now         func() time.Time
}

func NewService(users core.UserStore, cfg config.Auth) *Service {
	s := &Service{
		users:       users,
		secret:      []byte(cfg.JWTSecret),
		ttl:         cfg.TokenTTL,
		frontendURL: cfg.FrontendURL,
		cost:        bcrypt.DefaultCost,
		now:         time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = 7 * 24 * time.Hour
	}
	if s.frontendURL == "" {
		s.frontendURL = "/"
	}
	if len(s.secret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Using a random secret; tokens will not survive a restart.")
		s.secret = make([]byte, 32)
		rand.Read(s.secret)
	}

	switch {
	case cfg.OIDCEnabled():
		logrus.Info("Initializing OIDC authentication provider.")
		p, err := newOIDCProvider(context.Background(), cfg.OIDC)
		if err != nil {
			logrus.Errorf("Failed to create OIDC provider: %s", err.Error())
			break
		}
		s.provider = p
	case cfg.GitHubEnabled():
		logrus.Info("Initializing GitHub authentication provider.")
		s.provider = newGitHubProvider(cfg.GitHub)
	default:
		logrus.Warn("No external authentication provider configured.")
	}
	return s
}

func (s *Service) createJWT(user *core.User) (string, error) {
	now := s.now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Login:     user.Login,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Name:      user.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseJWT verifies tokenString and returns its claims.
func (s *Service) ParseJWT(tokenString string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid && claims.Subject != "" {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// Register creates a local account and signs the user in.
func (s *Service) Register(ctx context.Context, email, password, name string) (*core.User, string, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", core.Validationf("a valid email is required")
	}
	if password == "" {
		return nil, "", core.Validationf("password is required")
	}
	if name = strings.TrimSpace(name); name == "" {
		name = email
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, "", core.Validationf("password must be at most 72 bytes")
	}
	if err != nil {
		return nil, "", err
	}
	user := &core.User{
		Subject:      "local:" + strings.ToLower(email),
		Login:        email,
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return nil, "", ErrUserExists
		}
		return nil, "", err
	}

	token, err := s.createJWT(user)
	if err != nil {
		return nil, "", err
	}
	logrus.WithField("user_id", user.ID).Info("User registered")
	return user, token, nil
}

// Login checks a local account's password and signs the user in.
func (s *Service) Login(ctx context.Context, email, password string) (*core.User, string, error) {
	user, err := s.users.FindUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.createJWT(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// signInExternal finds or creates the account behind an external identity.
func (s *Service) signInExternal(ctx context.Context, identity *core.User) (string, error) {
	user, err := s.users.FindUserBySubject(ctx, identity.Subject)
	if errors.Is(err, core.ErrNotFound) {
		user = identity
		err = s.users.CreateUser(ctx, user)
	}
	if err != nil {
		return "", err
	}
	return s.createJWT(user)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type session struct {
	User  *core.User `json:"user"`
	Token string     `json:"token"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

func (s *Service) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := s.Register(r.Context(), req.Email, req.Password, req.Name)
	switch {
	case errors.Is(err, ErrUserExists):
		writeError(w, r, http.StatusBadRequest, "User already exists")
	case errors.Is(err, core.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case err != nil:
		logrus.WithError(err).Error("Registration failed")
		writeError(w, r, http.StatusInternalServerError, "Registration failed")
	default:
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, session{User: user, Token: token})
	}
}

func (s *Service) HandlePasswordLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := s.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
	case err != nil:
		logrus.WithError(err).Error("Login failed")
		writeError(w, r, http.StatusInternalServerError, "Authentication failed")
	default:
		render.JSON(w, r, session{User: user, Token: token})
	}
}

const stateCookie = "oauth_state"

// HandleLogin redirects to the configured external identity provider.
func (s *Service) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		http.Error(w, "Failed to generate state for login", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(stateBytes)

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  s.now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.provider.authCodeURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes an external login and hands the token to the frontend.
func (s *Service) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}
	log := logrus.WithField("provider", s.provider.name())

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.FormValue("state") {
		log.Warn("OAuth state mismatch")
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}
	code := r.FormValue("code")
	if code == "" {
		log.Error("no code in callback")
		http.Redirect(w, r, s.frontendURL, http.StatusTemporaryRedirect)
		return
	}

	identity, err := s.provider.exchange(r.Context(), code)
	if err != nil {
		log.Errorf("failed to resolve identity: %s", err.Error())
		http.Redirect(w, r, s.frontendURL, http.StatusTemporaryRedirect)
		return
	}
	token, err := s.signInExternal(r.Context(), identity)
	if err != nil {
		log.Errorf("failed to create JWT: %s", err.Error())
		http.Redirect(w, r, s.frontendURL, http.StatusTemporaryRedirect)
		return
	}

	// Redirect to frontend with token
	http.Redirect(w, r, s.frontendURL+"?token="+url.QueryEscape(token), http.StatusTemporaryRedirect)
}
