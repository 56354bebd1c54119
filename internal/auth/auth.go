package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"casefiling/backend/internal/config"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Auth authenticates API callers. Bearer tokens are verified against the
// Okta issuer; in dev, HS256 tokens signed with a shared key are accepted as
// well, and the whole check can be bypassed.
type Auth struct {
	apiVerifier *oidc.IDTokenVerifier
	devKey      []byte
	logger      Logger
	authBypass  bool
}

// New creates a new Auth object from the application configuration.
func New(ctx context.Context, cfg *config.Config, logger Logger) (*Auth, error) {
	isDev := cfg.IsDev()
	a := &Auth{
		logger:     logger,
		authBypass: isDev && cfg.DevModeBypass,
	}
	if a.authBypass {
		logger.Info("auth bypass enabled; every request acts as the dev admin")
		return a, nil
	}

	if isDev && cfg.Auth.DevSigningKey != "" {
		a.devKey = []byte(cfg.Auth.DevSigningKey)
	}
	if cfg.Auth.OktaDomain != "" {
		provider, err := oidc.NewProvider(ctx, cfg.Auth.OktaDomain)
		if err != nil {
			return nil, err
		}
		// Access tokens carry an API audience rather than the client ID.
		a.apiVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	}
	if a.apiVerifier == nil && a.devKey == nil {
		return nil, errors.New("auth configuration is incomplete")
	}
	return a, nil
}

// RequireAuth is middleware that places the caller's Principal in the
// request context or rejects the request with 401.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.authBypass {
			p := Principal{UserID: "dev", Email: "dev@localhost", Role: RoleAdmin}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		rawToken := strings.TrimPrefix(authHeader, "Bearer ")

		p, err := a.authenticate(r.Context(), rawToken)
		if err != nil {
			if a.logger != nil {
				a.logger.Debug("rejected bearer token", "error", err)
			}
			http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func (a *Auth) authenticate(ctx context.Context, rawToken string) (Principal, error) {
	if a.devKey != nil {
		p, err := a.parseDevToken(rawToken)
		if err == nil || a.apiVerifier == nil {
			return p, err
		}
	}

	token, err := a.apiVerifier.Verify(ctx, rawToken)
	if err != nil {
		return Principal{}, err
	}
	var claims struct {
		Email  string   `json:"email"`
		Groups []string `json:"groups"`
	}
	if err := token.Claims(&claims); err != nil {
		return Principal{}, fmt.Errorf("failed to parse token claims: %w", err)
	}
	return Principal{UserID: token.Subject, Email: claims.Email, Role: roleFromGroups(claims.Groups)}, nil
}

// DevClaims are the claims of a locally signed development token.
type DevClaims struct {
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

func (a *Auth) parseDevToken(rawToken string) (Principal, error) {
	var claims DevClaims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(*jwt.Token) (any, error) {
		return a.devKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, err
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("token has no subject")
	}
	role := claims.Role
	if role != RoleAdmin {
		role = RoleCaseworker
	}
	return Principal{UserID: claims.Subject, Email: claims.Email, Role: role}, nil
}

// IssueDevToken signs an HS256 token accepted by RequireAuth in dev.
func IssueDevToken(key []byte, userID string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := DevClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "casefiling-dev",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// RequireAdmin rejects callers that are not administrators.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, ok := PrincipalFrom(c.Request().Context())
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
		}
		if !p.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "administrator role required")
		}
		return next(c)
	}
}
