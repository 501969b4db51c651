package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/cache"
	"github.com/tributary-ai/llm-resilience/internal/dedup"
	"github.com/tributary-ai/llm-resilience/internal/types"
)

// TokenService validates HS256 JWTs with a read-through validation cache
// and single-flight deduplication, so a burst of requests carrying the
// same token triggers at most one signature verification.
type TokenService struct {
	secret       []byte
	cache        *cache.TokenValidationCache
	deduplicator *dedup.Deduplicator
	logger       *logrus.Logger
}

// NewTokenService creates a TokenService. tokenCache and deduplicator may
// be nil, in which case defaults are constructed.
func NewTokenService(secret string, tokenCache *cache.TokenValidationCache, deduplicator *dedup.Deduplicator, logger *logrus.Logger) *TokenService {
	if logger == nil {
		logger = logrus.New()
	}
	if tokenCache == nil {
		tokenCache = cache.NewTokenValidationCache(0, 0, logger, nil)
	}
	if deduplicator == nil {
		deduplicator = dedup.New(logger, nil)
	}
	return &TokenService{
		secret:       []byte(secret),
		cache:        tokenCache,
		deduplicator: deduplicator,
		logger:       logger,
	}
}

// ValidateToken returns the validation outcome for token. Invalid tokens
// are a result, not an error; the error return is reserved for unexpected
// failures (e.g. context cancellation while awaiting a duplicate).
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*types.TokenValidation, error) {
	if cached, ok := s.cache.GetValidation(token); ok {
		return cached, nil
	}

	v, err := s.deduplicator.Do(ctx, func(ctx context.Context) (interface{}, error) {
		result := s.validate(token)
		s.cache.CacheValidation(token, result)
		return result, nil
	}, "token_validation", token)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	return v.(*types.TokenValidation), nil
}

// validate performs the actual JWT parse and signature check
func (s *TokenService) validate(token string) *types.TokenValidation {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		reason := "invalid token"
		if err != nil {
			reason = err.Error()
		}
		s.logger.WithField("reason", reason).Debug("Token validation failed")
		return &types.TokenValidation{Valid: false, Error: reason}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return &types.TokenValidation{Valid: false, Error: "unexpected claims type"}
	}

	result := &types.TokenValidation{
		Valid:  true,
		Claims: map[string]interface{}(claims),
	}
	if sub, err := claims.GetSubject(); err == nil {
		result.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		result.ExpiresAt = &t
	}
	return result
}

// Revoke drops the cached validation for token so the next use re-validates
func (s *TokenService) Revoke(token string) bool {
	return s.cache.Invalidate(token)
}

// GenerateToken mints an HS256 JWT for subject, mainly for tests and
// operator tooling
func (s *TokenService) GenerateToken(subject string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(expiry)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Middleware returns an HTTP middleware enforcing Bearer-token auth.
// Health and metrics endpoints are always reachable.
func (s *TokenService) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") || strings.HasPrefix(r.URL.Path, "/metrics") {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				s.writeUnauthorized(w, "Missing authentication token")
				return
			}

			result, err := s.ValidateToken(r.Context(), token)
			if err != nil || !result.Valid {
				s.logger.WithFields(logrus.Fields{
					"path":   r.URL.Path,
					"method": r.Method,
				}).Warn("Authentication failed")
				s.writeUnauthorized(w, "Invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func (s *TokenService) writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	response := fmt.Sprintf(`{"error":{"message":"%s","type":"authentication_error","code":401},"timestamp":%d}`, message, time.Now().Unix())
	w.Write([]byte(response))
}
