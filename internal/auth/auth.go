// Package auth provides email/password accounts with JWT bearer tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/internal/metrics"
	"github.com/nexo-app/nexo/internal/store"
	"github.com/nexo-app/nexo/pkg/protocol"
)

type contextKey string

const userContextKey contextKey = "user"

// bcryptCost matches the original deployment's hash cost.
const bcryptCost = 12

// Claims holds JWT token claims. Subject is the user's email.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Auth handles registration, login and token validation.
type Auth struct {
	store   *store.Store
	secret  []byte
	expires time.Duration
}

// New creates a new Auth handler. expireMinutes bounds token lifetime.
func New(st *store.Store, jwtSecret string, expireMinutes int) *Auth {
	return &Auth{
		store:   st,
		secret:  []byte(jwtSecret),
		expires: time.Duration(expireMinutes) * time.Minute,
	}
}

// Middleware returns HTTP middleware that requires a valid bearer token.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractToken(r)
		if tokenStr == "" {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "missing authentication token")
			return
		}

		claims, err := a.validateToken(tokenStr)
		if err != nil {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalMiddleware attaches claims when a valid token is present but lets
// anonymous requests through. Used by the analysis endpoint, where identity
// only scopes the cache.
func (a *Auth) OptionalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenStr := extractToken(r); tokenStr != "" {
			if claims, err := a.validateToken(tokenStr); err == nil {
				ctx := context.WithValue(r.Context(), userContextKey, claims)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetClaims extracts claims from the request context, or nil.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(userContextKey).(*Claims)
	return claims
}

// UserID returns the authenticated user's id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}

// WithClaims injects claims into a context. Used by tests.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// HandleRegister handles POST /api/v1/auth/register.
func (a *Auth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req protocol.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ValidateEmail(req.Email); err != nil {
		sendAuthError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ValidatePassword(req.Password); err != nil {
		sendAuthError(w, http.StatusBadRequest, err.Error())
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		logging.Error("hash password", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user, err := a.store.CreateUser(r.Context(), strings.ToLower(req.Email), req.Name, string(hashed))
	if errors.Is(err, store.ErrEmailTaken) {
		sendAuthError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		logging.Error("create user", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(protocol.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	})
}

// HandleLogin handles POST /api/v1/auth/login.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := a.store.GetUserByEmail(r.Context(), strings.ToLower(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: unknown email", zap.String("email", req.Email))
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Error("login database error", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: invalid password", zap.String("email", req.Email))
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.IsActive {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusForbidden, "account is disabled")
		return
	}

	tokenStr, err := a.issueToken(user)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Error("sign token", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	metrics.RecordAuthAttempt(true)
	logging.Info("login successful", zap.String("email", user.Email))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.TokenResponse{
		AccessToken: tokenStr,
		TokenType:   "bearer",
	})
}

// HandleMe handles GET /api/v1/auth/me.
func (a *Auth) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		sendAuthError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := a.store.GetUserByEmail(r.Context(), claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		sendAuthError(w, http.StatusUnauthorized, "user no longer exists")
		return
	}
	if err != nil {
		logging.Error("load user", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "database error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	})
}

// CreateUser creates an account directly, bypassing HTTP. Used by the CLI.
func (a *Auth) CreateUser(ctx context.Context, email, name, password string) (*store.User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return a.store.CreateUser(ctx, strings.ToLower(email), name, string(hashed))
}

func (a *Auth) issueToken(user *store.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expires)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "nexo",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) validateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// Query parameter fallback for the SSE endpoint
	return r.URL.Query().Get("token")
}

func sendAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
