package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims this service cares about.
type Claims struct {
	AccountID string
	DeviceID  string
}

// TokenValidator validates bearer tokens presented to the API.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// HSValidator validates HS256-signed tokens carrying the account in the
// subject claim.
type HSValidator struct {
	key []byte
}

func NewHSValidator(signingKey string) *HSValidator {
	return &HSValidator{key: []byte(signingKey)}
}

type hsClaims struct {
	DeviceID string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

func (v *HSValidator) ValidateToken(tokenString string) (*Claims, error) {
	var claims hsClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Claims{AccountID: claims.Subject, DeviceID: claims.DeviceID}, nil
}

type contextKeyAccountID struct{}
type contextKeyDeviceID struct{}

var (
	ContextKeyAccountID = contextKeyAccountID{}
	ContextKeyDeviceID  = contextKeyDeviceID{}
)

// GetAccountID retrieves the authenticated account from the context.
func GetAccountID(ctx context.Context) string {
	id, ok := ctx.Value(ContextKeyAccountID).(string)
	if !ok {
		return ""
	}
	return id
}

func GetDeviceID(ctx context.Context) string {
	id, ok := ctx.Value(ContextKeyDeviceID).(string)
	if !ok {
		return ""
	}
	return id
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx))
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx))
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyAccountID, claims.AccountID)
			ctx = context.WithValue(ctx, ContextKeyDeviceID, claims.DeviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
