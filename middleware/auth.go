package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
	log "github.com/sirupsen/logrus"

	"earlyshhAPI/internal/types/user"
)

type contextKey string

const UserIDKey contextKey = "userID"
const ClerkIDKey contextKey = "clerkID"
const AdminKey contextKey = "admin"

type SessionVerifier interface {
	Verify(token string) (int, error)
}

type ClerkUserResolver interface {
	ResolveClerkUser(ctx context.Context, clerkID string) (*user.User, error)
}

// ClerkVerifyFunc matches jwt.Verify so tests can stub Clerk out.
type ClerkVerifyFunc func(ctx context.Context, token string) (subject string, err error)

func verifyWithClerk(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

type Authenticator struct {
	sessions    SessionVerifier
	clerkUsers  ClerkUserResolver
	clerkVerify ClerkVerifyFunc
	admins      map[int]bool
}

// NewAuthenticator accepts local session tokens. When clerkUsers is non-nil,
// Clerk session tokens are accepted as well and mapped to local users.
func NewAuthenticator(sessions SessionVerifier, clerkUsers ClerkUserResolver) *Authenticator {
	a := &Authenticator{sessions: sessions, clerkUsers: clerkUsers}
	if clerkUsers != nil {
		a.clerkVerify = verifyWithClerk
	}
	return a
}

// WithClerkVerifier swaps the Clerk verification call.
func (a *Authenticator) WithClerkVerifier(fn ClerkVerifyFunc) *Authenticator {
	a.clerkVerify = fn
	return a
}

// WithAdmins marks the given users as admins.
func (a *Authenticator) WithAdmins(userIDs ...int) *Authenticator {
	a.admins = make(map[int]bool, len(userIDs))
	for _, id := range userIDs {
		a.admins[id] = true
	}
	return a
}

func (a *Authenticator) withUser(ctx context.Context, userID int) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, AdminKey, a.admins[userID])
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		// Browsers cannot set headers on websocket upgrades.
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			if token := r.URL.Query().Get("token"); token != "" {
				return token, true
			}
		}
		return "", false
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader || token == "" {
		return "", false
	}
	return token, true
}

func (a *Authenticator) resolve(r *http.Request, token string) (context.Context, bool) {
	ctx := r.Context()

	if userID, err := a.sessions.Verify(token); err == nil {
		return a.withUser(ctx, userID), true
	}

	if a.clerkVerify == nil || a.clerkUsers == nil {
		return ctx, false
	}

	clerkID, err := a.clerkVerify(ctx, token)
	if err != nil {
		log.Debugf("Token verification failed: %v", err)
		return ctx, false
	}
	u, err := a.clerkUsers.ResolveClerkUser(ctx, clerkID)
	if err != nil {
		log.Printf("Clerk user %s has no local account: %v", clerkID, err)
		return ctx, false
	}

	ctx = context.WithValue(ctx, ClerkIDKey, clerkID)
	return a.withUser(ctx, u.ID), true
}

// RequireAuth rejects requests without a valid session with 401.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Authorization header required. Use 'Bearer <token>'")
			return
		}

		ctx, ok := a.resolve(r, token)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Invalid or expired session")
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireAuth. Non-admins get 403.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			respondWithError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OptionalAuth attaches the user when a valid token is present and never rejects.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			if ctx, ok := a.resolve(r, token); ok {
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserID extracts the internal user ID from context
func GetUserID(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(UserIDKey).(int)
	return userID, ok
}

func IsAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(AdminKey).(bool)
	return admin
}

// GetClerkID is only set for requests authenticated through Clerk.
func GetClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(ClerkIDKey).(string)
	return clerkID, ok
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"message": message,
		"error":   http.StatusText(code),
	})
}
